package sql

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

//go:embed migrations
var migrationsFS embed.FS

// MigrationsTable records the applied schema version of the job repository tables.
const MigrationsTable = "batch_schema_migrations"

// Migrator applies the embedded job repository schema to a connection.
type Migrator struct {
	conn database.DBConnection
}

// NewMigrator creates a Migrator for conn.
func NewMigrator(conn database.DBConnection) *Migrator {
	return &Migrator{conn: conn}
}

func (m *Migrator) newMigrate(ctx context.Context) (*migrate.Migrate, error) {
	dialect := m.conn.Dialect()
	src, err := iofs.New(migrationsFS, "migrations/"+dialect.Name())
	if err != nil {
		return nil, fmt.Errorf("no job repository migrations for dialect '%s': %w", dialect.Name(), err)
	}
	sqlDB, err := m.conn.GetSQLDB()
	if err != nil {
		return nil, err
	}
	drv, err := dialect.MigrationDriver(ctx, sqlDB, MigrationsTable)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	mig, err := migrate.NewWithInstance("iofs", src, dialect.Name(), drv)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return mig, nil
}

func closeMigrate(mig *migrate.Migrate) {
	srcErr, dbErr := mig.Close()
	if srcErr != nil {
		logger.Warnf("Failed to close migration source: %v", srcErr)
	}
	if dbErr != nil {
		logger.Warnf("Failed to close migration driver: %v", dbErr)
	}
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (m *Migrator) Up(ctx context.Context) error {
	const op = "Migrator.Up"
	mig, err := m.newMigrate(ctx)
	if err != nil {
		return exception.NewBatchError(op, "failed to prepare job repository migrations", err, false, false)
	}
	defer closeMigrate(mig)

	if err := mig.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Debugf("Job repository schema on '%s' is up to date.", m.conn.Name())
			return nil
		}
		return exception.NewBatchError(op, "failed to apply job repository migrations", err, false, false)
	}
	logger.Infof("Applied job repository migrations on '%s'.", m.conn.Name())
	return nil
}

// Down reverts all migrations, dropping the job repository tables.
func (m *Migrator) Down(ctx context.Context) error {
	const op = "Migrator.Down"
	mig, err := m.newMigrate(ctx)
	if err != nil {
		return exception.NewBatchError(op, "failed to prepare job repository migrations", err, false, false)
	}
	defer closeMigrate(mig)

	if err := mig.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return exception.NewBatchError(op, "failed to revert job repository migrations", err, false, false)
	}
	return nil
}

// Version returns the applied schema version. ok is false when no migration has run.
func (m *Migrator) Version(ctx context.Context) (version uint, dirty bool, ok bool, err error) {
	mig, err := m.newMigrate(ctx)
	if err != nil {
		return 0, false, false, err
	}
	defer closeMigrate(mig)

	version, dirty, err = mig.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, err
	}
	return version, dirty, true, nil
}
