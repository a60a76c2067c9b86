// Package migration provides a tasklet that applies application schema
// migrations with golang-migrate before the steps that depend on them run.
package migration

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// AppMigrationsTable records the versions applied by MigrationTasklet. It is
// kept apart from the job repository's own migrations table.
const AppMigrationsTable = "batch_app_migrations"

// VersionKey is the step ExecutionContext key holding the schema version
// after the migration ran. It is absent when no migration is applied.
const VersionKey = "migration.version"

// Command selects the migration direction.
type Command string

const (
	CommandUp   Command = "up"
	CommandDown Command = "down"
)

// MigrationTasklet runs the migrations found in a fs.FS against a named
// connection. Migration scripts are read from the directory named after the
// connection's dialect unless WithDir is given.
//
// golang-migrate uses its own connection from the pool, so a step running this
// tasklet against the job repository database should be built with
// step.WithTransactionManager(tx.NewNoOpTransactionManager()).
type MigrationTasklet struct {
	resolver   database.DBConnectionResolver
	connection string
	source     fs.FS
	dir        string
	command    Command
	table      string
}

// Option configures a MigrationTasklet.
type Option func(*MigrationTasklet)

// WithDir reads the scripts from dir instead of the dialect name.
func WithDir(dir string) Option {
	return func(t *MigrationTasklet) { t.dir = dir }
}

// WithCommand sets the direction. The default is CommandUp.
func WithCommand(c Command) Option {
	return func(t *MigrationTasklet) { t.command = c }
}

// WithMigrationsTable overrides AppMigrationsTable.
func WithMigrationsTable(table string) Option {
	return func(t *MigrationTasklet) { t.table = table }
}

// NewMigrationTasklet creates a MigrationTasklet migrating connection with the
// scripts in source.
func NewMigrationTasklet(resolver database.DBConnectionResolver, connection string, source fs.FS, opts ...Option) (*MigrationTasklet, error) {
	if resolver == nil {
		return nil, errors.New("migration tasklet requires a connection resolver")
	}
	if connection == "" {
		return nil, errors.New("migration tasklet requires a connection name")
	}
	if source == nil {
		return nil, errors.New("migration tasklet requires a migration source")
	}
	t := &MigrationTasklet{
		resolver:   resolver,
		connection: connection,
		source:     source,
		command:    CommandUp,
		table:      AppMigrationsTable,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.command != CommandUp && t.command != CommandDown {
		return nil, fmt.Errorf("unsupported migration command '%s'", t.command)
	}
	return t, nil
}

// Execute implements tasklet.Tasklet.
func (t *MigrationTasklet) Execute(ctx context.Context, _ *model.StepContribution, cc *model.ChunkContext) (tasklet.RepeatStatus, error) {
	const op = "MigrationTasklet.Execute"

	conn, err := t.resolver.ResolveDBConnection(ctx, t.connection)
	if err != nil {
		return tasklet.Failed, exception.NewBatchError(op, fmt.Sprintf("failed to resolve connection '%s'", t.connection), err, false, false)
	}
	mig, err := t.newMigrate(ctx, conn)
	if err != nil {
		return tasklet.Failed, exception.NewBatchError(op, "failed to prepare migrations", err, false, false)
	}
	defer func() {
		if srcErr, dbErr := mig.Close(); srcErr != nil || dbErr != nil {
			logger.Warnf("Failed to close migration on '%s': source=%v, database=%v", t.connection, srcErr, dbErr)
		}
	}()

	logger.Infof("Executing migration '%s' on '%s' (table: %s).", t.command, t.connection, t.table)
	switch t.command {
	case CommandDown:
		err = mig.Down()
	default:
		err = mig.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return tasklet.Failed, exception.NewBatchError(op, fmt.Sprintf("migration '%s' failed on '%s'", t.command, t.connection), err, false, false)
	}

	version, dirty, verr := mig.Version()
	switch {
	case errors.Is(verr, migrate.ErrNilVersion):
		cc.StepExecution.ExecutionContext.Remove(VersionKey)
	case verr != nil:
		logger.Warnf("Failed to read migration version on '%s': %v", t.connection, verr)
	default:
		if dirty {
			return tasklet.Failed, exception.NewBatchErrorf(op, "schema on '%s' is dirty at version %d", t.connection, version)
		}
		cc.StepExecution.ExecutionContext.Put(VersionKey, int64(version))
	}
	logger.Infof("Migration '%s' on '%s' completed.", t.command, t.connection)
	return tasklet.Finished, nil
}

func (t *MigrationTasklet) newMigrate(ctx context.Context, conn database.DBConnection) (*migrate.Migrate, error) {
	dialect := conn.Dialect()
	dir := t.dir
	if dir == "" {
		dir = dialect.Name()
	}
	src, err := iofs.New(t.source, dir)
	if err != nil {
		return nil, fmt.Errorf("no migrations in '%s': %w", dir, err)
	}
	sqlDB, err := conn.GetSQLDB()
	if err != nil {
		return nil, err
	}
	drv, err := dialect.MigrationDriver(ctx, sqlDB, t.table)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	return migrate.NewWithInstance("iofs", src, dialect.Name(), drv)
}

var _ tasklet.Tasklet = (*MigrationTasklet)(nil)
