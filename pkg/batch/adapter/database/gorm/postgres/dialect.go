// Package postgres provides the PostgreSQL dialect of the gorm database adapter.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/config"
)

// SQLSTATE codes, see https://www.postgresql.org/docs/current/errcodes-appendix.html.
const (
	uniqueViolation = "23505"
	undefinedTable  = "42P01"
)

// Dialect implements database.Dialect for PostgreSQL through pgx.
type Dialect struct{}

// Name implements database.Dialect.
func (Dialect) Name() string { return "postgres" }

// ConnectionString generates the keyword/value DSN expected by pgx.
func (Dialect) ConnectionString(c dbconfig.DatabaseConfig) string {
	port := c.Port
	if port == 0 {
		port = 5432
	}
	sslmode := c.Sslmode
	if sslmode == "" {
		sslmode = "disable"
	}
	parts := []string{
		fmt.Sprintf("host=%s", c.Host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("user=%s", c.User),
		fmt.Sprintf("password=%s", c.Password),
		fmt.Sprintf("dbname=%s", c.Database),
		fmt.Sprintf("sslmode=%s", sslmode),
	}
	if c.Schema != "" {
		parts = append(parts, fmt.Sprintf("search_path=%s", c.Schema))
	}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, c.Params[k]))
	}
	return strings.Join(parts, " ")
}

// Dialector implements database.Dialect.
func (d Dialect) Dialector(c dbconfig.DatabaseConfig) (gorm.Dialector, error) {
	if c.Host == "" || c.Database == "" {
		return nil, errors.New("PostgreSQL host and database must be set")
	}
	return postgres.Open(d.ConnectionString(c)), nil
}

// IsDuplicateKeyError implements database.Dialect.
func (Dialect) IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// IsTableNotExistError implements database.Dialect.
func (Dialect) IsTableNotExistError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == undefinedTable
}

// MigrationDriver implements database.Dialect. The driver works on a
// dedicated connection that it releases on Close.
func (Dialect) MigrationDriver(ctx context.Context, db *sql.DB, migrationsTable string) (migratedb.Driver, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	driver, err := migratepostgres.WithConnection(ctx, conn, &migratepostgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return driver, nil
}

var _ database.Dialect = Dialect{}
