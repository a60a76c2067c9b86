// Package sqlite provides the SQLite dialect of the gorm database adapter.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	sqlite3 "github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/config"
)

// Dialect implements database.Dialect for SQLite through mattn/go-sqlite3.
type Dialect struct{}

// Name implements database.Dialect.
func (Dialect) Name() string { return "sqlite" }

// ConnectionString returns the database path followed by the driver parameters.
func (Dialect) ConnectionString(c dbconfig.DatabaseConfig) string {
	if len(c.Params) == 0 {
		return c.Database
	}
	keys := make([]string, 0, len(c.Params))
	for k := range c.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%s", k, c.Params[k]))
	}
	sep := "?"
	if strings.Contains(c.Database, "?") {
		sep = "&"
	}
	return c.Database + sep + strings.Join(pairs, "&")
}

// Dialector implements database.Dialect.
func (d Dialect) Dialector(c dbconfig.DatabaseConfig) (gorm.Dialector, error) {
	if c.Database == "" {
		return nil, errors.New("SQLite database path cannot be empty")
	}
	return sqlite.Open(d.ConnectionString(c)), nil
}

// IsDuplicateKeyError implements database.Dialect.
func (Dialect) IsDuplicateKeyError(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// IsTableNotExistError implements database.Dialect.
func (Dialect) IsTableNotExistError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table:")
}

// MigrationDriver implements database.Dialect.
func (Dialect) MigrationDriver(_ context.Context, db *sql.DB, migrationsTable string) (migratedb.Driver, error) {
	driver, err := migratesqlite.WithInstance(db, &migratesqlite.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return nil, err
	}
	return keepOpen{driver}, nil
}

// keepOpen stops the migrate driver from closing the shared *sql.DB.
type keepOpen struct {
	migratedb.Driver
}

func (keepOpen) Close() error { return nil }

var _ database.Dialect = Dialect{}
