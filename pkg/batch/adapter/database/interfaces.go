// Package database defines the connection abstractions used by the SQL job
// repository and by database-backed item readers and writers.
package database

import (
	"context"
	"database/sql"

	migratedb "github.com/golang-migrate/migrate/v4/database"
	"gorm.io/gorm"

	dbconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/config"
	coreadapter "github.com/tigerroll/tidebatch/pkg/batch/core/adapter"
)

// Dialect captures what differs between the supported databases.
type Dialect interface {
	// Name returns the database type handled by the dialect (e.g., "sqlite").
	Name() string
	// Dialector builds the gorm.Dialector for cfg.
	Dialector(cfg dbconfig.DatabaseConfig) (gorm.Dialector, error)
	// IsDuplicateKeyError reports whether err is a unique constraint violation.
	IsDuplicateKeyError(err error) bool
	// IsTableNotExistError reports whether err indicates a missing table.
	IsTableNotExistError(err error) bool
	// MigrationDriver wraps db for golang-migrate, recording applied
	// versions in migrationsTable. Closing the driver must leave db open.
	MigrationDriver(ctx context.Context, db *sql.DB, migrationsTable string) (migratedb.Driver, error)
}

// DBConnection represents an open, named database connection.
type DBConnection interface {
	coreadapter.ResourceConnection
	// DB returns a session bound to ctx. When ctx carries a transaction
	// started by the gorm TransactionManager, the transaction is returned.
	DB(ctx context.Context) *gorm.DB
	// GetSQLDB returns the underlying *sql.DB connection.
	GetSQLDB() (*sql.DB, error)
	// Config returns the database configuration associated with this connection.
	Config() dbconfig.DatabaseConfig
	// Dialect returns the dialect of the connection.
	Dialect() Dialect
	// RefreshConnection pings the connection pool.
	RefreshConnection(ctx context.Context) error
}

// DBProvider opens and caches connections of one database type.
type DBProvider interface {
	// GetConnection retrieves a database connection with the specified name.
	GetConnection(name string) (DBConnection, error)
	// ForceReconnect closes and reopens the connection with the specified name.
	ForceReconnect(name string) (DBConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the database type handled by this provider.
	Type() string
}

// DBConnectionResolver resolves named connections, reconnecting when a cached
// connection no longer answers.
type DBConnectionResolver interface {
	ResolveDBConnection(ctx context.Context, name string) (DBConnection, error)
}

// DBProviderGroup is the fx value group collecting every DBProvider.
const DBProviderGroup = "db_providers"
