// Package mysql provides the MySQL dialect of the gorm database adapter.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/config"
)

const (
	errDupEntry      = 1062
	errNoSuchTable   = 1146
	defaultPortMySQL = 3306
)

// Dialect implements database.Dialect for MySQL.
type Dialect struct{}

// Name implements database.Dialect.
func (Dialect) Name() string { return "mysql" }

// ConnectionString builds the DSN with go-sql-driver/mysql. Times are parsed
// into time.Time and multi-statement migration files are allowed.
func (Dialect) ConnectionString(c dbconfig.DatabaseConfig) string {
	port := c.Port
	if port == 0 {
		port = defaultPortMySQL
	}
	mc := gomysql.NewConfig()
	mc.User = c.User
	mc.Passwd = c.Password
	mc.Net = "tcp"
	mc.Addr = fmt.Sprintf("%s:%d", c.Host, port)
	mc.DBName = c.Database
	mc.ParseTime = true
	mc.MultiStatements = true
	if len(c.Params) > 0 {
		mc.Params = make(map[string]string, len(c.Params))
		for k, v := range c.Params {
			mc.Params[k] = v
		}
	}
	return mc.FormatDSN()
}

// Dialector implements database.Dialect.
func (d Dialect) Dialector(c dbconfig.DatabaseConfig) (gorm.Dialector, error) {
	if c.Host == "" || c.Database == "" {
		return nil, errors.New("MySQL host and database must be set")
	}
	return gormmysql.Open(d.ConnectionString(c)), nil
}

// IsDuplicateKeyError implements database.Dialect.
func (Dialect) IsDuplicateKeyError(err error) bool {
	var mysqlErr *gomysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDupEntry
}

// IsTableNotExistError implements database.Dialect.
func (Dialect) IsTableNotExistError(err error) bool {
	var mysqlErr *gomysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errNoSuchTable
}

// MigrationDriver implements database.Dialect. The driver works on a
// dedicated connection that it releases on Close.
func (Dialect) MigrationDriver(ctx context.Context, db *sql.DB, migrationsTable string) (migratedb.Driver, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	driver, err := migratemysql.WithConnection(ctx, conn, &migratemysql.Config{MigrationsTable: migrationsTable})
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return driver, nil
}

var _ database.Dialect = Dialect{}
