// Package gorm implements the database adapter on top of gorm.io/gorm.
package gorm

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/config"
	"github.com/tigerroll/tidebatch/pkg/batch/core/config"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// NewGormLogger creates a gorm logger writing through the batch logger at the
// given level. Unknown levels are silent.
func NewGormLogger(level string) gormlogger.Interface {
	var gormLevel gormlogger.LogLevel
	switch config.LogLevel(strings.ToUpper(level)) {
	case config.LogLevelError:
		gormLevel = gormlogger.Error
	case config.LogLevelWarn:
		gormLevel = gormlogger.Warn
	case config.LogLevelInfo, config.LogLevelDebug:
		gormLevel = gormlogger.Info
	default:
		gormLevel = gormlogger.Silent
	}
	return gormlogger.New(NewGormWriter(), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormLevel,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// GormWriter redirects gorm log output to the batch logger. Statements are
// logged at DEBUG, everything else at INFO.
type GormWriter struct{}

// NewGormWriter creates a new instance of GormWriter.
func NewGormWriter() *GormWriter {
	return &GormWriter{}
}

// Printf implements gormlogger.Writer.
func (w *GormWriter) Printf(format string, v ...interface{}) {
	msg := strings.TrimSpace(fmt.Sprintf(format, v...))
	if isStatement(msg) {
		logger.Debugf("[GORM] %s", msg)
		return
	}
	logger.Infof("[GORM] %s", msg)
}

func isStatement(msg string) bool {
	for _, verb := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.Contains(msg, verb) {
			return true
		}
	}
	return false
}

// GormDBAdapter implements database.DBConnection.
type GormDBAdapter struct {
	db      *gorm.DB
	sqlDB   *sql.DB
	cfg     dbconfig.DatabaseConfig
	dialect database.Dialect
	name    string
}

// NewGormDBAdapter wraps an open gorm.DB.
func NewGormDBAdapter(db *gorm.DB, cfg dbconfig.DatabaseConfig, dialect database.Dialect, name string) (*GormDBAdapter, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	return &GormDBAdapter{
		db:      db,
		sqlDB:   sqlDB,
		cfg:     cfg,
		dialect: dialect,
		name:    name,
	}, nil
}

// Close implements database.DBConnection.
func (a *GormDBAdapter) Close() error {
	logger.Infof("Closing database connection '%s'...", a.name)
	return a.sqlDB.Close()
}

// Type implements database.DBConnection.
func (a *GormDBAdapter) Type() string {
	return a.dialect.Name()
}

// Name implements database.DBConnection.
func (a *GormDBAdapter) Name() string {
	return a.name
}

// DB implements database.DBConnection.
func (a *GormDBAdapter) DB(ctx context.Context) *gorm.DB {
	if txDB, ok := TxFromContext(ctx); ok {
		return txDB.WithContext(ctx)
	}
	return a.db.WithContext(ctx)
}

// GetSQLDB implements database.DBConnection.
func (a *GormDBAdapter) GetSQLDB() (*sql.DB, error) {
	return a.sqlDB, nil
}

// Config implements database.DBConnection.
func (a *GormDBAdapter) Config() dbconfig.DatabaseConfig {
	return a.cfg
}

// Dialect implements database.DBConnection.
func (a *GormDBAdapter) Dialect() database.Dialect {
	return a.dialect
}

// RefreshConnection implements database.DBConnection.
func (a *GormDBAdapter) RefreshConnection(ctx context.Context) error {
	return a.sqlDB.PingContext(ctx)
}

var _ database.DBConnection = (*GormDBAdapter)(nil)
