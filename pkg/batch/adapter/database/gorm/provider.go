package gorm

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/config"
	"github.com/tigerroll/tidebatch/pkg/batch/core/config"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// LookupDatabaseConfig decodes the named entry of the "database" section.
func LookupDatabaseConfig(cfg *config.Config, name string) (dbconfig.DatabaseConfig, error) {
	var dbConfig dbconfig.DatabaseConfig
	raw, ok := cfg.Tidebatch.Database[name]
	if !ok {
		return dbConfig, fmt.Errorf("database configuration '%s' not found", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return dbConfig, fmt.Errorf("database configuration '%s' must be a mapping, got %T", name, raw)
	}
	if err := configbinder.BindProperties(props, &dbConfig); err != nil {
		return dbConfig, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
	}
	return dbConfig, nil
}

// BaseProvider implements database.DBProvider for one Dialect. Connections
// are opened on first use and cached by name.
type BaseProvider struct {
	cfg         *config.Config
	dialect     database.Dialect
	connections map[string]database.DBConnection
	mu          sync.RWMutex
}

// NewBaseProvider creates a provider for dialect reading connection settings from cfg.
func NewBaseProvider(cfg *config.Config, dialect database.Dialect) *BaseProvider {
	return &BaseProvider{
		cfg:         cfg,
		dialect:     dialect,
		connections: make(map[string]database.DBConnection),
	}
}

// Type implements database.DBProvider.
func (p *BaseProvider) Type() string {
	return p.dialect.Name()
}

// GetConnection implements database.DBProvider.
func (p *BaseProvider) GetConnection(name string) (database.DBConnection, error) {
	p.mu.RLock()
	conn, ok := p.connections[name]
	p.mu.RUnlock()
	if ok {
		return conn, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if conn, ok := p.connections[name]; ok {
		return conn, nil
	}
	return p.createAndStoreConnection(name)
}

// ForceReconnect implements database.DBProvider.
func (p *BaseProvider) ForceReconnect(name string) (database.DBConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if existing, ok := p.connections[name]; ok {
		if err := existing.Close(); err != nil {
			logger.Warnf("Failed to close existing connection '%s' before reconnect: %v", name, err)
		}
		delete(p.connections, name)
	}
	conn, err := p.createAndStoreConnection(name)
	if err != nil {
		return nil, err
	}
	logger.Infof("Re-established DB connection: %s (%s)", name, p.Type())
	return conn, nil
}

// createAndStoreConnection opens the named connection. Callers hold mu.
func (p *BaseProvider) createAndStoreConnection(name string) (database.DBConnection, error) {
	dbConfig, err := LookupDatabaseConfig(p.cfg, name)
	if err != nil {
		return nil, err
	}
	if dbConfig.Type != p.Type() {
		return nil, fmt.Errorf("provider type mismatch: expected '%s', got '%s' for connection '%s'", p.Type(), dbConfig.Type, name)
	}
	conn, err := Open(name, dbConfig, p.dialect)
	if err != nil {
		return nil, err
	}
	p.connections[name] = conn
	logger.Infof("Established new DB connection: %s (%s)", name, p.Type())
	return conn, nil
}

// CloseAll implements database.DBProvider.
func (p *BaseProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var lastErr error
	for name, conn := range p.connections {
		if err := conn.Close(); err != nil {
			logger.Errorf("Failed to close connection '%s': %v", name, err)
			lastErr = err
		}
		delete(p.connections, name)
	}
	return lastErr
}

// Open opens a gorm connection for dbConfig and applies the pool settings.
func Open(name string, dbConfig dbconfig.DatabaseConfig, dialect database.Dialect) (*GormDBAdapter, error) {
	dialector, err := dialect.Dialector(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dialect.Name(), err)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 NewGormLogger(dbConfig.LogLevel),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open GORM connection '%s': %w", name, err)
	}

	adapter, err := NewGormDBAdapter(db, dbConfig, dialect, name)
	if err != nil {
		return nil, err
	}
	if dbConfig.Pool.MaxOpenConns > 0 {
		adapter.sqlDB.SetMaxOpenConns(dbConfig.Pool.MaxOpenConns)
	}
	if dbConfig.Pool.MaxIdleConns > 0 {
		adapter.sqlDB.SetMaxIdleConns(dbConfig.Pool.MaxIdleConns)
	}
	if dbConfig.Pool.ConnMaxLifetimeMinutes > 0 {
		adapter.sqlDB.SetConnMaxLifetime(time.Duration(dbConfig.Pool.ConnMaxLifetimeMinutes) * time.Minute)
	}
	return adapter, nil
}

var _ database.DBProvider = (*BaseProvider)(nil)
