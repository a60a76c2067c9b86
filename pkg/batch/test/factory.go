package test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm/sqlite"
)

// OpenSQLite opens a file-backed SQLite connection named name in a temporary
// directory. The connection is closed when the test ends.
func OpenSQLite(t *testing.T, name string) *gormadapter.GormDBAdapter {
	t.Helper()
	conn, err := gormadapter.Open(name, dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), name+".db"),
		LogLevel: "silent",
		Pool:     dbconfig.PoolConfig{MaxOpenConns: 1},
	}, sqlite.Dialect{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}
