package writer_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/config"
	gormadapter "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/storage/local"
	"github.com/tigerroll/tidebatch/pkg/batch/component/step/writer"
	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/tx"
)

type score struct {
	ID    int64  `gorm:"primaryKey" parquet:"name=id, type=INT64"`
	Name  string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Value int64  `parquet:"name=value, type=INT64"`
}

func openSQLite(t *testing.T) *gormadapter.GormDBAdapter {
	t.Helper()
	conn, err := gormadapter.Open("app", dbconfig.DatabaseConfig{
		Type:     "sqlite",
		Database: filepath.Join(t.TempDir(), "app.db"),
		LogLevel: "silent",
		Pool:     dbconfig.PoolConfig{MaxOpenConns: 1},
	}, sqlite.Dialect{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.DB(context.Background()).AutoMigrate(&score{}))
	return conn
}

func TestGormBulkWriter_InsertsInBatches(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	w := writer.NewGormBulkWriter[score](conn, "scores", "", 2)

	require.NoError(t, w.Write(ctx, []score{{ID: 1, Name: "a", Value: 1}, {ID: 2, Name: "b", Value: 2}, {ID: 3, Name: "c", Value: 3}}))
	require.NoError(t, w.Write(ctx, nil))

	var count int64
	require.NoError(t, conn.DB(ctx).Model(&score{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)

	err := w.Write(ctx, []score{{ID: 1, Name: "dup"}})
	assert.Error(t, err)
}

func TestGormBulkWriter_Upsert(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	require.NoError(t, writer.NewGormBulkWriter[score](conn, "scores", "", 10).Write(ctx, []score{{ID: 1, Name: "a", Value: 1}}))

	upsert := writer.NewGormBulkWriter[score](conn, "scores", "", 10).OnConflict([]string{"id"}, "value")
	require.NoError(t, upsert.Write(ctx, []score{{ID: 1, Name: "ignored", Value: 10}, {ID: 2, Name: "b", Value: 2}}))

	var got score
	require.NoError(t, conn.DB(ctx).First(&got, 1).Error)
	assert.Equal(t, "a", got.Name)
	assert.Equal(t, int64(10), got.Value)

	skip := writer.NewGormBulkWriter[score](conn, "scores", "", 10).OnConflict([]string{"id"})
	require.NoError(t, skip.Write(ctx, []score{{ID: 2, Name: "b", Value: 99}}))
	var kept score
	require.NoError(t, conn.DB(ctx).First(&kept, 2).Error)
	assert.Equal(t, int64(2), kept.Value)
}

func TestGormBulkWriter_JoinsChunkTransaction(t *testing.T) {
	ctx := context.Background()
	conn := openSQLite(t)
	w := writer.NewGormBulkWriter[score](conn, "scores", "", 10)

	err := tx.Execute(ctx, gormadapter.NewGormTransactionManager(conn), func(ctx context.Context) error {
		if err := w.Write(ctx, []score{{ID: 1, Name: "a"}}); err != nil {
			return err
		}
		return assert.AnError
	})
	require.ErrorIs(t, err, assert.AnError)

	var count int64
	require.NoError(t, conn.DB(ctx).Model(&score{}).Count(&count).Error)
	assert.Zero(t, count)
}

func newResolver(t *testing.T) (storage.ConnectionResolver, string) {
	dir := t.TempDir()
	cfg := config.NewConfig()
	cfg.Tidebatch.Storage["exports"] = map[string]interface{}{"type": "local", "base_dir": dir}
	return storage.NewConnectionResolver(storage.ResolverParams{Cfg: cfg, Providers: []storage.Provider{local.NewProvider(cfg)}}), dir
}

func assertParquetFile(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "PAR1", string(data[:4]))
	assert.Equal(t, "PAR1", string(data[len(data)-4:]))
}

func TestParquetWriter_OneFilePerChunkAndKey(t *testing.T) {
	ctx := context.Background()
	resolver, dir := newResolver(t)
	w, err := writer.NewParquetWriter[score]("scores", writer.ParquetWriterConfig{
		StorageRef:    "exports",
		OutputBaseDir: "scores",
	}, resolver, func(s score) (string, error) {
		if s.Value%2 == 0 {
			return "parity=even", nil
		}
		return "parity=odd", nil
	})
	require.NoError(t, err)

	ec := model.NewExecutionContext()
	require.NoError(t, w.Open(ctx, ec))
	require.NoError(t, w.Write(ctx, []score{{ID: 1, Name: "a", Value: 1}, {ID: 2, Name: "b", Value: 2}}))
	require.NoError(t, w.Update(ctx, ec))
	require.NoError(t, w.Write(ctx, []score{{ID: 3, Name: "c", Value: 3}}))
	require.NoError(t, w.Update(ctx, ec))
	require.NoError(t, w.Close(ctx))

	assertParquetFile(t, filepath.Join(dir, "scores", "parity=odd", "part-00000.parquet"))
	assertParquetFile(t, filepath.Join(dir, "scores", "parity=even", "part-00000.parquet"))
	assertParquetFile(t, filepath.Join(dir, "scores", "parity=odd", "part-00001.parquet"))
	assert.Equal(t, 2, ec.GetInt("scores.part.count", 0))
}

func TestParquetWriter_RestartRewritesUncommittedPart(t *testing.T) {
	ctx := context.Background()
	resolver, dir := newResolver(t)
	w, err := writer.NewParquetWriter[score]("scores", writer.ParquetWriterConfig{StorageRef: "exports", CompressionType: "none"}, resolver, nil)
	require.NoError(t, err)

	ec := model.NewExecutionContext()
	ec.Put("scores.part.count", 3)
	require.NoError(t, w.Open(ctx, ec))
	require.NoError(t, w.Write(ctx, []score{{ID: 1, Name: "a", Value: 1}}))

	assertParquetFile(t, filepath.Join(dir, "part-00003.parquet"))
}

func TestNewParquetWriter_Validation(t *testing.T) {
	resolver, _ := newResolver(t)
	_, err := writer.NewParquetWriter[score]("scores", writer.ParquetWriterConfig{}, resolver, nil)
	assert.Error(t, err)
	_, err = writer.NewParquetWriter[score]("scores", writer.ParquetWriterConfig{StorageRef: "exports", CompressionType: "lz77"}, resolver, nil)
	assert.Error(t, err)
}
