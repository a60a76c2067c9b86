package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tidebatch/pkg/batch/core/config"
)

func TestNewConfig_Defaults(t *testing.T) {
	cfg := config.NewConfig()

	assert.Equal(t, "UTC", cfg.Tidebatch.System.Timezone)
	assert.Equal(t, "INFO", cfg.Tidebatch.System.Logging.Level)
	assert.Equal(t, 10, cfg.Tidebatch.Batch.ChunkSize)
	assert.Equal(t, 4, cfg.Tidebatch.Batch.GridSize)
	assert.True(t, cfg.Tidebatch.Batch.Buffering)
	assert.Equal(t, config.TaskExecutorPool, cfg.Tidebatch.Batch.TaskExecutor.Type)
	assert.Equal(t, config.JobRepositoryInMemory, cfg.Tidebatch.Infrastructure.JobRepository.Type)
	assert.Equal(t, "metadata", cfg.Tidebatch.Infrastructure.JobRepository.DBRef)
	assert.NotEmpty(t, cfg.Tidebatch.Security.MaskedParameterKeys)
}

func TestLoadConfig_YAMLOverridesDefaults(t *testing.T) {
	t.Setenv("TIDEBATCH_TEST_DB_PATH", "/tmp/meta.db")
	yml := []byte(`
tidebatch:
  batch:
    chunk_size: 25
    buffering: false
    task_executor:
      type: sync
  system:
    logging:
      level: DEBUG
  infrastructure:
    job_repository:
      type: sql
      db_ref: meta
  database:
    meta:
      type: sqlite
      database: ${TIDEBATCH_TEST_DB_PATH}
`)
	cfg, err := config.LoadConfig("", yml)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Tidebatch.Batch.ChunkSize)
	assert.False(t, cfg.Tidebatch.Batch.Buffering)
	assert.Equal(t, 4, cfg.Tidebatch.Batch.GridSize, "keys absent from YAML keep their defaults")
	assert.Equal(t, config.TaskExecutorSync, cfg.Tidebatch.Batch.TaskExecutor.Type)
	assert.Equal(t, "DEBUG", cfg.Tidebatch.System.Logging.Level)
	assert.Equal(t, "UTC", cfg.Tidebatch.System.Timezone)

	meta, ok := cfg.Tidebatch.Database["meta"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "/tmp/meta.db", meta["database"])
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TIDEBATCH_BATCH_CHUNK_SIZE", "7")
	t.Setenv("TIDEBATCH_BATCH_START_LIMIT", "3")
	t.Setenv("TIDEBATCH_INFRASTRUCTURE_TRACING_ENABLED", "true")
	t.Setenv("TIDEBATCH_SECURITY_MASKED_PARAMETER_KEYS", "token, pin")

	cfg, err := config.LoadConfig("", []byte("tidebatch:\n  batch:\n    chunk_size: 25\n"))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Tidebatch.Batch.ChunkSize)
	assert.Equal(t, 3, cfg.Tidebatch.Batch.StartLimit)
	assert.True(t, cfg.Tidebatch.Infrastructure.Tracing.Enabled)
	assert.Equal(t, []string{"token", "pin"}, cfg.Tidebatch.Security.MaskedParameterKeys)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"malformed yaml", "tidebatch: [unclosed"},
		{"zero chunk size", "tidebatch:\n  batch:\n    chunk_size: -1\n"},
		{"unknown executor", "tidebatch:\n  batch:\n    task_executor:\n      type: cluster\n"},
		{"missing database ref", "tidebatch:\n  infrastructure:\n    job_repository:\n      type: sql\n      db_ref: nope\n"},
		{"unknown metrics backend", "tidebatch:\n  infrastructure:\n    metrics:\n      enabled: true\n      backend: statsd\n"},
		{"unknown tracing exporter", "tidebatch:\n  infrastructure:\n    tracing:\n      enabled: true\n      exporter: zipkin\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadConfig("", []byte(tt.yml))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_BadEnvValue(t *testing.T) {
	t.Setenv("TIDEBATCH_BATCH_GRID_SIZE", "many")
	_, err := config.LoadConfig("", nil)
	assert.Error(t, err)
}
