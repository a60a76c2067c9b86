// Package config defines the tidebatch configuration tree and its loader.
package config

// EmbeddedConfig holds the raw YAML configuration, typically embedded into the binary by main.
type EmbeddedConfig []byte

// LogLevel defines the logging level for the application.
type LogLevel string

const (
	LogLevelDebug  LogLevel = "DEBUG"
	LogLevelInfo   LogLevel = "INFO"
	LogLevelWarn   LogLevel = "WARN"
	LogLevelError  LogLevel = "ERROR"
	LogLevelFatal  LogLevel = "FATAL"
	LogLevelSilent LogLevel = "SILENT"
)

// Task executor types.
const (
	TaskExecutorSync = "sync"
	TaskExecutorPool = "pool"
)

// Job repository types.
const (
	JobRepositoryInMemory = "inmemory"
	JobRepositorySQL      = "sql"
)

// Metrics backends.
const (
	MetricsBackendPrometheus = "prometheus"
	MetricsBackendOTel       = "otel"
)

// Telemetry exporters.
const (
	ExporterNone     = "none"
	ExporterOTLPHTTP = "otlp-http"
	ExporterOTLPGRPC = "otlp-grpc"
)

// TaskExecutorConfig selects how partitions and split flows are executed.
type TaskExecutorConfig struct {
	// Type is "sync" (caller goroutine) or "pool" (bounded goroutine pool).
	Type string `yaml:"type"`
	// PoolSize is the maximum number of concurrently running tasks for the pool executor.
	PoolSize int `yaml:"pool_size"`
}

// BatchConfig holds engine defaults for steps.
type BatchConfig struct {
	// JobName is the default job name if not specified elsewhere.
	JobName string `yaml:"job_name"`
	// ChunkSize is the default commit interval for chunk-oriented steps.
	ChunkSize int `yaml:"chunk_size"`
	// GridSize is the default number of partitions requested from a partitioner.
	GridSize int `yaml:"grid_size"`
	// Buffering keeps the last chunk in the chunk context so a failed write can be retried without re-reading.
	Buffering bool `yaml:"buffering"`
	// StartLimit is the default number of times a step may be started for one job instance. Zero means unlimited.
	StartLimit int `yaml:"start_limit"`
	// TaskExecutor configures partition and split execution.
	TaskExecutor TaskExecutorConfig `yaml:"task_executor"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC", "Asia/Tokyo").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// JobRepositoryConfig selects the storage behind the job repository.
type JobRepositoryConfig struct {
	// Type is "inmemory" or "sql".
	Type string `yaml:"type"`
	// DBRef names the entry under tidebatch.database used by the sql repository.
	DBRef string `yaml:"db_ref"`
	// AutoMigrate applies the embedded schema migrations on startup.
	AutoMigrate bool `yaml:"auto_migrate"`
}

// MetricsConfig enables metric recording.
type MetricsConfig struct {
	// Enabled turns on the metric recorder and the metrics listeners.
	Enabled bool `yaml:"enabled"`
	// Backend is "prometheus" or "otel".
	Backend string `yaml:"backend"`
	// Exporter is used by the otel backend: "none", "otlp-http" or "otlp-grpc".
	Exporter string `yaml:"exporter"`
	// Endpoint is the OTLP collector endpoint for the otel backend, or the
	// Pushgateway URL the prometheus backend pushes to when the application stops.
	Endpoint string `yaml:"endpoint"`
	// Insecure disables TLS for the OTLP exporter.
	Insecure bool `yaml:"insecure"`
	// AsyncBufferSize is the queue size of the asynchronous recorder. Zero
	// records synchronously.
	AsyncBufferSize int `yaml:"async_buffer_size"`
}

// TracingConfig enables span creation for jobs and steps.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
	// ServiceName is reported as the service.name resource attribute.
	ServiceName string `yaml:"service_name"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
	// Insecure disables TLS for the OTLP exporter.
	Insecure bool `yaml:"insecure"`
}

// InfrastructureConfig holds settings for infrastructure components.
type InfrastructureConfig struct {
	JobRepository JobRepositoryConfig `yaml:"job_repository"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Tracing       TracingConfig       `yaml:"tracing"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// MaskedParameterKeys lists JobParameters keys whose values are masked in logs.
	MaskedParameterKeys []string `yaml:"masked_parameter_keys"`
}

// TidebatchConfig holds everything under the "tidebatch" top-level key.
type TidebatchConfig struct {
	Batch          BatchConfig          `yaml:"batch"`
	System         SystemConfig         `yaml:"system"`
	Infrastructure InfrastructureConfig `yaml:"infrastructure"`
	Security       SecurityConfig       `yaml:"security"`
	// Database holds named database connection settings, decoded lazily by the database adapter.
	Database map[string]interface{} `yaml:"database"`
	// Storage holds named object storage settings, decoded by the storage adapter.
	Storage map[string]interface{} `yaml:"storage"`
}

// Config is the root of the application configuration.
type Config struct {
	Tidebatch TidebatchConfig `yaml:"tidebatch"`
}

// GlobalConfig is the configuration shared across the application, set by NewConfigProvider.
var GlobalConfig *Config

// GetMaskedParameterKeys returns the keys to mask from the global configuration.
func GetMaskedParameterKeys() []string {
	if GlobalConfig == nil {
		return []string{}
	}
	return GlobalConfig.Tidebatch.Security.MaskedParameterKeys
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Tidebatch: TidebatchConfig{
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: string(LogLevelInfo)},
			},
			Batch: BatchConfig{
				ChunkSize: 10,
				GridSize:  4,
				Buffering: true,
				TaskExecutor: TaskExecutorConfig{
					Type:     TaskExecutorPool,
					PoolSize: 4,
				},
			},
			Infrastructure: InfrastructureConfig{
				JobRepository: JobRepositoryConfig{
					Type:  JobRepositoryInMemory,
					DBRef: "metadata",
				},
				Metrics: MetricsConfig{Backend: MetricsBackendPrometheus, Exporter: ExporterNone},
				Tracing: TracingConfig{Exporter: ExporterNone, ServiceName: "tidebatch"},
			},
			Security: SecurityConfig{
				MaskedParameterKeys: []string{"password", "api_key", "secret"},
			},
			Database: map[string]interface{}{},
			Storage:  map[string]interface{}{},
		},
	}
}
