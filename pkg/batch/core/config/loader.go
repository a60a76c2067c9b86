package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string              `name:"envFilePath" optional:"true"`
	Expander       EnvironmentExpander `optional:"true"`
}

// LoadConfig builds the configuration in four layers: defaults from NewConfig,
// the .env file (if any) loaded into the process environment, the embedded YAML
// after placeholder expansion, and finally TIDEBATCH_* environment variables.
//
// Parameters:
//
//	envFilePath: The .env file to load. An empty path tries ".env" in the working directory.
//	embeddedConfig: The raw YAML configuration.
//
// Returns:
//
//	The loaded Config, or a BatchError if YAML or environment values are malformed.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig, NewOsEnvironmentExpander())
}

func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	cfg := NewConfig()

	if len(embeddedConfig) > 0 {
		expanded, err := expander.Expand(embeddedConfig)
		if err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to expand environment placeholders", err, false, false)
		}
		// Decoding onto the defaults keeps every key the YAML does not mention.
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, exception.NewBatchError(moduleName, "failed to unmarshal embedded config", err, false, false)
		}
	}

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewBatchError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	if err := validate(cfg); err != nil {
		return nil, exception.NewBatchError(moduleName, "invalid configuration", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is the fx provider for *Config. It also publishes GlobalConfig
// and applies the configured log level.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	expander := params.Expander
	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig, expander)
	if err != nil {
		return nil, err
	}

	GlobalConfig = cfg
	logger.SetLogLevel(cfg.Tidebatch.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Tidebatch.System.Logging.Level)
	return cfg, nil
}

func validate(cfg *Config) error {
	b := cfg.Tidebatch.Batch
	if b.ChunkSize <= 0 {
		return fmt.Errorf("batch.chunk_size must be positive, got %d", b.ChunkSize)
	}
	if b.GridSize <= 0 {
		return fmt.Errorf("batch.grid_size must be positive, got %d", b.GridSize)
	}
	if b.StartLimit < 0 {
		return fmt.Errorf("batch.start_limit must not be negative, got %d", b.StartLimit)
	}
	switch b.TaskExecutor.Type {
	case TaskExecutorSync:
	case TaskExecutorPool:
		if b.TaskExecutor.PoolSize <= 0 {
			return fmt.Errorf("batch.task_executor.pool_size must be positive, got %d", b.TaskExecutor.PoolSize)
		}
	default:
		return fmt.Errorf("unknown batch.task_executor.type '%s'", b.TaskExecutor.Type)
	}
	switch repo := cfg.Tidebatch.Infrastructure.JobRepository; repo.Type {
	case JobRepositoryInMemory:
	case JobRepositorySQL:
		if _, ok := cfg.Tidebatch.Database[repo.DBRef]; !ok {
			return fmt.Errorf("job repository references unknown database '%s'", repo.DBRef)
		}
	default:
		return fmt.Errorf("unknown infrastructure.job_repository.type '%s'", repo.Type)
	}
	infra := cfg.Tidebatch.Infrastructure
	if infra.Metrics.Enabled {
		if b := infra.Metrics.Backend; b != MetricsBackendPrometheus && b != MetricsBackendOTel {
			return fmt.Errorf("unknown infrastructure.metrics.backend '%s'", b)
		}
		if err := validateExporter("metrics", infra.Metrics.Exporter); err != nil {
			return err
		}
	}
	if infra.Tracing.Enabled {
		if err := validateExporter("tracing", infra.Tracing.Exporter); err != nil {
			return err
		}
	}
	return nil
}

func validateExporter(section, exporter string) error {
	switch exporter {
	case "", ExporterNone, ExporterOTLPHTTP, ExporterOTLPGRPC:
		return nil
	}
	return fmt.Errorf("unknown infrastructure.%s.exporter '%s'", section, exporter)
}

// loadStructFromEnv recursively overrides struct fields from environment variables.
// Variable names are the upper-cased chain of yaml tags joined by "_", for
// example TIDEBATCH_BATCH_CHUNK_SIZE.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField converts value to the kind of field and assigns it.
// Maps and other unsupported kinds are left untouched.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return nil
		}
		parts := strings.Split(value, ",")
		out := reflect.MakeSlice(field.Type(), 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = reflect.Append(out, reflect.ValueOf(p))
			}
		}
		field.Set(out)
	}
	return nil
}
