package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts the logging section for components that need only it.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Tidebatch.System.Logging
}

// NewBatchConfigProvider extracts the batch section.
func NewBatchConfigProvider(cfg *Config) *BatchConfig {
	return &cfg.Tidebatch.Batch
}

// Module provides *Config and its sections to fx. The application supplies
// EmbeddedConfig (and optionally a named "envFilePath" string).
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewBatchConfigProvider),
	fx.Provide(fx.Annotate(NewOsEnvironmentExpander, fx.As(new(EnvironmentExpander)))),
)
