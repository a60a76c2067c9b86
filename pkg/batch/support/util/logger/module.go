package logger

import "go.uber.org/fx"

// Module installs the fx event logger adapter so container lifecycle events
// go through the same zap-backed facade as the rest of the framework.
var Module = fx.Options(
	fx.WithLogger(NewFxLoggerAdapter),
)
