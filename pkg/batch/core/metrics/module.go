package metrics

import (
	"go.uber.org/fx"
)

// NoOpModule provides a NoOpMetricRecorder and a NoOpTracer, for applications
// that do not install a telemetry backend.
var NoOpModule = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
