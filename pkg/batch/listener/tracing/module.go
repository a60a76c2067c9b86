package tracing

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
)

// Module contributes the tracing listeners. The Tracer itself is provided by
// the infrastructure layer (pkg/batch/infrastructure/metrics).
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewTracingJobListener,
		fx.As(new(port.JobExecutionListener)), fx.ResultTags(`group:"jobListeners"`))),
	fx.Provide(fx.Annotate(NewTracingChunkListener,
		fx.As(new(port.ChunkListener)), fx.ResultTags(`group:"chunkListeners"`))),
)
