package metrics

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
)

// Module contributes the chunk metrics listener and, when configured, the
// asynchronous MetricRecorder decorator.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewMetricsChunkListener,
		fx.As(new(port.ChunkListener)), fx.ResultTags(`group:"chunkListeners"`))),
	fx.Decorate(DecorateAsync),
)
