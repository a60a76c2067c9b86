package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
)

// Module contributes the logging listeners to the listener groups collected
// by runner.JobFactory.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLoggingJobListener,
		fx.As(new(port.JobExecutionListener)), fx.ResultTags(`group:"jobListeners"`))),
	fx.Provide(fx.Annotate(NewLoggingStepListener,
		fx.As(new(port.StepExecutionListener)), fx.ResultTags(`group:"stepListeners"`))),
	fx.Provide(fx.Annotate(NewLoggingChunkListener,
		fx.As(new(port.ChunkListener)), fx.ResultTags(`group:"chunkListeners"`))),
)
