package usecase

import (
	"go.uber.org/fx"

	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
)

// Module provides the JobRegistry (filled from the "jobs" value group), the
// JobLauncher, the JobOperator and the JobExplorer. Jobs run synchronously on
// the goroutine that calls Launch.
var Module = fx.Options(
	fx.Provide(newJobRegistryFromGroup),
	fx.Provide(func(repo repository.JobRepository, registry *JobRegistry) *SimpleJobLauncher {
		return NewSimpleJobLauncher(repo, registry)
	}),
	fx.Provide(func(l *SimpleJobLauncher) JobLauncher { return l }),
	fx.Provide(fx.Annotate(
		NewDefaultJobOperator,
		fx.As(new(JobOperator)),
	)),
	fx.Provide(fx.Annotate(
		NewSimpleJobExplorer,
		fx.As(new(JobExplorer)),
	)),
)
