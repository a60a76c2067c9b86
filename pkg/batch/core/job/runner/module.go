package runner

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	"github.com/tigerroll/tidebatch/pkg/batch/core/flow"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step"
)

// JobFactoryParams defines dependencies for JobFactory. Listeners are
// collected from the "jobListeners", "stepListeners" and "chunkListeners"
// value groups.
type JobFactoryParams struct {
	fx.In
	Config         *config.Config
	JobRepository  repository.JobRepository
	MetricRecorder metrics.MetricRecorder       `optional:"true"`
	Tracer         metrics.Tracer               `optional:"true"`
	JobListeners   []port.JobExecutionListener  `group:"jobListeners"`
	StepListeners  []port.StepExecutionListener `group:"stepListeners"`
	ChunkListeners []port.ChunkListener         `group:"chunkListeners"`
}

// JobFactory builds FlowJobs and the step options shared by their steps from
// the components registered in the application.
type JobFactory struct {
	repo           repository.JobRepository
	recorder       metrics.MetricRecorder
	tracer         metrics.Tracer
	startLimit     int
	jobListeners   []port.JobExecutionListener
	stepListeners  []port.StepExecutionListener
	chunkListeners []port.ChunkListener
}

// NewJobFactory creates a JobFactory.
func NewJobFactory(p JobFactoryParams) *JobFactory {
	f := &JobFactory{
		repo:           p.JobRepository,
		recorder:       p.MetricRecorder,
		tracer:         p.Tracer,
		jobListeners:   p.JobListeners,
		stepListeners:  p.StepListeners,
		chunkListeners: p.ChunkListeners,
	}
	if p.Config != nil {
		f.startLimit = p.Config.Tidebatch.Batch.StartLimit
	}
	if f.recorder == nil {
		f.recorder = metrics.NewNoOpMetricRecorder()
	}
	if f.tracer == nil {
		f.tracer = metrics.NewNoOpTracer()
	}
	return f
}

// JobRepository returns the repository jobs built by the factory use.
func (f *JobFactory) JobRepository() repository.JobRepository { return f.repo }

// NewFlowJob creates a FlowJob wired with the registered job listeners, the
// metric recorder and the tracer. opts are applied last.
func (f *JobFactory) NewFlowJob(name string, fl flow.Flow, opts ...JobOption) *FlowJob {
	base := []JobOption{
		WithMetricRecorder(f.recorder),
		WithJobTracer(f.tracer),
		WithJobListeners(f.jobListeners...),
	}
	return NewFlowJob(name, fl, f.repo, append(base, opts...)...)
}

// NewFlowStep creates a FlowStep with the shared step options.
func (f *JobFactory) NewFlowStep(name string, fl flow.Flow, opts ...step.Option) *FlowStep {
	return NewFlowStep(name, fl, f.repo, append(f.StepOptions(), opts...)...)
}

// StepOptions returns the options every step of the application starts from:
// registered listeners, the tracer and the configured start limit.
func (f *JobFactory) StepOptions() []step.Option {
	opts := []step.Option{
		step.WithTracer(f.tracer),
		step.WithListeners(f.stepListeners...),
		step.WithChunkListeners(f.chunkListeners...),
	}
	if f.startLimit > 0 {
		opts = append(opts, step.WithStartLimit(f.startLimit))
	}
	return opts
}

// Module provides the JobFactory.
var Module = fx.Options(
	fx.Provide(NewJobFactory),
)
