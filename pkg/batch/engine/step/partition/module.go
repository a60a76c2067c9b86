package partition

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step"
)

// Factory builds partitioned steps from the configured grid size, task
// executor, repository and metric recorder.
type Factory struct {
	repo     repository.JobRepository
	executor port.TaskExecutor
	recorder metrics.MetricRecorder
	gridSize int
}

// FactoryParams defines the dependencies of Factory.
type FactoryParams struct {
	fx.In
	Config         *config.Config
	Repository     repository.JobRepository
	TaskExecutor   port.TaskExecutor
	MetricRecorder metrics.MetricRecorder `optional:"true"`
}

// NewFactory creates a Factory.
func NewFactory(p FactoryParams) *Factory {
	recorder := p.MetricRecorder
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &Factory{
		repo:     p.Repository,
		executor: p.TaskExecutor,
		recorder: recorder,
		gridSize: p.Config.Tidebatch.Batch.GridSize,
	}
}

// GridSize returns the configured grid size.
func (f *Factory) GridSize() int { return f.gridSize }

// NewPartitionStep creates the master step name running worker over the
// partitions of partitioner. The children are named "<name>:<partition>".
func (f *Factory) NewPartitionStep(name string, worker port.Step, partitioner Partitioner, opts ...step.Option) *PartitionStep {
	splitter := NewSimpleStepExecutionSplitter(f.repo, name, worker.IsAllowStartIfComplete(), partitioner)
	handler := NewTaskExecutorPartitionHandler(worker, f.executor, f.repo, f.gridSize)
	s := NewPartitionStep(name, handler, splitter, f.repo, opts...)
	s.SetMetricRecorder(f.recorder)
	return s
}

// Module provides the partition step Factory.
var Module = fx.Options(
	fx.Provide(NewFactory),
)
