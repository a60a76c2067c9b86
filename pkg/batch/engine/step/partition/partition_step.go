package partition

import (
	"context"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// PartitionStep is the master of a partitioned step: it hands its
// StepExecution to a PartitionHandler and aggregates the children.
type PartitionStep struct {
	*step.Base
	handler        PartitionHandler
	splitter       StepExecutionSplitter
	aggregator     StepExecutionAggregator
	metricRecorder metrics.MetricRecorder
}

// NewPartitionStep creates a PartitionStep. The default aggregator is
// DefaultStepExecutionAggregator.
func NewPartitionStep(name string, handler PartitionHandler, splitter StepExecutionSplitter, repo repository.JobRepository, opts ...step.Option) *PartitionStep {
	return &PartitionStep{
		Base:           step.NewBase(name, repo, opts...),
		handler:        handler,
		splitter:       splitter,
		aggregator:     DefaultStepExecutionAggregator{},
		metricRecorder: metrics.NewNoOpMetricRecorder(),
	}
}

// SetAggregator replaces the aggregator.
func (s *PartitionStep) SetAggregator(aggregator StepExecutionAggregator) {
	s.aggregator = aggregator
}

// SetMetricRecorder sets the recorder the number of partitions is reported to.
func (s *PartitionStep) SetMetricRecorder(recorder metrics.MetricRecorder) {
	if recorder != nil {
		s.metricRecorder = recorder
	}
}

// Execute implements port.Step.
func (s *PartitionStep) Execute(ctx context.Context, se *model.StepExecution) error {
	return s.Run(ctx, se, s.doExecute)
}

func (s *PartitionStep) doExecute(ctx context.Context, se *model.StepExecution) error {
	children, err := s.handler.Handle(ctx, s.splitter, se)
	if err != nil {
		return err
	}
	s.metricRecorder.RecordPartitions(ctx, se.StepName, len(children))

	se.UpgradeStatus(model.BatchStatusCompleted)
	if err := s.aggregator.Aggregate(ctx, se, children); err != nil {
		return err
	}
	logger.Infof("PartitionStep '%s': %d partitions finished with status %s.", se.StepName, len(children), se.Status)

	if se.Status.IsUnsuccessful() {
		return exception.NewJobExecutionErrorf(exception.ErrStepExecutionUnsuccessful,
			"partition handler returned an unsuccessful step: %s", se.Status)
	}
	return nil
}

var _ port.Step = (*PartitionStep)(nil)
