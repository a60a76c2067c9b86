package flow

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// FlowExecutionAggregator reduces the results of parallel flows to one status.
type FlowExecutionAggregator interface {
	Aggregate(results []*FlowExecution) model.FlowExecutionStatus
}

// MaxStatusAggregator returns the most severe status of the results, or
// UNKNOWN when there are none.
type MaxStatusAggregator struct{}

// Aggregate implements FlowExecutionAggregator.
func (MaxStatusAggregator) Aggregate(results []*FlowExecution) model.FlowExecutionStatus {
	if len(results) == 0 {
		return model.FlowStatusUnknown
	}
	status := results[0].Status
	for _, r := range results[1:] {
		status = model.MaxFlowStatus(status, r.Status)
	}
	return status
}

// SplitState runs several flows in parallel on a TaskExecutor and waits for
// all of them. Each branch runs on its own forked executor scope.
type SplitState struct {
	name       string
	flows      []Flow
	executor   port.TaskExecutor
	aggregator FlowExecutionAggregator
}

// NewSplitState creates a SplitState running flows on taskExecutor.
func NewSplitState(name string, taskExecutor port.TaskExecutor, flows ...Flow) *SplitState {
	return &SplitState{
		name:       name,
		flows:      flows,
		executor:   taskExecutor,
		aggregator: MaxStatusAggregator{},
	}
}

// WithAggregator replaces the aggregator and returns s.
func (s *SplitState) WithAggregator(aggregator FlowExecutionAggregator) *SplitState {
	s.aggregator = aggregator
	return s
}

func (s *SplitState) Name() string { return s.name }
func (s *SplitState) IsEndState() bool { return false }

// Flows returns the parallel flows.
func (s *SplitState) Flows() []Flow { return append([]Flow(nil), s.flows...) }

// Handle submits every flow, waits for all submitted flows to finish, and
// aggregates their statuses. A rejected submission stops further submissions
// and fails the state once the already running branches are done.
func (s *SplitState) Handle(ctx context.Context, executor FlowExecutor) (model.FlowExecutionStatus, error) {
	results := make([]*FlowExecution, len(s.flows))
	var g errgroup.Group

	for i, f := range s.flows {
		branch := executor.Fork()
		done := make(chan struct{})
		var runErr error

		task := func() {
			defer close(done)
			defer func() {
				if r := recover(); r != nil {
					runErr = exception.NewBatchErrorf("flow", "flow '%s' panicked: %v", f.Name(), r)
				}
			}()
			results[i], runErr = f.Start(ctx, branch)
		}
		if err := s.executor.Execute(task); err != nil {
			logger.Errorf("Split '%s': task executor rejected flow '%s': %v", s.name, f.Name(), err)
			rejected := fmt.Errorf("task executor rejected flow '%s': %w", f.Name(), err)
			g.Go(func() error { return rejected })
			break
		}
		g.Go(func() error {
			<-done
			return runErr
		})
	}

	if err := g.Wait(); err != nil {
		return model.FlowStatusUnknown, err
	}
	status := s.aggregator.Aggregate(results)
	logger.Debugf("Split '%s' finished with %s.", s.name, status)
	return status, nil
}

var _ State = (*SplitState)(nil)
