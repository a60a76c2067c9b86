package runner

import (
	"context"
	"errors"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	"github.com/tigerroll/tidebatch/pkg/batch/core/flow"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// FlowStep runs a nested flow as one step. The steps of the flow are
// recorded in the same job execution and follow the usual restart rules; the
// FlowStep ends with the status of the flow.
type FlowStep struct {
	*step.Base
	flow flow.Flow
}

// NewFlowStep creates a FlowStep named name running f.
func NewFlowStep(name string, f flow.Flow, repo repository.JobRepository, opts ...step.Option) *FlowStep {
	return &FlowStep{Base: step.NewBase(name, repo, opts...), flow: f}
}

// Flow returns the nested flow.
func (s *FlowStep) Flow() flow.Flow { return s.flow }

// Execute implements port.Step.
func (s *FlowStep) Execute(ctx context.Context, se *model.StepExecution) error {
	return s.Run(ctx, se, s.doExecute)
}

func (s *FlowStep) doExecute(ctx context.Context, se *model.StepExecution) error {
	repo := s.JobRepository()
	executor := NewJobFlowExecutor(repo, NewSimpleStepHandler(repo, nil), se.JobExecution)
	result, err := s.flow.Start(ctx, executor)
	if err != nil {
		var jobErr *exception.JobExecutionError
		if errors.As(err, &jobErr) {
			return jobErr
		}
		return exception.NewBatchError(s.Name(), "flow execution ended unexpectedly", err, false, false)
	}

	executor.AddExitStatus(string(result.Status))
	se.ExitStatus = executor.ExitStatus()
	switch status := result.Status.ToBatchStatus(); {
	case status == model.BatchStatusStopped:
		return exception.NewJobInterruptedError("flow '%s' of step '%s' stopped", s.flow.Name(), s.Name())
	case status.IsUnsuccessful():
		return exception.NewJobExecutionErrorf(exception.ErrStepExecutionUnsuccessful,
			"flow '%s' of step '%s' ended with %s", s.flow.Name(), s.Name(), result.Status)
	}
	return nil
}

var _ port.Step = (*FlowStep)(nil)
