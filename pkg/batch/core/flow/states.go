package flow

import (
	"context"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// StepState runs a step. Its status is the exit code of the StepExecution.
type StepState struct {
	name string
	step port.Step
}

// NewStepState creates a StepState named after step.
func NewStepState(step port.Step) *StepState {
	return &StepState{name: step.Name(), step: step}
}

// NewNamedStepState creates a StepState with an explicit state name, for
// flows that run the same step more than once.
func NewNamedStepState(name string, step port.Step) *StepState {
	return &StepState{name: name, step: step}
}

func (s *StepState) Name() string { return s.name }
func (s *StepState) IsEndState() bool { return false }

// Step returns the wrapped step.
func (s *StepState) Step() port.Step { return s.step }

// Handle abandons the previous StepExecution of the scope if it failed, so a
// restart does not replay a step the flow already routed around, then runs
// the step.
func (s *StepState) Handle(ctx context.Context, executor FlowExecutor) (model.FlowExecutionStatus, error) {
	if err := executor.AbandonStepExecution(ctx); err != nil {
		return model.FlowStatusUnknown, err
	}
	code, err := executor.ExecuteStep(ctx, s.step)
	if err != nil {
		return model.FlowStatusUnknown, err
	}
	return model.FlowExecutionStatus(code), nil
}

// EndState ends a flow with a fixed status and adds its exit code to the job.
//
// A STOPPED end state supports stop-and-restart: the first time it is reached
// the flow stops; when the job is restarted and the flow reaches it again
// without having run a step, it reports COMPLETED so the flow moves on to the
// state configured for the restart.
type EndState struct {
	name    string
	status  model.FlowExecutionStatus
	code    string
	abandon bool
}

// NewEndState creates an EndState returning status with exit code code.
// An empty code uses the status itself.
func NewEndState(name string, status model.FlowExecutionStatus, code string) *EndState {
	if code == "" {
		code = string(status)
	}
	return &EndState{name: name, status: status, code: code}
}

// NewStopState creates a STOPPED EndState. With abandon set, the last
// StepExecution is marked ABANDONED so a restart does not repeat it.
func NewStopState(name string, abandon bool) *EndState {
	s := NewEndState(name, model.FlowStatusStopped, string(model.FlowStatusStopped))
	s.abandon = abandon
	return s
}

func (s *EndState) Name() string { return s.name }
func (s *EndState) IsEndState() bool { return true }

// Status returns the status the state ends the flow with.
func (s *EndState) Status() model.FlowExecutionStatus { return s.status }

// Handle implements State.
func (s *EndState) Handle(ctx context.Context, executor FlowExecutor) (model.FlowExecutionStatus, error) {
	// A step whose outcome could not be persisted leaves the job unrecoverable.
	if se := executor.StepExecution(); se != nil && se.Status == model.BatchStatusUnknown {
		return model.FlowStatusUnknown, nil
	}
	if s.status.IsStop() {
		if executor.IsRestart() {
			logger.Infof("End state '%s' reached on restart; continuing.", s.name)
			return model.FlowStatusCompleted, nil
		}
		if s.abandon {
			if err := executor.AbandonStepExecution(ctx); err != nil {
				return model.FlowStatusUnknown, err
			}
		}
	}
	executor.AddExitStatus(s.code)
	return s.status, nil
}

// JobExecutionDecider picks the next route of a flow from the state of the
// job and of the last step.
type JobExecutionDecider interface {
	Decide(ctx context.Context, je *model.JobExecution, se *model.StepExecution) (model.FlowExecutionStatus, error)
}

// DeciderFunc adapts a function to JobExecutionDecider.
type DeciderFunc func(ctx context.Context, je *model.JobExecution, se *model.StepExecution) (model.FlowExecutionStatus, error)

// Decide implements JobExecutionDecider.
func (f DeciderFunc) Decide(ctx context.Context, je *model.JobExecution, se *model.StepExecution) (model.FlowExecutionStatus, error) {
	return f(ctx, je, se)
}

// DecisionState returns the status chosen by a JobExecutionDecider.
type DecisionState struct {
	name    string
	decider JobExecutionDecider
}

// NewDecisionState creates a DecisionState.
func NewDecisionState(name string, decider JobExecutionDecider) *DecisionState {
	return &DecisionState{name: name, decider: decider}
}

func (s *DecisionState) Name() string { return s.name }
func (s *DecisionState) IsEndState() bool { return false }

// Handle implements State.
func (s *DecisionState) Handle(ctx context.Context, executor FlowExecutor) (model.FlowExecutionStatus, error) {
	status, err := s.decider.Decide(ctx, executor.JobExecution(), executor.StepExecution())
	if err != nil {
		return model.FlowStatusUnknown, err
	}
	logger.Debugf("Decision '%s' returned %s.", s.name, status)
	return status, nil
}

// FlowState runs a nested flow on the same executor scope.
type FlowState struct {
	name string
	flow Flow
}

// NewFlowState creates a FlowState named after flow.
func NewFlowState(flow Flow) *FlowState {
	return &FlowState{name: flow.Name(), flow: flow}
}

func (s *FlowState) Name() string { return s.name }
func (s *FlowState) IsEndState() bool { return false }

// Handle implements State.
func (s *FlowState) Handle(ctx context.Context, executor FlowExecutor) (model.FlowExecutionStatus, error) {
	result, err := s.flow.Start(ctx, executor)
	if err != nil {
		return model.FlowStatusUnknown, err
	}
	return result.Status, nil
}

var (
	_ State = (*StepState)(nil)
	_ State = (*EndState)(nil)
	_ State = (*DecisionState)(nil)
	_ State = (*FlowState)(nil)
)
