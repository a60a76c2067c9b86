// Package flow implements the state machine that drives a job: a Flow is a set
// of named States linked by transitions keyed on the FlowExecutionStatus each
// state returns.
//
// States never touch the job repository directly. Everything that has to be
// recorded goes through the FlowExecutor handed to State.Handle, so the same
// flow can run as the body of a job, inside a step, or as a branch of a split.
package flow

import (
	"context"
	"fmt"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// State is a node of a flow.
type State interface {
	// Name returns the state name, unique within its flow.
	Name() string

	// Handle runs the state.
	//
	// Parameters:
	//
	//	ctx: The context for the operation.
	//	executor: The executor the state records its work through.
	//
	// Returns:
	//
	//	model.FlowExecutionStatus: The status used to pick the next transition.
	//	error: A failure that ends the flow.
	Handle(ctx context.Context, executor FlowExecutor) (model.FlowExecutionStatus, error)

	// IsEndState reports whether the state terminates the flow by itself.
	IsEndState() bool
}

// FlowExecutor is the bridge between a running flow and the job execution it
// belongs to. Each flow branch owns one executor scope; parallel branches get
// their own scope through Fork.
type FlowExecutor interface {
	// ExecuteStep runs step and returns the exit code of its StepExecution.
	//
	// Parameters:
	//
	//	ctx: The context for the operation.
	//	step: The step to run.
	//
	// Returns:
	//
	//	string: The exit code of the resulting StepExecution.
	//	error: A job-level failure such as an interruption or an exceeded start limit.
	ExecuteStep(ctx context.Context, step port.Step) (string, error)

	// JobExecution returns the job execution the flow runs for.
	JobExecution() *model.JobExecution

	// StepExecution returns the last StepExecution handled in this scope, or nil.
	StepExecution() *model.StepExecution

	// IsRestart reports whether the flow is re-entering work from a previous
	// execution: the last StepExecution is ABANDONED, or no step has run yet in
	// the current JobExecution.
	IsRestart() bool

	// AbandonStepExecution marks the last StepExecution ABANDONED when it ended
	// worse than STOPPING, so that a restart does not replay it.
	AbandonStepExecution(ctx context.Context) error

	// UpdateJobExecutionStatus records the final flow status on the job execution.
	UpdateJobExecutionStatus(status model.FlowExecutionStatus)

	// AddExitStatus combines code into the exit status of the job execution.
	AddExitStatus(code string)

	// Close ends the scope once the flow has finished.
	Close(result *FlowExecution)

	// Fork returns an executor for a parallel branch. It shares the job
	// execution but keeps its own StepExecution scope.
	Fork() FlowExecutor
}

// Flow is a runnable graph of states.
type Flow interface {
	// Name returns the flow name.
	Name() string
	// Start runs the flow from its initial state.
	Start(ctx context.Context, executor FlowExecutor) (*FlowExecution, error)
	// Resume runs the flow from the state named stateName.
	Resume(ctx context.Context, stateName string, executor FlowExecutor) (*FlowExecution, error)
	// State returns the state named name, or nil.
	State(name string) State
}

// FlowExecution is the outcome of a flow: the last state handled and the
// status it returned.
type FlowExecution struct {
	Name   string
	Status model.FlowExecutionStatus
}

func (e *FlowExecution) String() string {
	return fmt.Sprintf("FlowExecution{name=%s, status=%s}", e.Name, e.Status)
}

// FlowExecutionError reports a state that failed while the flow was running.
// Callers unwrap it to find job-level errors raised by the state.
type FlowExecutionError struct {
	Flow  string
	State string
	Err   error
}

func (e *FlowExecutionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("flow=%s failed at state=%s", e.Flow, e.State)
	}
	return fmt.Sprintf("ended flow=%s at state=%s with error: %v", e.Flow, e.State, e.Err)
}

func (e *FlowExecutionError) Unwrap() error {
	return e.Err
}
