package runner

import (
	"context"
	"sync"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	"github.com/tigerroll/tidebatch/pkg/batch/core/flow"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// exitScope is the exit status a flow builds up. It is shared by every
// branch forked from the same executor.
type exitScope struct {
	mu     sync.Mutex
	status model.ExitStatus
}

func (s *exitScope) and(other model.ExitStatus) model.ExitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = s.status.And(other)
	return s.status
}

func (s *exitScope) get() model.ExitStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// JobFlowExecutor implements flow.FlowExecutor for a JobExecution. It keeps
// the last StepExecution of its branch in an explicit scope; Fork gives a
// parallel branch its own scope.
type JobFlowExecutor struct {
	repo    repository.JobRepository
	handler StepHandler
	je      *model.JobExecution
	exit    *exitScope

	mu   sync.Mutex
	last *model.StepExecution
}

// NewJobFlowExecutor creates an executor running steps of je through handler.
func NewJobFlowExecutor(repo repository.JobRepository, handler StepHandler, je *model.JobExecution) *JobFlowExecutor {
	return &JobFlowExecutor{
		repo:    repo,
		handler: handler,
		je:      je,
		exit:    &exitScope{status: model.ExitStatusExecuting},
	}
}

// ExecuteStep implements flow.FlowExecutor.
func (e *JobFlowExecutor) ExecuteStep(ctx context.Context, s port.Step) (string, error) {
	count, err := e.repo.GetStepExecutionCount(ctx, e.je.JobInstance, s.Name())
	if err != nil {
		return "", err
	}
	rerun := count > 0

	se, err := e.handler.HandleStep(ctx, s, e.je)
	e.setLast(se)
	if err != nil {
		return "", err
	}
	if se == nil {
		return string(model.FlowStatusCompleted), nil
	}
	if se.IsTerminateOnly() {
		return "", exception.NewJobInterruptedError("step '%s' requested termination", se.StepName)
	}
	if rerun && se.JobExecutionID == e.je.ID {
		se.ExecutionContext.Put(model.ContextKeyRestart, true)
	}
	return se.ExitStatus.ExitCode, nil
}

// JobExecution implements flow.FlowExecutor.
func (e *JobFlowExecutor) JobExecution() *model.JobExecution { return e.je }

// StepExecution implements flow.FlowExecutor.
func (e *JobFlowExecutor) StepExecution() *model.StepExecution {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

func (e *JobFlowExecutor) setLast(se *model.StepExecution) {
	e.mu.Lock()
	e.last = se
	e.mu.Unlock()
}

// IsRestart implements flow.FlowExecutor.
func (e *JobFlowExecutor) IsRestart() bool {
	if se := e.StepExecution(); se != nil && se.Status == model.BatchStatusAbandoned {
		return true
	}
	return len(e.je.GetStepExecutions()) == 0
}

// AbandonStepExecution implements flow.FlowExecutor.
func (e *JobFlowExecutor) AbandonStepExecution(ctx context.Context) error {
	se := e.StepExecution()
	if se == nil || se.Status == model.BatchStatusAbandoned || !se.Status.IsGreaterThan(model.BatchStatusStopping) {
		return nil
	}
	se.UpgradeStatus(model.BatchStatusAbandoned)
	logger.Infof("Abandoning StepExecution %s of step '%s' (%s).", se.ID, se.StepName, se.Status)
	return e.repo.UpdateStepExecution(ctx, se)
}

// UpdateJobExecutionStatus implements flow.FlowExecutor.
func (e *JobFlowExecutor) UpdateJobExecutionStatus(status model.FlowExecutionStatus) {
	e.je.SetStatus(status.ToBatchStatus())
	e.je.SetExitStatus(e.exit.and(model.NewExitStatus(string(status), "")))
}

// AddExitStatus implements flow.FlowExecutor.
func (e *JobFlowExecutor) AddExitStatus(code string) {
	e.exit.and(model.NewExitStatus(code, ""))
}

// ExitStatus returns the exit status accumulated by the flow so far.
func (e *JobFlowExecutor) ExitStatus() model.ExitStatus {
	return e.exit.get()
}

// Close implements flow.FlowExecutor.
func (e *JobFlowExecutor) Close(*flow.FlowExecution) {
	e.setLast(nil)
}

// Fork implements flow.FlowExecutor.
func (e *JobFlowExecutor) Fork() flow.FlowExecutor {
	return &JobFlowExecutor{repo: e.repo, handler: e.handler, je: e.je, exit: e.exit}
}

var _ flow.FlowExecutor = (*JobFlowExecutor)(nil)
