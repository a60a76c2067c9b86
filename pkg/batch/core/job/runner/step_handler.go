package runner

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

// StepHandler runs a step for a job execution, deciding first whether it has
// to run at all.
type StepHandler interface {
	// HandleStep returns the StepExecution the flow routes on: the new one if
	// the step ran, or the last one of the job instance if it was skipped.
	HandleStep(ctx context.Context, s port.Step, je *model.JobExecution) (*model.StepExecution, error)
}

// SimpleStepHandler applies the restart rules of step.IsStartable and the
// start limit of the step, then runs it.
type SimpleStepHandler struct {
	repo           repository.JobRepository
	metricRecorder metrics.MetricRecorder
}

// NewSimpleStepHandler creates a SimpleStepHandler. A nil recorder records nothing.
func NewSimpleStepHandler(repo repository.JobRepository, recorder metrics.MetricRecorder) *SimpleStepHandler {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &SimpleStepHandler{repo: repo, metricRecorder: recorder}
}

// HandleStep implements StepHandler.
func (h *SimpleStepHandler) HandleStep(ctx context.Context, s port.Step, je *model.JobExecution) (*model.StepExecution, error) {
	if je.IsStopping() {
		return nil, exception.NewJobInterruptedError("job execution %s interrupted before step '%s'", je.ID, s.Name())
	}

	last, err := h.repo.GetLastStepExecution(ctx, je.JobInstance, s.Name())
	if err != nil {
		return nil, err
	}
	if last != nil && last.JobExecutionID == je.ID {
		// Run again on purpose by the flow of this execution.
		last = nil
	}

	start, err := h.shouldStart(ctx, last, je, s)
	if err != nil {
		return nil, err
	}
	if !start {
		return last, nil
	}

	se := je.CreateStepExecution(s.Name())
	if step.IsRestartOf(last) {
		step.AdoptContext(se, last)
		logger.Infof("Restarting step '%s' from StepExecution %s (%s).", s.Name(), last.ID, last.Status)
	}
	if err := h.repo.AddStepExecution(ctx, se); err != nil {
		return nil, exception.NewBatchError("runner", "failed to save step execution", err, false, false)
	}

	h.metricRecorder.RecordStepStart(ctx, se)
	execErr := s.Execute(ctx, se)
	h.metricRecorder.RecordStepEnd(ctx, se)
	if exception.IsJobInterrupted(execErr) {
		je.SetStatus(model.BatchStatusStopping)
		return se, execErr
	}
	if execErr != nil {
		logger.Debugf("Step '%s' ended with %s: %v", se.StepName, se.Status, execErr)
	}
	se.ExecutionContext.Put(model.ContextKeyExecuted, true)

	if je.ExecutionContext.IsDirty() {
		if err := h.repo.UpdateJobExecutionContext(ctx, je); err != nil {
			return se, err
		}
	}
	if se.Status == model.BatchStatusStopping || se.Status == model.BatchStatusStopped {
		je.SetStatus(model.BatchStatusStopping)
		return se, exception.NewJobInterruptedError("job interrupted by step '%s'", se.StepName)
	}
	return se, nil
}

// shouldStart combines the restart rules with the start limit of s.
func (h *SimpleStepHandler) shouldStart(ctx context.Context, last *model.StepExecution, je *model.JobExecution, s port.Step) (bool, error) {
	start, err := step.IsStartable(last, je, s.IsAllowStartIfComplete())
	if err != nil || !start {
		return start, err
	}
	if s.StartLimit() <= 0 {
		return true, nil
	}
	count, err := h.repo.GetStepExecutionCount(ctx, je.JobInstance, s.Name())
	if err != nil {
		return false, err
	}
	if count >= s.StartLimit() {
		return false, exception.NewJobExecutionErrorf(exception.ErrStartLimitExceeded,
			"maximum start limit exceeded for step '%s': StartMax=%d", s.Name(), s.StartLimit())
	}
	return true, nil
}

var _ StepHandler = (*SimpleStepHandler)(nil)
