package step

import (
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// IsStartable decides whether a step (or partition) whose most recent
// execution is last should run in je. The decision depends only on the
// persisted status of last and on allowStartIfComplete:
//
//	none                    start
//	COMPLETED               skip, unless allowStartIfComplete or last belongs to je
//	STOPPED, FAILED         start again, re-adopting the context of last
//	ABANDONED               skip; the execution was given up on purpose
//	STARTING, STARTED,
//	STOPPING                error; the old execution may still be running
//	UNKNOWN                 error; the outcome of last was never persisted
func IsStartable(last *model.StepExecution, je *model.JobExecution, allowStartIfComplete bool) (bool, error) {
	if last == nil {
		return true, nil
	}
	switch last.Status {
	case model.BatchStatusCompleted:
		if allowStartIfComplete || (je != nil && last.JobExecutionID == je.ID) {
			return true, nil
		}
		logger.Infof("Step '%s' already completed; skipping it.", last.StepName)
		return false, nil
	case model.BatchStatusStopped, model.BatchStatusFailed:
		return true, nil
	case model.BatchStatusAbandoned:
		logger.Infof("Step '%s' was abandoned; it is not restarted.", last.StepName)
		return false, nil
	case model.BatchStatusStarting, model.BatchStatusStarted, model.BatchStatusStopping:
		return false, exception.NewJobExecutionErrorf(exception.ErrJobRestart,
			"cannot restart step '%s' from %s status: the old execution may still be running; verify it manually and abandon it",
			last.StepName, last.Status)
	default:
		return false, exception.NewJobExecutionErrorf(exception.ErrJobRestart,
			"cannot restart step '%s' from %s status: its outcome was never recorded",
			last.StepName, last.Status)
	}
}

// IsRestartOf reports whether running again after last re-adopts its context.
func IsRestartOf(last *model.StepExecution) bool {
	return last != nil && last.Status != model.BatchStatusCompleted
}

// AdoptContext prepares the context of se for a restart after last: the
// context of last is copied and flagged as restarted.
func AdoptContext(se, last *model.StepExecution) {
	ec := last.ExecutionContext.Copy()
	ec.Remove(model.ContextKeyExecuted)
	ec.Put(model.ContextKeyRestart, true)
	se.ExecutionContext = ec
}
