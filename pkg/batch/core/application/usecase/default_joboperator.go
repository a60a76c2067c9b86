package usecase

import (
	"context"
	"fmt"
	"time"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// DefaultJobOperator is the default implementation of the JobOperator interface.
type DefaultJobOperator struct {
	jobRepository repository.JobRepository
	registry      *JobRegistry
	jobLauncher   *SimpleJobLauncher
}

// NewDefaultJobOperator creates a new instance of DefaultJobOperator.
func NewDefaultJobOperator(repo repository.JobRepository, registry *JobRegistry, launcher *SimpleJobLauncher) *DefaultJobOperator {
	return &DefaultJobOperator{
		jobRepository: repo,
		registry:      registry,
		jobLauncher:   launcher,
	}
}

// load returns the stored execution with executionID.
func (o *DefaultJobOperator) load(ctx context.Context, op, executionID string) (*model.JobExecution, error) {
	je, err := o.jobRepository.GetJobExecution(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_operator", fmt.Sprintf("%s: failed to load JobExecution (ID: %s)", op, executionID), err, false, false)
	}
	if je == nil {
		return nil, exception.NewJobExecutionErrorf(exception.ErrJobExecutionNotFound, "%s: JobExecution (ID: %s) not found", op, executionID)
	}
	return je, nil
}

// Restart implements JobOperator. The stored parameters are reused as they
// are; the job's incrementer is not applied.
func (o *DefaultJobOperator) Restart(ctx context.Context, executionID string) (*model.JobExecution, error) {
	logger.Infof("JobOperator: restarting JobExecution %s.", executionID)
	prev, err := o.load(ctx, "Restart", executionID)
	if err != nil {
		return nil, err
	}
	status := prev.GetStatus()
	if status != model.BatchStatusFailed && status != model.BatchStatusStopped {
		return nil, exception.NewJobExecutionErrorf(exception.ErrJobRestart,
			"JobExecution (ID: %s) is not in a restartable state (current status: %s)", executionID, status)
	}

	job, err := o.registry.GetJob(prev.JobName)
	if err != nil {
		return nil, err
	}
	next, err := o.jobLauncher.run(ctx, job, prev.Parameters)
	if err != nil {
		return nil, err
	}
	logger.Infof("Restart of Job '%s' (Execution ID: %s) started. New execution ID: %s", prev.JobName, executionID, next.ID)
	return next, nil
}

// Stop implements JobOperator.
func (o *DefaultJobOperator) Stop(ctx context.Context, executionID string) error {
	logger.Infof("JobOperator: stopping JobExecution %s.", executionID)
	je, err := o.load(ctx, "Stop", executionID)
	if err != nil {
		return err
	}
	if !je.IsRunning() {
		return exception.NewJobExecutionErrorf(exception.ErrJobExecutionNotRunning,
			"JobExecution (ID: %s) is not running (current status: %s)", executionID, je.GetStatus())
	}

	je.Stop()
	if err := o.jobRepository.UpdateJobExecution(ctx, je); err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("Stop: failed to update JobExecution (ID: %s)", executionID), err, false, false)
	}
	logger.Infof("JobExecution (ID: %s) marked STOPPING.", executionID)
	return nil
}

// Abandon implements JobOperator.
func (o *DefaultJobOperator) Abandon(ctx context.Context, executionID string) error {
	logger.Infof("JobOperator: abandoning JobExecution %s.", executionID)
	je, err := o.load(ctx, "Abandon", executionID)
	if err != nil {
		return err
	}
	if je.GetStatus() == model.BatchStatusAbandoned {
		logger.Infof("JobExecution (ID: %s) is already ABANDONED.", executionID)
		return nil
	}
	if je.IsRunning() {
		return exception.NewJobExecutionErrorf(exception.ErrJobExecutionAlreadyRunning,
			"JobExecution (ID: %s) cannot be abandoned while running (current status: %s)", executionID, je.GetStatus())
	}

	je.SetStatus(model.BatchStatusAbandoned)
	if je.EndTime == nil {
		now := time.Now()
		je.EndTime = &now
	}
	if err := o.jobRepository.UpdateJobExecution(ctx, je); err != nil {
		return exception.NewBatchError("job_operator", fmt.Sprintf("Abandon: failed to update JobExecution (ID: %s)", executionID), err, false, false)
	}
	logger.Infof("JobExecution (ID: %s) marked ABANDONED.", executionID)
	return nil
}

var _ JobOperator = (*DefaultJobOperator)(nil)
