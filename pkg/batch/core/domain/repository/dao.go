package repository

import (
	"context"
	"errors"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// ErrJobInstanceExists is returned by JobInstanceDao.CreateJobInstance when an
// instance with the same name and identifying parameters already exists.
var ErrJobInstanceExists = errors.New("JobInstanceAlreadyExistsException")

func init() {
	exception.RegisterErrorType(ErrJobInstanceExists.Error(), ErrJobInstanceExists)
}

// JobInstanceDao stores JobInstances.
type JobInstanceDao interface {
	// CreateJobInstance stores a new instance. It returns ErrJobInstanceExists
	// when one with the same name and parameter hash is already stored.
	CreateJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)
	// GetJobInstance returns the instance for jobName and params, or nil.
	GetJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)
	// GetJobInstanceByID returns the instance with id, or nil.
	GetJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error)
	// GetJobNames returns the distinct job names in sorted order.
	GetJobNames(ctx context.Context) ([]string, error)
}

// JobExecutionDao stores JobExecutions.
type JobExecutionDao interface {
	// SaveJobExecution stores a new execution and sets its Version to 0.
	SaveJobExecution(ctx context.Context, je *model.JobExecution) error
	// UpdateJobExecution stores the state of je if its Version matches the stored
	// one, then increments Version. A mismatch yields an optimistic locking failure.
	UpdateJobExecution(ctx context.Context, je *model.JobExecution) error
	// SynchronizeStatus reconciles je with the stored row when their versions
	// differ: the stored status is merged with BatchStatus.Upgrade and the stored
	// version adopted. This lets a stop requested elsewhere reach a running job.
	SynchronizeStatus(ctx context.Context, je *model.JobExecution) error
	// GetJobExecution returns the execution with id, or nil.
	GetJobExecution(ctx context.Context, id string) (*model.JobExecution, error)
	// FindJobExecutions returns the executions of instance, newest first.
	FindJobExecutions(ctx context.Context, instance *model.JobInstance) ([]*model.JobExecution, error)
	// GetLastJobExecution returns the newest execution of instance, or nil.
	GetLastJobExecution(ctx context.Context, instance *model.JobInstance) (*model.JobExecution, error)
	// FindRunningJobExecutions returns the executions of jobName that have not ended.
	FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error)
}

// StepExecutionDao stores StepExecutions.
type StepExecutionDao interface {
	// SaveStepExecution stores a new step execution and sets its Version to 0.
	SaveStepExecution(ctx context.Context, se *model.StepExecution) error
	// SaveStepExecutions stores several new step executions.
	SaveStepExecutions(ctx context.Context, ses []*model.StepExecution) error
	// UpdateStepExecution stores the state of se with the same optimistic
	// locking rules as JobExecutionDao.UpdateJobExecution.
	UpdateStepExecution(ctx context.Context, se *model.StepExecution) error
	// GetStepExecution returns the step execution with id that belongs to je, or nil.
	GetStepExecution(ctx context.Context, je *model.JobExecution, id string) (*model.StepExecution, error)
	// GetStepExecutions returns the step executions of je in creation order.
	GetStepExecutions(ctx context.Context, je *model.JobExecution) ([]*model.StepExecution, error)
	// GetLastStepExecution returns the step execution named stepName with the
	// latest start time across all executions of instance, or nil.
	GetLastStepExecution(ctx context.Context, instance *model.JobInstance, stepName string) (*model.StepExecution, error)
	// CountStepExecutions returns how many times stepName was started for instance.
	CountStepExecutions(ctx context.Context, instance *model.JobInstance, stepName string) (int, error)
}

// ExecutionContextDao stores the execution contexts of jobs and steps.
type ExecutionContextDao interface {
	GetJobExecutionContext(ctx context.Context, je *model.JobExecution) (*model.ExecutionContext, error)
	GetStepExecutionContext(ctx context.Context, se *model.StepExecution) (*model.ExecutionContext, error)
	// SaveJobExecutionContext and the other save/update methods store a copy of
	// the context; they do not clear its dirty flag.
	SaveJobExecutionContext(ctx context.Context, je *model.JobExecution) error
	SaveStepExecutionContext(ctx context.Context, se *model.StepExecution) error
	SaveStepExecutionContexts(ctx context.Context, ses []*model.StepExecution) error
	UpdateJobExecutionContext(ctx context.Context, je *model.JobExecution) error
	UpdateStepExecutionContext(ctx context.Context, se *model.StepExecution) error
}
