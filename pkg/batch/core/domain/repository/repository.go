// Package repository defines the job repository, the single source of truth
// for job and step execution state, and the DAO contracts behind it.
package repository

import (
	"context"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// JobRepository persists and retrieves execution metadata. Restart, skip of
// completed work and failure detection are all decided from what it returns.
type JobRepository interface {
	// IsJobInstanceExists reports whether an instance exists for jobName and params.
	IsJobInstanceExists(ctx context.Context, jobName string, params model.JobParameters) (bool, error)

	// CreateJobInstance stores a new JobInstance.
	CreateJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)

	// GetJobInstance returns the instance for jobName and params, or nil.
	GetJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)

	// CreateJobExecution creates a new JobExecution for jobName and params,
	// creating the JobInstance when none exists yet.
	//
	// Returns:
	//
	//	ErrJobExecutionAlreadyRunning if an execution of the instance is still running,
	//	ErrJobRestart if the last execution ended UNKNOWN,
	//	ErrJobInstanceAlreadyComplete if the instance completed (or was abandoned)
	//	and params is not empty.
	CreateJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)

	// UpdateJobExecution synchronizes je with the stored status, then stores it.
	UpdateJobExecution(ctx context.Context, je *model.JobExecution) error

	// GetJobExecution returns the execution with id, with its step executions and contexts, or nil.
	GetJobExecution(ctx context.Context, id string) (*model.JobExecution, error)

	// GetLastJobExecution returns the newest execution for jobName and params, or nil.
	GetLastJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)

	// FindRunningJobExecutions returns the executions of jobName that have not ended.
	FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error)

	// AddStepExecution stores a new step execution and its context.
	AddStepExecution(ctx context.Context, se *model.StepExecution) error

	// AddStepExecutions stores several new step executions and their contexts atomically.
	AddStepExecutions(ctx context.Context, ses []*model.StepExecution) error

	// UpdateStepExecution stores se, then flags it TerminateOnly if its job
	// execution has been asked to stop.
	UpdateStepExecution(ctx context.Context, se *model.StepExecution) error

	// UpdateStepExecutionContext stores the context of se.
	UpdateStepExecutionContext(ctx context.Context, se *model.StepExecution) error

	// UpdateJobExecutionContext stores the context of je.
	UpdateJobExecutionContext(ctx context.Context, je *model.JobExecution) error

	// GetLastStepExecution returns the most recently started execution of
	// stepName for instance, with its context and its job execution context, or nil.
	GetLastStepExecution(ctx context.Context, instance *model.JobInstance, stepName string) (*model.StepExecution, error)

	// GetStepExecutionCount returns how many times stepName was started for instance.
	GetStepExecutionCount(ctx context.Context, instance *model.JobInstance, stepName string) (int, error)

	// GetStepExecution returns the step execution with id of je, with its context, or nil.
	GetStepExecution(ctx context.Context, je *model.JobExecution, id string) (*model.StepExecution, error)

	// Close releases resources held by the repository.
	Close() error
}

// JobQuerier lists stored metadata by identity rather than by job name and
// parameters. SimpleJobRepository implements it.
type JobQuerier interface {
	// GetJobInstanceByID returns the instance with id, or nil.
	GetJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error)
	// FindJobExecutions returns the executions of instance, newest first.
	FindJobExecutions(ctx context.Context, instance *model.JobInstance) ([]*model.JobExecution, error)
	// GetJobNames returns the distinct job names in sorted order.
	GetJobNames(ctx context.Context) ([]string, error)
}
