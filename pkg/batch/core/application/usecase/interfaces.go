// Package usecase holds the operations applications drive the engine with:
// launching jobs, controlling running executions and querying metadata.
package usecase

import (
	"context"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// JobLauncher launches a registered Job with JobParameters.
type JobLauncher interface {
	// Launch starts the job named jobName.
	// It returns the launched JobExecution. The error reports a failure of the
	// launch itself (unknown job, invalid parameters, an instance that may not
	// run again); the outcome of the job is recorded on the execution.
	Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)
}

// JobOperator controls executions that have already been launched.
type JobOperator interface {
	// Restart launches a new execution of the instance of executionID.
	// Only FAILED and STOPPED executions can be restarted.
	Restart(ctx context.Context, executionID string) (*model.JobExecution, error)

	// Stop asks a running execution to stop. The running steps notice the
	// request the next time they persist their state.
	Stop(ctx context.Context, executionID string) error

	// Abandon marks an execution that is not running as ABANDONED.
	// An abandoned instance cannot be restarted.
	Abandon(ctx context.Context, executionID string) error
}

// JobExplorer queries batch metadata.
type JobExplorer interface {
	// GetJobExecution retrieves a JobExecution by its ID, or nil.
	GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error)

	// GetJobExecutions retrieves the executions of a JobInstance, newest first.
	GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error)

	// GetLastJobExecution retrieves the newest JobExecution of a JobInstance, or nil.
	GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error)

	// GetJobInstance retrieves a JobInstance by its ID, or nil.
	GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error)

	// GetJobNames retrieves the names of all jobs that have run.
	GetJobNames(ctx context.Context) ([]string, error)

	// FindRunningJobExecutions retrieves the executions of jobName that have not ended.
	FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error)

	// GetParameters retrieves the JobParameters of a JobExecution.
	GetParameters(ctx context.Context, executionID string) (model.JobParameters, error)
}
