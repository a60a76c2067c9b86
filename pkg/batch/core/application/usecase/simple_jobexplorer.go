package usecase

import (
	"context"
	"fmt"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// SimpleJobExplorer implements JobExplorer on top of a JobRepository. Queries
// by instance ID need a repository that also implements repository.JobQuerier.
type SimpleJobExplorer struct {
	jobRepository repository.JobRepository
}

// NewSimpleJobExplorer creates a new instance of SimpleJobExplorer.
func NewSimpleJobExplorer(repo repository.JobRepository) *SimpleJobExplorer {
	return &SimpleJobExplorer{jobRepository: repo}
}

func (e *SimpleJobExplorer) querier() (repository.JobQuerier, error) {
	q, ok := e.jobRepository.(repository.JobQuerier)
	if !ok {
		return nil, exception.NewBatchErrorf("job_explorer", "job repository %T cannot be queried by instance", e.jobRepository)
	}
	return q, nil
}

// GetJobExecution implements JobExplorer.
func (e *SimpleJobExplorer) GetJobExecution(ctx context.Context, executionID string) (*model.JobExecution, error) {
	je, err := e.jobRepository.GetJobExecution(ctx, executionID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobExecution (ID: %s)", executionID), err, false, false)
	}
	return je, nil
}

// GetJobExecutions implements JobExplorer.
func (e *SimpleJobExplorer) GetJobExecutions(ctx context.Context, instanceID string) ([]*model.JobExecution, error) {
	q, err := e.querier()
	if err != nil {
		return nil, err
	}
	instance, err := q.GetJobInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobInstance (ID: %s)", instanceID), err, false, false)
	}
	if instance == nil {
		logger.Warnf("JobInstance (ID: %s) not found.", instanceID)
		return []*model.JobExecution{}, nil
	}
	executions, err := q.FindJobExecutions(ctx, instance)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobExecutions of JobInstance (ID: %s)", instanceID), err, false, false)
	}
	logger.Debugf("Retrieved %d JobExecutions of JobInstance (ID: %s).", len(executions), instanceID)
	return executions, nil
}

// GetLastJobExecution implements JobExplorer.
func (e *SimpleJobExplorer) GetLastJobExecution(ctx context.Context, instanceID string) (*model.JobExecution, error) {
	executions, err := e.GetJobExecutions(ctx, instanceID)
	if err != nil || len(executions) == 0 {
		return nil, err
	}
	return executions[0], nil
}

// GetJobInstance implements JobExplorer.
func (e *SimpleJobExplorer) GetJobInstance(ctx context.Context, instanceID string) (*model.JobInstance, error) {
	q, err := e.querier()
	if err != nil {
		return nil, err
	}
	instance, err := q.GetJobInstanceByID(ctx, instanceID)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve JobInstance (ID: %s)", instanceID), err, false, false)
	}
	return instance, nil
}

// GetJobNames implements JobExplorer.
func (e *SimpleJobExplorer) GetJobNames(ctx context.Context) ([]string, error) {
	q, err := e.querier()
	if err != nil {
		return nil, err
	}
	names, err := q.GetJobNames(ctx)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", "Failed to retrieve job names", err, false, false)
	}
	return names, nil
}

// FindRunningJobExecutions implements JobExplorer.
func (e *SimpleJobExplorer) FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	executions, err := e.jobRepository.FindRunningJobExecutions(ctx, jobName)
	if err != nil {
		return nil, exception.NewBatchError("job_explorer", fmt.Sprintf("Failed to retrieve running JobExecutions of '%s'", jobName), err, false, false)
	}
	return executions, nil
}

// GetParameters implements JobExplorer.
func (e *SimpleJobExplorer) GetParameters(ctx context.Context, executionID string) (model.JobParameters, error) {
	je, err := e.GetJobExecution(ctx, executionID)
	if err != nil {
		return model.NewJobParameters(), err
	}
	if je == nil {
		return model.NewJobParameters(), exception.NewJobExecutionErrorf(exception.ErrJobExecutionNotFound, "JobExecution (ID: %s) not found", executionID)
	}
	return je.Parameters, nil
}

var _ JobExplorer = (*SimpleJobExplorer)(nil)
