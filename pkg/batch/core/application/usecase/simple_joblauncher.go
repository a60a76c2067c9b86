package usecase

import (
	"context"
	"sync"
	"time"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/task"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// SimpleJobLauncher implements JobLauncher for local execution. Jobs run on
// its TaskExecutor: with the default synchronous executor Launch returns once
// the job has finished, with a pool it returns as soon as the job is
// submitted and Wait blocks until every submitted job has finished.
type SimpleJobLauncher struct {
	jobRepository repository.JobRepository
	registry      *JobRegistry
	executor      port.TaskExecutor
	running       sync.WaitGroup
}

// LauncherOption configures a SimpleJobLauncher.
type LauncherOption func(*SimpleJobLauncher)

// WithLauncherTaskExecutor runs jobs on executor instead of the calling goroutine.
func WithLauncherTaskExecutor(executor port.TaskExecutor) LauncherOption {
	return func(l *SimpleJobLauncher) {
		if executor != nil {
			l.executor = executor
		}
	}
}

// NewSimpleJobLauncher creates a new SimpleJobLauncher.
func NewSimpleJobLauncher(repo repository.JobRepository, registry *JobRegistry, opts ...LauncherOption) *SimpleJobLauncher {
	l := &SimpleJobLauncher{
		jobRepository: repo,
		registry:      registry,
		executor:      task.NewSyncTaskExecutor(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch implements JobLauncher. When the job has a JobParametersIncrementer
// the parameters are advanced until they name an instance that does not exist
// yet, so every launch starts a new instance; otherwise the last execution of
// the instance named by params is restarted when it FAILED or STOPPED.
func (l *SimpleJobLauncher) Launch(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	logger.Infof("Launching Job '%s'. Parameters: %s", jobName, params.String())
	job, err := l.registry.GetJob(jobName)
	if err != nil {
		return nil, err
	}
	if incrementer := job.JobParametersIncrementer(); incrementer != nil {
		params, err = l.nextParameters(ctx, jobName, incrementer, params)
		if err != nil {
			return nil, err
		}
		logger.Infof("Generated JobParameters for Job '%s': %s", jobName, params.String())
	}
	return l.run(ctx, job, params)
}

// nextParameters applies incrementer until the parameters identify a new instance.
func (l *SimpleJobLauncher) nextParameters(ctx context.Context, jobName string, incrementer port.JobParametersIncrementer, params model.JobParameters) (model.JobParameters, error) {
	next := incrementer.GetNext(params)
	for {
		exists, err := l.jobRepository.IsJobInstanceExists(ctx, jobName, next)
		if err != nil {
			return next, exception.NewBatchError("job_launcher", "failed to look up JobInstance", err, false, false)
		}
		if !exists {
			return next, nil
		}
		following := incrementer.GetNext(next)
		if following.Equal(next) {
			return next, exception.NewBatchErrorf("job_launcher", "incrementer of Job '%s' did not change parameters %s", jobName, next.String())
		}
		next = following
	}
}

// run creates the execution for params and submits the job.
func (l *SimpleJobLauncher) run(ctx context.Context, job port.Job, params model.JobParameters) (*model.JobExecution, error) {
	if err := job.ValidateParameters(params); err != nil {
		logger.Errorf("Job '%s': JobParameters validation failed: %v", job.Name(), err)
		return nil, exception.NewBatchError("job_launcher", "JobParameters validation error", err, false, false)
	}

	last, err := l.jobRepository.GetLastJobExecution(ctx, job.Name(), params)
	if err != nil {
		return nil, exception.NewBatchError("job_launcher", "failed to look up the last JobExecution", err, false, false)
	}
	if last != nil && !last.IsRunning() && !job.IsRestartable() {
		return nil, exception.NewJobExecutionErrorf(exception.ErrJobRestart,
			"JobInstance of Job '%s' already exists and the job is not restartable", job.Name())
	}

	je, err := l.jobRepository.CreateJobExecution(ctx, job.Name(), params)
	if err != nil {
		logger.Errorf("Job '%s': failed to create JobExecution: %v", job.Name(), err)
		return nil, err
	}
	if last != nil {
		logger.Infof("Restarting Job '%s': JobExecution %s follows %s (%s).", job.Name(), je.ID, last.ID, last.GetStatus())
	}

	l.running.Add(1)
	err = l.executor.Execute(func() {
		defer l.running.Done()
		if err := job.Execute(ctx, je); err != nil {
			logger.Warnf("Job '%s' (Execution ID: %s) ended with an error: %v", job.Name(), je.ID, err)
		}
	})
	if err != nil {
		l.running.Done()
		l.reject(ctx, je, err)
		return je, exception.NewBatchError("job_launcher", "job submission was rejected", err, false, false)
	}
	return je, nil
}

// reject records an execution whose job never ran as FAILED.
func (l *SimpleJobLauncher) reject(ctx context.Context, je *model.JobExecution, cause error) {
	logger.Errorf("JobExecution %s could not be submitted: %v", je.ID, cause)
	now := time.Now()
	je.SetStatus(model.BatchStatusFailed)
	je.SetExitStatus(model.ExitStatusFailed.AddExitError(cause))
	je.AddFailure(cause)
	je.EndTime = &now
	if err := l.jobRepository.UpdateJobExecution(ctx, je); err != nil {
		logger.Errorf("Failed to persist rejected JobExecution %s: %v", je.ID, err)
	}
}

// Wait blocks until every job submitted by Launch has finished.
func (l *SimpleJobLauncher) Wait() {
	l.running.Wait()
}

var _ JobLauncher = (*SimpleJobLauncher)(nil)
