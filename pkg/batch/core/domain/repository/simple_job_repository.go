package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/tx"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

const moduleName = "repository"

// SimpleJobRepository implements JobRepository on top of the four DAOs.
// Multi-row operations run in a transaction from the configured
// TransactionManager.
type SimpleJobRepository struct {
	instanceDao  JobInstanceDao
	executionDao JobExecutionDao
	stepDao      StepExecutionDao
	contextDao   ExecutionContextDao
	txManager    tx.TransactionManager
	closer       func() error

	// mu serializes job execution creation and job execution updates. Step
	// updates never take it: they may run inside a chunk transaction that
	// holds the only database connection.
	mu sync.Mutex
}

// Option customizes a SimpleJobRepository.
type Option func(*SimpleJobRepository)

// WithTransactionManager sets the manager used for multi-row operations.
func WithTransactionManager(tm tx.TransactionManager) Option {
	return func(r *SimpleJobRepository) { r.txManager = tm }
}

// WithCloser sets the function invoked by Close.
func WithCloser(closer func() error) Option {
	return func(r *SimpleJobRepository) { r.closer = closer }
}

// NewSimpleJobRepository creates a SimpleJobRepository. Without
// WithTransactionManager, a no-op transaction manager is used.
func NewSimpleJobRepository(
	instanceDao JobInstanceDao,
	executionDao JobExecutionDao,
	stepDao StepExecutionDao,
	contextDao ExecutionContextDao,
	opts ...Option,
) *SimpleJobRepository {
	r := &SimpleJobRepository{
		instanceDao:  instanceDao,
		executionDao: executionDao,
		stepDao:      stepDao,
		contextDao:   contextDao,
		txManager:    tx.NewNoOpTransactionManager(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// IsJobInstanceExists implements JobRepository.
func (r *SimpleJobRepository) IsJobInstanceExists(ctx context.Context, jobName string, params model.JobParameters) (bool, error) {
	instance, err := r.instanceDao.GetJobInstance(ctx, jobName, params)
	if err != nil {
		return false, err
	}
	return instance != nil, nil
}

// CreateJobInstance implements JobRepository.
func (r *SimpleJobRepository) CreateJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	if jobName == "" {
		return nil, exception.NewBatchError(moduleName, "job name must not be empty", nil, false, false)
	}
	return r.instanceDao.CreateJobInstance(ctx, jobName, params)
}

// GetJobInstance implements JobRepository.
func (r *SimpleJobRepository) GetJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	return r.instanceDao.GetJobInstance(ctx, jobName, params)
}

// CreateJobExecution implements JobRepository.
func (r *SimpleJobRepository) CreateJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	if jobName == "" {
		return nil, exception.NewBatchError(moduleName, "job name must not be empty", nil, false, false)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var je *model.JobExecution
	err := tx.Execute(ctx, r.txManager, func(ctx context.Context) error {
		instance, ec, err := r.prepareInstance(ctx, jobName, params)
		if err != nil {
			return err
		}
		je = model.NewJobExecution(instance, params)
		je.ExecutionContext = ec
		if err := r.executionDao.SaveJobExecution(ctx, je); err != nil {
			return err
		}
		return r.contextDao.SaveJobExecutionContext(ctx, je)
	})
	if err != nil {
		return nil, err
	}
	je.ExecutionContext.ClearDirty()
	logger.Debugf("Created JobExecution %s for job '%s' (instance %s).", je.ID, jobName, je.JobInstanceID)
	return je, nil
}

// prepareInstance returns the instance for jobName/params and the execution
// context the new execution starts from, enforcing the restart rules.
func (r *SimpleJobRepository) prepareInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, *model.ExecutionContext, error) {
	instance, err := r.instanceDao.GetJobInstance(ctx, jobName, params)
	if err != nil {
		return nil, nil, err
	}
	if instance == nil {
		instance, err = r.instanceDao.CreateJobInstance(ctx, jobName, params)
		if errors.Is(err, ErrJobInstanceExists) {
			// Another launcher created it between the lookup and the insert.
			return r.prepareInstance(ctx, jobName, params)
		}
		if err != nil {
			return nil, nil, err
		}
		return instance, model.NewExecutionContext(), nil
	}

	executions, err := r.executionDao.FindJobExecutions(ctx, instance)
	if err != nil {
		return nil, nil, err
	}
	if len(executions) == 0 {
		return nil, nil, exception.NewBatchErrorf(moduleName, "job instance %s exists but has no executions", instance.ID)
	}
	for _, execution := range executions {
		if execution.IsRunning() {
			return nil, nil, exception.NewJobExecutionErrorf(exception.ErrJobExecutionAlreadyRunning,
				"a job execution for this job is already running: %s", execution.ID)
		}
		status := execution.GetStatus()
		if status == model.BatchStatusUnknown {
			return nil, nil, exception.NewJobExecutionErrorf(exception.ErrJobRestart,
				"cannot restart job from UNKNOWN status (execution %s); the state must be repaired manually", execution.ID)
		}
		if (status == model.BatchStatusCompleted || status == model.BatchStatusAbandoned) && !params.Identifying().IsEmpty() {
			return nil, nil, exception.NewJobExecutionErrorf(exception.ErrJobInstanceAlreadyComplete,
				"a job instance already exists and is complete for parameters=%s; change the parameters to run again", params)
		}
	}

	ec, err := r.contextDao.GetJobExecutionContext(ctx, executions[0])
	if err != nil {
		return nil, nil, err
	}
	return instance, ec, nil
}

// UpdateJobExecution implements JobRepository.
func (r *SimpleJobRepository) UpdateJobExecution(ctx context.Context, je *model.JobExecution) error {
	if err := validateJobExecution(je); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	je.LastUpdated = time.Now()
	if err := r.executionDao.SynchronizeStatus(ctx, je); err != nil {
		return err
	}
	return r.executionDao.UpdateJobExecution(ctx, je)
}

// GetJobExecution implements JobRepository.
func (r *SimpleJobRepository) GetJobExecution(ctx context.Context, id string) (*model.JobExecution, error) {
	je, err := r.executionDao.GetJobExecution(ctx, id)
	if err != nil || je == nil {
		return nil, err
	}
	if err := r.hydrate(ctx, je); err != nil {
		return nil, err
	}
	return je, nil
}

// GetLastJobExecution implements JobRepository.
func (r *SimpleJobRepository) GetLastJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	instance, err := r.instanceDao.GetJobInstance(ctx, jobName, params)
	if err != nil || instance == nil {
		return nil, err
	}
	je, err := r.executionDao.GetLastJobExecution(ctx, instance)
	if err != nil || je == nil {
		return nil, err
	}
	if err := r.hydrate(ctx, je); err != nil {
		return nil, err
	}
	return je, nil
}

// FindRunningJobExecutions implements JobRepository.
func (r *SimpleJobRepository) FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	executions, err := r.executionDao.FindRunningJobExecutions(ctx, jobName)
	if err != nil {
		return nil, err
	}
	for _, je := range executions {
		if err := r.hydrate(ctx, je); err != nil {
			return nil, err
		}
	}
	return executions, nil
}

// hydrate loads the instance, context and step executions of je.
func (r *SimpleJobRepository) hydrate(ctx context.Context, je *model.JobExecution) error {
	if je.JobInstance == nil {
		instance, err := r.instanceDao.GetJobInstanceByID(ctx, je.JobInstanceID)
		if err != nil {
			return err
		}
		je.JobInstance = instance
	}
	ec, err := r.contextDao.GetJobExecutionContext(ctx, je)
	if err != nil {
		return err
	}
	je.ExecutionContext = ec

	steps, err := r.stepDao.GetStepExecutions(ctx, je)
	if err != nil {
		return err
	}
	je.StepExecutions = nil
	for _, se := range steps {
		sec, err := r.contextDao.GetStepExecutionContext(ctx, se)
		if err != nil {
			return err
		}
		se.ExecutionContext = sec
		se.JobExecution = je
		je.AddStepExecution(se)
	}
	return nil
}

// AddStepExecution implements JobRepository.
func (r *SimpleJobRepository) AddStepExecution(ctx context.Context, se *model.StepExecution) error {
	if err := validateStepExecution(se); err != nil {
		return err
	}
	se.LastUpdated = time.Now()
	err := tx.Execute(ctx, r.txManager, func(ctx context.Context) error {
		if err := r.stepDao.SaveStepExecution(ctx, se); err != nil {
			return err
		}
		return r.contextDao.SaveStepExecutionContext(ctx, se)
	})
	if err != nil {
		return err
	}
	se.ExecutionContext.ClearDirty()
	return nil
}

// AddStepExecutions implements JobRepository.
func (r *SimpleJobRepository) AddStepExecutions(ctx context.Context, ses []*model.StepExecution) error {
	if len(ses) == 0 {
		return nil
	}
	now := time.Now()
	for _, se := range ses {
		if err := validateStepExecution(se); err != nil {
			return err
		}
		se.LastUpdated = now
	}
	err := tx.Execute(ctx, r.txManager, func(ctx context.Context) error {
		if err := r.stepDao.SaveStepExecutions(ctx, ses); err != nil {
			return err
		}
		return r.contextDao.SaveStepExecutionContexts(ctx, ses)
	})
	if err != nil {
		return err
	}
	for _, se := range ses {
		se.ExecutionContext.ClearDirty()
	}
	return nil
}

// UpdateStepExecution implements JobRepository.
func (r *SimpleJobRepository) UpdateStepExecution(ctx context.Context, se *model.StepExecution) error {
	if err := validateStepExecution(se); err != nil {
		return err
	}
	if se.ID == "" {
		return exception.NewBatchError(moduleName, "step execution must be saved before it can be updated", nil, false, false)
	}
	se.LastUpdated = time.Now()
	if err := r.stepDao.UpdateStepExecution(ctx, se); err != nil {
		return err
	}
	return r.checkForInterruption(ctx, se)
}

// checkForInterruption flags se TerminateOnly when its job has been asked to stop.
func (r *SimpleJobRepository) checkForInterruption(ctx context.Context, se *model.StepExecution) error {
	je := se.JobExecution
	if err := r.executionDao.SynchronizeStatus(ctx, je); err != nil {
		return err
	}
	if je.IsStopping() {
		logger.Infof("Parent JobExecution %s is stopping; flagging step '%s' to terminate.", je.ID, se.StepName)
		se.SetTerminateOnly()
	}
	return nil
}

// UpdateStepExecutionContext implements JobRepository.
func (r *SimpleJobRepository) UpdateStepExecutionContext(ctx context.Context, se *model.StepExecution) error {
	if err := validateStepExecution(se); err != nil {
		return err
	}
	if err := r.contextDao.UpdateStepExecutionContext(ctx, se); err != nil {
		return err
	}
	se.ExecutionContext.ClearDirty()
	return nil
}

// UpdateJobExecutionContext implements JobRepository.
func (r *SimpleJobRepository) UpdateJobExecutionContext(ctx context.Context, je *model.JobExecution) error {
	if err := validateJobExecution(je); err != nil {
		return err
	}
	if err := r.contextDao.UpdateJobExecutionContext(ctx, je); err != nil {
		return err
	}
	je.ExecutionContext.ClearDirty()
	return nil
}

// GetLastStepExecution implements JobRepository.
func (r *SimpleJobRepository) GetLastStepExecution(ctx context.Context, instance *model.JobInstance, stepName string) (*model.StepExecution, error) {
	se, err := r.stepDao.GetLastStepExecution(ctx, instance, stepName)
	if err != nil || se == nil {
		return nil, err
	}
	sec, err := r.contextDao.GetStepExecutionContext(ctx, se)
	if err != nil {
		return nil, err
	}
	se.ExecutionContext = sec
	if se.JobExecution != nil {
		jec, err := r.contextDao.GetJobExecutionContext(ctx, se.JobExecution)
		if err != nil {
			return nil, err
		}
		se.JobExecution.ExecutionContext = jec
	}
	return se, nil
}

// GetStepExecutionCount implements JobRepository.
func (r *SimpleJobRepository) GetStepExecutionCount(ctx context.Context, instance *model.JobInstance, stepName string) (int, error) {
	return r.stepDao.CountStepExecutions(ctx, instance, stepName)
}

// GetStepExecution implements JobRepository.
func (r *SimpleJobRepository) GetStepExecution(ctx context.Context, je *model.JobExecution, id string) (*model.StepExecution, error) {
	se, err := r.stepDao.GetStepExecution(ctx, je, id)
	if err != nil || se == nil {
		return nil, err
	}
	sec, err := r.contextDao.GetStepExecutionContext(ctx, se)
	if err != nil {
		return nil, err
	}
	se.ExecutionContext = sec
	return se, nil
}

// GetJobInstanceByID implements JobQuerier.
func (r *SimpleJobRepository) GetJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	return r.instanceDao.GetJobInstanceByID(ctx, id)
}

// FindJobExecutions implements JobQuerier.
func (r *SimpleJobRepository) FindJobExecutions(ctx context.Context, instance *model.JobInstance) ([]*model.JobExecution, error) {
	executions, err := r.executionDao.FindJobExecutions(ctx, instance)
	if err != nil {
		return nil, err
	}
	for _, je := range executions {
		je.JobInstance = instance
		if err := r.hydrate(ctx, je); err != nil {
			return nil, err
		}
	}
	return executions, nil
}

// GetJobNames implements JobQuerier.
func (r *SimpleJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	return r.instanceDao.GetJobNames(ctx)
}

// TransactionManager returns the manager the repository runs its multi-row
// writes in. Steps use it so chunk commits and repository updates share one
// transaction.
func (r *SimpleJobRepository) TransactionManager() tx.TransactionManager {
	return r.txManager
}

// Close implements JobRepository.
func (r *SimpleJobRepository) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer()
}

func validateJobExecution(je *model.JobExecution) error {
	if je == nil {
		return exception.NewBatchError(moduleName, "job execution must not be nil", nil, false, false)
	}
	if je.ID == "" || je.JobInstanceID == "" {
		return exception.NewBatchError(moduleName, "job execution must have an id and a job instance id", nil, false, false)
	}
	return nil
}

func validateStepExecution(se *model.StepExecution) error {
	if se == nil {
		return exception.NewBatchError(moduleName, "step execution must not be nil", nil, false, false)
	}
	if se.JobExecution == nil || se.JobExecutionID == "" {
		return exception.NewBatchErrorf(moduleName, "step execution '%s' must belong to a job execution", se.StepName)
	}
	return nil
}

var (
	_ JobRepository = (*SimpleJobRepository)(nil)
	_ JobQuerier    = (*SimpleJobRepository)(nil)
)
