package inmemory

import (
	"context"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// GetJobExecutionContext implements repository.ExecutionContextDao.
func (s *Store) GetJobExecutionContext(ctx context.Context, je *model.JobExecution) (*model.ExecutionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.NewExecutionContextFrom(s.jobContexts[je.ID]), nil
}

// GetStepExecutionContext implements repository.ExecutionContextDao.
func (s *Store) GetStepExecutionContext(ctx context.Context, se *model.StepExecution) (*model.ExecutionContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.NewExecutionContextFrom(s.stepContexts[se.ID]), nil
}

// SaveJobExecutionContext implements repository.ExecutionContextDao.
func (s *Store) SaveJobExecutionContext(ctx context.Context, je *model.JobExecution) error {
	return s.UpdateJobExecutionContext(ctx, je)
}

// SaveStepExecutionContext implements repository.ExecutionContextDao.
func (s *Store) SaveStepExecutionContext(ctx context.Context, se *model.StepExecution) error {
	return s.UpdateStepExecutionContext(ctx, se)
}

// SaveStepExecutionContexts implements repository.ExecutionContextDao.
func (s *Store) SaveStepExecutionContexts(ctx context.Context, ses []*model.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, se := range ses {
		s.stepContexts[se.ID] = entriesOf(se.ExecutionContext)
	}
	return nil
}

// UpdateJobExecutionContext implements repository.ExecutionContextDao.
func (s *Store) UpdateJobExecutionContext(ctx context.Context, je *model.JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobContexts[je.ID] = entriesOf(je.ExecutionContext)
	return nil
}

// UpdateStepExecutionContext implements repository.ExecutionContextDao.
func (s *Store) UpdateStepExecutionContext(ctx context.Context, se *model.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stepContexts[se.ID] = entriesOf(se.ExecutionContext)
	return nil
}

func entriesOf(ec *model.ExecutionContext) map[string]interface{} {
	if ec == nil {
		return map[string]interface{}{}
	}
	return ec.Entries()
}
