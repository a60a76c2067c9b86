package inmemory

import (
	"context"
	"sort"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// SaveStepExecution implements repository.StepExecutionDao.
func (s *Store) SaveStepExecution(ctx context.Context, se *model.StepExecution) error {
	return s.SaveStepExecutions(ctx, []*model.StepExecution{se})
}

// SaveStepExecutions implements repository.StepExecutionDao. Either all
// executions are stored or none is.
func (s *Store) SaveStepExecutions(ctx context.Context, ses []*model.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, se := range ses {
		if _, exists := s.stepExecutions[se.ID]; exists {
			return exception.NewBatchErrorf(moduleName, "StepExecution with ID %s already exists", se.ID)
		}
	}
	for _, se := range ses {
		se.Version = 0
		s.stepExecutions[se.ID] = &stepExecutionRecord{execution: se.Snapshot(), seq: s.nextSeq()}
	}
	return nil
}

// UpdateStepExecution implements repository.StepExecutionDao.
func (s *Store) UpdateStepExecution(ctx context.Context, se *model.StepExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.stepExecutions[se.ID]
	if !ok {
		return exception.NewBatchErrorf(moduleName, "StepExecution with ID %s not found for update", se.ID)
	}
	if rec.execution.Version != se.Version {
		return exception.NewOptimisticLockingFailureException(moduleName, versionMismatch("StepExecution", se.ID, rec.execution.Version, se.Version), nil)
	}
	se.Version++
	rec.execution = se.Snapshot()
	return nil
}

// GetStepExecution implements repository.StepExecutionDao.
func (s *Store) GetStepExecution(ctx context.Context, je *model.JobExecution, id string) (*model.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.stepExecutions[id]
	if !ok || rec.execution.JobExecutionID != je.ID {
		return nil, nil
	}
	cp := rec.execution.Snapshot()
	cp.JobExecution = je
	return cp, nil
}

// GetStepExecutions implements repository.StepExecutionDao.
func (s *Store) GetStepExecutions(ctx context.Context, je *model.JobExecution) ([]*model.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var recs []*stepExecutionRecord
	for _, rec := range s.stepExecutions {
		if rec.execution.JobExecutionID == je.ID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	out := make([]*model.StepExecution, 0, len(recs))
	for _, rec := range recs {
		cp := rec.execution.Snapshot()
		cp.JobExecution = je
		out = append(out, cp)
	}
	return out, nil
}

// GetLastStepExecution implements repository.StepExecutionDao. Ties on start
// time go to the execution stored last.
func (s *Store) GetLastStepExecution(ctx context.Context, instance *model.JobInstance, stepName string) (*model.StepExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *stepExecutionRecord
	for _, rec := range s.stepsOf(instance, stepName) {
		if latest == nil ||
			rec.execution.StartTime.After(latest.execution.StartTime) ||
			(rec.execution.StartTime.Equal(latest.execution.StartTime) && rec.seq > latest.seq) {
			latest = rec
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := latest.execution.Snapshot()
	if jeRec, ok := s.jobExecutions[cp.JobExecutionID]; ok {
		cp.JobExecution = s.copyJobExecution(jeRec)
	}
	return cp, nil
}

// CountStepExecutions implements repository.StepExecutionDao.
func (s *Store) CountStepExecutions(ctx context.Context, instance *model.JobInstance, stepName string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stepsOf(instance, stepName)), nil
}

// stepsOf returns the records of stepName across all executions of instance. Callers hold mu.
func (s *Store) stepsOf(instance *model.JobInstance, stepName string) []*stepExecutionRecord {
	var out []*stepExecutionRecord
	for _, rec := range s.stepExecutions {
		if rec.execution.StepName != stepName {
			continue
		}
		jeRec, ok := s.jobExecutions[rec.execution.JobExecutionID]
		if ok && jeRec.execution.JobInstanceID == instance.ID {
			out = append(out, rec)
		}
	}
	return out
}
