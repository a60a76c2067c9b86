package inmemory

import (
	"context"
	"fmt"
	"sort"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

const moduleName = "inmemory"

// SaveJobExecution implements repository.JobExecutionDao.
func (s *Store) SaveJobExecution(ctx context.Context, je *model.JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobExecutions[je.ID]; exists {
		return exception.NewBatchErrorf(moduleName, "JobExecution with ID %s already exists", je.ID)
	}
	je.Version = 0
	s.jobExecutions[je.ID] = &jobExecutionRecord{execution: je.Snapshot(), seq: s.nextSeq()}
	return nil
}

// UpdateJobExecution implements repository.JobExecutionDao.
func (s *Store) UpdateJobExecution(ctx context.Context, je *model.JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.jobExecutions[je.ID]
	if !ok {
		return exception.NewJobExecutionErrorf(exception.ErrJobExecutionNotFound, "JobExecution with ID %s not found for update", je.ID)
	}
	if rec.execution.Version != je.Version {
		return exception.NewOptimisticLockingFailureException(moduleName, versionMismatch("JobExecution", je.ID, rec.execution.Version, je.Version), nil)
	}
	je.Version++
	rec.execution = je.Snapshot()
	return nil
}

// SynchronizeStatus implements repository.JobExecutionDao.
func (s *Store) SynchronizeStatus(ctx context.Context, je *model.JobExecution) error {
	s.mu.RLock()
	rec, ok := s.jobExecutions[je.ID]
	var storedVersion int
	var storedStatus model.BatchStatus
	if ok {
		storedVersion = rec.execution.Version
		storedStatus = rec.execution.Status
	}
	s.mu.RUnlock()

	if ok {
		je.SyncStatus(storedStatus, storedVersion)
	}
	return nil
}

// GetJobExecution implements repository.JobExecutionDao.
func (s *Store) GetJobExecution(ctx context.Context, id string) (*model.JobExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.jobExecutions[id]; ok {
		return s.copyJobExecution(rec), nil
	}
	return nil, nil
}

// FindJobExecutions implements repository.JobExecutionDao.
func (s *Store) FindJobExecutions(ctx context.Context, instance *model.JobInstance) ([]*model.JobExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executionsWhere(func(je *model.JobExecution) bool {
		return je.JobInstanceID == instance.ID
	}), nil
}

// GetLastJobExecution implements repository.JobExecutionDao.
func (s *Store) GetLastJobExecution(ctx context.Context, instance *model.JobInstance) (*model.JobExecution, error) {
	executions, err := s.FindJobExecutions(ctx, instance)
	if err != nil || len(executions) == 0 {
		return nil, err
	}
	return executions[0], nil
}

// FindRunningJobExecutions implements repository.JobExecutionDao.
func (s *Store) FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.executionsWhere(func(je *model.JobExecution) bool {
		return je.JobName == jobName && je.EndTime == nil
	}), nil
}

// executionsWhere returns copies of matching executions, newest first. Callers hold mu.
func (s *Store) executionsWhere(match func(*model.JobExecution) bool) []*model.JobExecution {
	var recs []*jobExecutionRecord
	for _, rec := range s.jobExecutions {
		if match(rec.execution) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool {
		a, b := recs[i].execution, recs[j].execution
		if !a.CreateTime.Equal(b.CreateTime) {
			return a.CreateTime.After(b.CreateTime)
		}
		return recs[i].seq > recs[j].seq
	})
	out := make([]*model.JobExecution, 0, len(recs))
	for _, rec := range recs {
		out = append(out, s.copyJobExecution(rec))
	}
	return out
}

func (s *Store) copyJobExecution(rec *jobExecutionRecord) *model.JobExecution {
	cp := rec.execution.Snapshot()
	if ji, ok := s.jobInstances[cp.JobInstanceID]; ok {
		instance := *ji
		cp.JobInstance = &instance
	}
	return cp
}

func versionMismatch(kind, id string, stored, given int) string {
	return fmt.Sprintf("%s %s was updated by another process (stored version %d, given %d)", kind, id, stored, given)
}
