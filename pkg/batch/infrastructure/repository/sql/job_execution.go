package sql

import (
	"context"
	"fmt"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// SaveJobExecution implements repository.JobExecutionDao.
func (s *Store) SaveJobExecution(ctx context.Context, je *model.JobExecution) error {
	je.Version = 0
	entity, err := fromDomainJobExecution(je)
	if err != nil {
		return err
	}
	if err := s.db(ctx).Create(entity).Error; err != nil {
		return s.wrap("SQLJobRepository.SaveJobExecution", err, "failed to save JobExecution (ID: %s)", je.ID)
	}
	return nil
}

// UpdateJobExecution implements repository.JobExecutionDao. The row is only
// updated when its version still equals je.Version.
func (s *Store) UpdateJobExecution(ctx context.Context, je *model.JobExecution) error {
	const op = "SQLJobRepository.UpdateJobExecution"
	entity, err := fromDomainJobExecution(je)
	if err != nil {
		return err
	}
	res := s.db(ctx).Model(&JobExecutionEntity{}).
		Where("id = ? AND version = ?", je.ID, je.Version).
		Updates(map[string]interface{}{
			"status":           entity.Status,
			"exit_code":        entity.ExitCode,
			"exit_description": entity.ExitDescription,
			"start_time":       entity.StartTime,
			"end_time":         entity.EndTime,
			"last_updated":     entity.LastUpdated,
			"failures":         entity.Failures,
			"version":          je.Version + 1,
		})
	if res.Error != nil {
		return s.wrap(op, res.Error, "failed to update JobExecution (ID: %s)", je.ID)
	}
	if res.RowsAffected == 0 {
		return s.versionConflict(ctx, op, &JobExecutionEntity{}, "JobExecution", je.ID, je.Version)
	}
	je.Version++
	return nil
}

// versionConflict explains why an optimistic update touched no row.
func (s *Store) versionConflict(ctx context.Context, op string, entity interface{}, kind, id string, version int) error {
	var count int64
	if err := s.db(ctx).Model(entity).Where("id = ?", id).Count(&count).Error; err != nil {
		return s.wrap(op, err, "failed to check %s (ID: %s)", kind, id)
	}
	if count == 0 {
		if kind == "JobExecution" {
			return exception.NewJobExecutionErrorf(exception.ErrJobExecutionNotFound, "JobExecution with ID %s not found for update", id)
		}
		return exception.NewBatchErrorf(op, "%s with ID %s not found for update", kind, id)
	}
	return exception.NewOptimisticLockingFailureException(op,
		fmt.Sprintf("%s %s was updated by another process (version %d is stale)", kind, id, version), nil)
}

// SynchronizeStatus implements repository.JobExecutionDao.
func (s *Store) SynchronizeStatus(ctx context.Context, je *model.JobExecution) error {
	var rows []struct {
		Status  string
		Version int
	}
	err := s.db(ctx).Model(&JobExecutionEntity{}).Select("status", "version").Where("id = ?", je.ID).Limit(1).Find(&rows).Error
	if err != nil {
		return s.wrap("SQLJobRepository.SynchronizeStatus", err, "failed to read status of JobExecution (ID: %s)", je.ID)
	}
	if len(rows) > 0 {
		je.SyncStatus(model.BatchStatus(rows[0].Status), rows[0].Version)
	}
	return nil
}

// GetJobExecution implements repository.JobExecutionDao.
func (s *Store) GetJobExecution(ctx context.Context, id string) (*model.JobExecution, error) {
	executions, err := s.findJobExecutions(ctx, "SQLJobRepository.GetJobExecution", 1, "id = ?", id)
	if err != nil || len(executions) == 0 {
		return nil, err
	}
	return executions[0], nil
}

// FindJobExecutions implements repository.JobExecutionDao.
func (s *Store) FindJobExecutions(ctx context.Context, instance *model.JobInstance) ([]*model.JobExecution, error) {
	executions, err := s.findJobExecutions(ctx, "SQLJobRepository.FindJobExecutions", 0, "job_instance_id = ?", instance.ID)
	if err != nil {
		return nil, err
	}
	for _, je := range executions {
		cp := *instance
		je.JobInstance = &cp
	}
	return executions, nil
}

// GetLastJobExecution implements repository.JobExecutionDao.
func (s *Store) GetLastJobExecution(ctx context.Context, instance *model.JobInstance) (*model.JobExecution, error) {
	executions, err := s.findJobExecutions(ctx, "SQLJobRepository.GetLastJobExecution", 1, "job_instance_id = ?", instance.ID)
	if err != nil || len(executions) == 0 {
		return nil, err
	}
	cp := *instance
	executions[0].JobInstance = &cp
	return executions[0], nil
}

// FindRunningJobExecutions implements repository.JobExecutionDao.
func (s *Store) FindRunningJobExecutions(ctx context.Context, jobName string) ([]*model.JobExecution, error) {
	return s.findJobExecutions(ctx, "SQLJobRepository.FindRunningJobExecutions", 0, "job_name = ? AND end_time IS NULL", jobName)
}

// findJobExecutions returns matching executions, newest first.
func (s *Store) findJobExecutions(ctx context.Context, op string, limit int, query string, args ...interface{}) ([]*model.JobExecution, error) {
	var entities []JobExecutionEntity
	q := s.db(ctx).Where(query, args...).Order("create_time DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&entities).Error; err != nil {
		return nil, s.wrap(op, err, "failed to query job executions")
	}
	out := make([]*model.JobExecution, 0, len(entities))
	for i := range entities {
		je, err := toDomainJobExecution(&entities[i])
		if err != nil {
			return nil, err
		}
		out = append(out, je)
	}
	return out, nil
}
