package sql

import (
	"context"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// SaveStepExecution implements repository.StepExecutionDao.
func (s *Store) SaveStepExecution(ctx context.Context, se *model.StepExecution) error {
	return s.SaveStepExecutions(ctx, []*model.StepExecution{se})
}

// SaveStepExecutions implements repository.StepExecutionDao. The rows are
// inserted in one statement so either all of them are stored or none.
func (s *Store) SaveStepExecutions(ctx context.Context, ses []*model.StepExecution) error {
	if len(ses) == 0 {
		return nil
	}
	entities := make([]*StepExecutionEntity, 0, len(ses))
	for _, se := range ses {
		entity, err := fromDomainStepExecution(se.Snapshot())
		if err != nil {
			return err
		}
		entity.Version = 0
		entities = append(entities, entity)
	}
	if err := s.db(ctx).Create(&entities).Error; err != nil {
		return s.wrap("SQLJobRepository.SaveStepExecutions", err, "failed to save %d StepExecution(s)", len(ses))
	}
	for _, se := range ses {
		se.Version = 0
	}
	return nil
}

// UpdateStepExecution implements repository.StepExecutionDao.
func (s *Store) UpdateStepExecution(ctx context.Context, se *model.StepExecution) error {
	const op = "SQLJobRepository.UpdateStepExecution"
	entity, err := fromDomainStepExecution(se.Snapshot())
	if err != nil {
		return err
	}
	res := s.db(ctx).Model(&StepExecutionEntity{}).
		Where("id = ? AND version = ?", se.ID, se.Version).
		Updates(map[string]interface{}{
			"status":             entity.Status,
			"exit_code":          entity.ExitCode,
			"exit_description":   entity.ExitDescription,
			"read_count":         entity.ReadCount,
			"write_count":        entity.WriteCount,
			"filter_count":       entity.FilterCount,
			"read_skip_count":    entity.ReadSkipCount,
			"process_skip_count": entity.ProcessSkipCount,
			"write_skip_count":   entity.WriteSkipCount,
			"commit_count":       entity.CommitCount,
			"rollback_count":     entity.RollbackCount,
			"start_time":         entity.StartTime,
			"end_time":           entity.EndTime,
			"last_updated":       entity.LastUpdated,
			"failures":           entity.Failures,
			"version":            se.Version + 1,
		})
	if res.Error != nil {
		return s.wrap(op, res.Error, "failed to update StepExecution (ID: %s)", se.ID)
	}
	if res.RowsAffected == 0 {
		return s.versionConflict(ctx, op, &StepExecutionEntity{}, "StepExecution", se.ID, se.Version)
	}
	se.Version++
	return nil
}

// GetStepExecution implements repository.StepExecutionDao.
func (s *Store) GetStepExecution(ctx context.Context, je *model.JobExecution, id string) (*model.StepExecution, error) {
	var entities []StepExecutionEntity
	err := s.db(ctx).Where("id = ? AND job_execution_id = ?", id, je.ID).Limit(1).Find(&entities).Error
	if err != nil {
		return nil, s.wrap("SQLJobRepository.GetStepExecution", err, "failed to find StepExecution (ID: %s)", id)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	se, err := toDomainStepExecution(&entities[0])
	if err != nil {
		return nil, err
	}
	se.JobExecution = je
	return se, nil
}

// GetStepExecutions implements repository.StepExecutionDao.
func (s *Store) GetStepExecutions(ctx context.Context, je *model.JobExecution) ([]*model.StepExecution, error) {
	var entities []StepExecutionEntity
	err := s.db(ctx).Where("job_execution_id = ?", je.ID).Order("start_time").Order("id").Find(&entities).Error
	if err != nil {
		return nil, s.wrap("SQLJobRepository.GetStepExecutions", err, "failed to list StepExecutions of JobExecution (ID: %s)", je.ID)
	}
	out := make([]*model.StepExecution, 0, len(entities))
	for i := range entities {
		se, err := toDomainStepExecution(&entities[i])
		if err != nil {
			return nil, err
		}
		se.JobExecution = je
		out = append(out, se)
	}
	return out, nil
}

// GetLastStepExecution implements repository.StepExecutionDao.
func (s *Store) GetLastStepExecution(ctx context.Context, instance *model.JobInstance, stepName string) (*model.StepExecution, error) {
	const op = "SQLJobRepository.GetLastStepExecution"
	var entities []StepExecutionEntity
	err := s.db(ctx).
		Table(StepExecutionEntity{}.TableName()+" AS se").
		Select("se.*").
		Joins("JOIN "+JobExecutionEntity{}.TableName()+" AS je ON je.id = se.job_execution_id").
		Where("je.job_instance_id = ? AND se.step_name = ?", instance.ID, stepName).
		Order("se.start_time DESC").Order("je.create_time DESC").
		Limit(1).
		Find(&entities).Error
	if err != nil {
		return nil, s.wrap(op, err, "failed to find last StepExecution '%s'", stepName)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	se, err := toDomainStepExecution(&entities[0])
	if err != nil {
		return nil, err
	}
	je, err := s.GetJobExecution(ctx, se.JobExecutionID)
	if err != nil {
		return nil, err
	}
	if je != nil {
		cp := *instance
		je.JobInstance = &cp
		se.JobExecution = je
	}
	return se, nil
}

// CountStepExecutions implements repository.StepExecutionDao.
func (s *Store) CountStepExecutions(ctx context.Context, instance *model.JobInstance, stepName string) (int, error) {
	var count int64
	err := s.db(ctx).
		Table(StepExecutionEntity{}.TableName()+" AS se").
		Joins("JOIN "+JobExecutionEntity{}.TableName()+" AS je ON je.id = se.job_execution_id").
		Where("je.job_instance_id = ? AND se.step_name = ?", instance.ID, stepName).
		Count(&count).Error
	if err != nil {
		return 0, s.wrap("SQLJobRepository.CountStepExecutions", err, "failed to count StepExecutions '%s'", stepName)
	}
	return int(count), nil
}
