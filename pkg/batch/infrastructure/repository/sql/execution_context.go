package sql

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// GetJobExecutionContext implements repository.ExecutionContextDao.
func (s *Store) GetJobExecutionContext(ctx context.Context, je *model.JobExecution) (*model.ExecutionContext, error) {
	var entities []JobExecutionContextEntity
	if err := s.db(ctx).Where("job_execution_id = ?", je.ID).Limit(1).Find(&entities).Error; err != nil {
		return nil, s.wrap("SQLJobRepository.GetJobExecutionContext", err, "failed to load context of JobExecution (ID: %s)", je.ID)
	}
	if len(entities) == 0 {
		return model.NewExecutionContext(), nil
	}
	return s.decodeContext("SQLJobRepository.GetJobExecutionContext", entities[0].Context)
}

// GetStepExecutionContext implements repository.ExecutionContextDao.
func (s *Store) GetStepExecutionContext(ctx context.Context, se *model.StepExecution) (*model.ExecutionContext, error) {
	var entities []StepExecutionContextEntity
	if err := s.db(ctx).Where("step_execution_id = ?", se.ID).Limit(1).Find(&entities).Error; err != nil {
		return nil, s.wrap("SQLJobRepository.GetStepExecutionContext", err, "failed to load context of StepExecution (ID: %s)", se.ID)
	}
	if len(entities) == 0 {
		return model.NewExecutionContext(), nil
	}
	return s.decodeContext("SQLJobRepository.GetStepExecutionContext", entities[0].Context)
}

func (s *Store) decodeContext(op, data string) (*model.ExecutionContext, error) {
	ec, err := unmarshalContext(data)
	if err != nil {
		return nil, exception.NewBatchError(op, "failed to decode execution context", err, false, false)
	}
	return ec, nil
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
	if len(ses) == 0 {
		return nil
	}
	entities := make([]*StepExecutionContextEntity, 0, len(ses))
	for _, se := range ses {
		data, err := marshalContext(se.ExecutionContext)
		if err != nil {
			return exception.NewBatchError("SQLJobRepository.SaveStepExecutionContexts", "failed to encode execution context", err, false, false)
		}
		entities = append(entities, &StepExecutionContextEntity{StepExecutionID: se.ID, Context: data})
	}
	err := s.db(ctx).Clauses(upsertContext("step_execution_id")).Create(&entities).Error
	if err != nil {
		return s.wrap("SQLJobRepository.SaveStepExecutionContexts", err, "failed to save %d step execution context(s)", len(ses))
	}
	return nil
}

// UpdateJobExecutionContext implements repository.ExecutionContextDao.
func (s *Store) UpdateJobExecutionContext(ctx context.Context, je *model.JobExecution) error {
	const op = "SQLJobRepository.UpdateJobExecutionContext"
	data, err := marshalContext(je.ExecutionContext)
	if err != nil {
		return exception.NewBatchError(op, "failed to encode execution context", err, false, false)
	}
	entity := &JobExecutionContextEntity{JobExecutionID: je.ID, Context: data}
	if err := s.db(ctx).Clauses(upsertContext("job_execution_id")).Create(entity).Error; err != nil {
		return s.wrap(op, err, "failed to save context of JobExecution (ID: %s)", je.ID)
	}
	return nil
}

// UpdateStepExecutionContext implements repository.ExecutionContextDao.
func (s *Store) UpdateStepExecutionContext(ctx context.Context, se *model.StepExecution) error {
	return s.SaveStepExecutionContexts(ctx, []*model.StepExecution{se})
}

func upsertContext(key string) clause.OnConflict {
	return clause.OnConflict{
		Columns:   []clause.Column{{Name: key}},
		DoUpdates: clause.AssignmentColumns([]string{"context"}),
	}
}
