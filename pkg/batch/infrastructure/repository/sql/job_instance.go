package sql

import (
	"context"

	"gorm.io/gorm/clause"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// CreateJobInstance implements repository.JobInstanceDao. The insert ignores
// conflicts on (job_name, parameters_hash) so that a lost race does not abort
// the surrounding transaction; it is reported as ErrJobInstanceExists.
func (s *Store) CreateJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	const op = "SQLJobRepository.CreateJobInstance"
	instance := model.NewJobInstance(jobName, params)

	res := s.db(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(fromDomainJobInstance(instance))
	if res.Error != nil {
		if s.conn.Dialect().IsDuplicateKeyError(res.Error) {
			return nil, repository.ErrJobInstanceExists
		}
		return nil, s.wrap(op, res.Error, "failed to save JobInstance for job '%s'", jobName)
	}
	if res.RowsAffected == 0 {
		return nil, repository.ErrJobInstanceExists
	}
	return instance, nil
}

// GetJobInstance implements repository.JobInstanceDao.
func (s *Store) GetJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	const op = "SQLJobRepository.GetJobInstance"
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError(op, "failed to calculate JobParameters hash", err, false, false)
	}

	var entities []JobInstanceEntity
	if err := s.db(ctx).Where("job_name = ? AND parameters_hash = ?", jobName, hash).Find(&entities).Error; err != nil {
		return nil, s.wrap(op, err, "failed to find JobInstance for job '%s'", jobName)
	}
	identifying := params.Identifying()
	for i := range entities {
		instance := toDomainJobInstance(&entities[i])
		if instance.Parameters.Identifying().Equal(identifying) {
			return instance, nil
		}
		logger.Warnf("%s: JobInstance (ID: %s) hash matched but parameters mismatched. Possible hash collision.", op, instance.ID)
	}
	return nil, nil
}

// GetJobInstanceByID implements repository.JobInstanceDao.
func (s *Store) GetJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	var entities []JobInstanceEntity
	if err := s.db(ctx).Where("id = ?", id).Limit(1).Find(&entities).Error; err != nil {
		return nil, s.wrap("SQLJobRepository.GetJobInstanceByID", err, "failed to find JobInstance by ID: %s", id)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return toDomainJobInstance(&entities[0]), nil
}

// GetJobNames implements repository.JobInstanceDao.
func (s *Store) GetJobNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db(ctx).Model(&JobInstanceEntity{}).Distinct("job_name").Order("job_name").Pluck("job_name", &names).Error
	if err != nil {
		return nil, s.wrap("SQLJobRepository.GetJobNames", err, "failed to list job names")
	}
	return names, nil
}
