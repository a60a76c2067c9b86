package inmemory

import (
	"context"
	"sort"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
)

// CreateJobInstance implements repository.JobInstanceDao.
func (s *Store) CreateJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	instance := model.NewJobInstance(jobName, params)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findInstance(jobName, instance.ParametersHash) != nil {
		return nil, repository.ErrJobInstanceExists
	}
	stored := *instance
	s.jobInstances[instance.ID] = &stored
	return instance, nil
}

// GetJobInstance implements repository.JobInstanceDao.
func (s *Store) GetJobInstance(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if found := s.findInstance(jobName, hash); found != nil {
		cp := *found
		return &cp, nil
	}
	return nil, nil
}

// GetJobInstanceByID implements repository.JobInstanceDao.
func (s *Store) GetJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if found, ok := s.jobInstances[id]; ok {
		cp := *found
		return &cp, nil
	}
	return nil, nil
}

// GetJobNames implements repository.JobInstanceDao.
func (s *Store) GetJobNames(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	seen := make(map[string]struct{})
	for _, ji := range s.jobInstances {
		seen[ji.JobName] = struct{}{}
	}
	s.mu.RUnlock()

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *Store) findInstance(jobName, hash string) *model.JobInstance {
	for _, ji := range s.jobInstances {
		if ji.JobName == jobName && ji.ParametersHash == hash {
			return ji
		}
	}
	return nil
}
