package step

import (
	"context"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// ExecutionContextPromotion copies keys from a completed step's context into
// the context of its job execution, so later steps and restarts can read them.
type ExecutionContextPromotion struct {
	// Keys are the step context keys to promote.
	Keys []string
	// JobLevelKeys renames promoted keys at the job level.
	JobLevelKeys map[string]string
}

// NewExecutionContextPromotion creates a promotion of keys.
func NewExecutionContextPromotion(keys ...string) *ExecutionContextPromotion {
	return &ExecutionContextPromotion{Keys: keys, JobLevelKeys: map[string]string{}}
}

func (p *ExecutionContextPromotion) promote(ctx context.Context, repo repository.JobRepository, se *model.StepExecution) error {
	je := se.JobExecution
	if je == nil || len(p.Keys) == 0 {
		return nil
	}
	for _, key := range p.Keys {
		value, ok := se.ExecutionContext.Get(key)
		if !ok {
			continue
		}
		target := key
		if renamed, ok := p.JobLevelKeys[key]; ok && renamed != "" {
			target = renamed
		}
		je.ExecutionContext.Put(target, value)
		logger.Debugf("Step '%s': promoted '%s' to job context key '%s'.", se.StepName, key, target)
	}
	if !je.ExecutionContext.IsDirty() {
		return nil
	}
	return repo.UpdateJobExecutionContext(ctx, je)
}
