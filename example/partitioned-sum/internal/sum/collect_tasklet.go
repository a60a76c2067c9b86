package sum

import (
	"context"
	"fmt"

	"github.com/tigerroll/tidebatch/pkg/batch/component/partitioner"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/partition"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// CollectTasklet adds the partial sums of every partition of a partitioned
// step and compares the result with the total of the expected-sum step.
// Partitions finished by an earlier execution of the job instance count too.
type CollectTasklet struct {
	repo          repository.JobRepository
	partitioner   *partitioner.RangePartitioner
	partitionStep string
	expectedStep  string
}

// NewCollectTasklet creates a CollectTasklet.
func NewCollectTasklet(repo repository.JobRepository, p *partitioner.RangePartitioner, partitionStep, expectedStep string) *CollectTasklet {
	return &CollectTasklet{repo: repo, partitioner: p, partitionStep: partitionStep, expectedStep: expectedStep}
}

// Execute implements tasklet.Tasklet.
func (t *CollectTasklet) Execute(ctx context.Context, contribution *model.StepContribution, cc *model.ChunkContext) (tasklet.RepeatStatus, error) {
	je := cc.StepExecution.JobExecution
	if je == nil || je.JobInstance == nil {
		return tasklet.Failed, fmt.Errorf("step '%s' has no job instance", cc.StepExecution.StepName)
	}
	instance := je.JobInstance

	master, err := t.last(ctx, instance, t.partitionStep)
	if err != nil {
		return tasklet.Failed, err
	}
	gridSize := master.ExecutionContext.GetInt(partition.GridSizeKey, 1)

	var total int64
	names := t.partitioner.GetPartitionNames(gridSize)
	for _, name := range names {
		child, err := t.last(ctx, instance, t.partitionStep+partition.StepNameSeparator+name)
		if err != nil {
			return tasklet.Failed, err
		}
		total += child.ExecutionContext.GetInt64(PartialSumKey, 0)
	}
	contribution.IncrementReadCount(int64(len(names)))

	expectedStep, err := t.last(ctx, instance, t.expectedStep)
	if err != nil {
		return tasklet.Failed, err
	}
	expected := expectedStep.ExecutionContext.GetInt64(ExpectedSumKey, 0)

	ec := cc.StepExecution.ExecutionContext
	ec.Put(TotalKey, total)
	ec.Put(ExpectedSumKey, expected)
	ec.Put(VerifiedKey, total == expected)
	je.ExecutionContext.Put(TotalKey, total)

	logger.Infof("CollectTasklet: %d partitions sum to %d (expected %d).", len(names), total, expected)
	return tasklet.Finished, nil
}

func (t *CollectTasklet) last(ctx context.Context, instance *model.JobInstance, stepName string) (*model.StepExecution, error) {
	se, err := t.repo.GetLastStepExecution(ctx, instance, stepName)
	if err != nil {
		return nil, err
	}
	if se == nil {
		return nil, fmt.Errorf("step '%s' has not run for job instance %s", stepName, instance.ID)
	}
	return se, nil
}

var _ tasklet.Tasklet = (*CollectTasklet)(nil)
