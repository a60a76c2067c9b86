package sum

import (
	"context"

	"github.com/tigerroll/tidebatch/pkg/batch/component/partitioner"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// RangeSumTasklet sums the range a RangePartitioner assigned to its step
// execution, chunkSize values per invocation. Progress lives in the step
// ExecutionContext, so a restarted partition continues after its last commit.
type RangeSumTasklet struct {
	chunkSize int64
}

// NewRangeSumTasklet creates a RangeSumTasklet. A chunkSize below 1 sums one
// value per invocation.
func NewRangeSumTasklet(chunkSize int) *RangeSumTasklet {
	if chunkSize < 1 {
		chunkSize = 1
	}
	return &RangeSumTasklet{chunkSize: int64(chunkSize)}
}

// Execute implements tasklet.Tasklet.
func (t *RangeSumTasklet) Execute(ctx context.Context, contribution *model.StepContribution, cc *model.ChunkContext) (tasklet.RepeatStatus, error) {
	ec := cc.StepExecution.ExecutionContext
	lower := ec.GetInt64(partitioner.MinValueKey, 0)
	upper := ec.GetInt64(partitioner.MaxValueKey, -1)
	next := ec.GetInt64(NextValueKey, lower)
	if next > upper {
		return tasklet.Finished, nil
	}

	last := min(next+t.chunkSize-1, upper)
	total := ec.GetInt64(PartialSumKey, 0)
	for v := next; v <= last; v++ {
		total += v
	}
	contribution.IncrementReadCount(last - next + 1)
	contribution.IncrementWriteCount(last - next + 1)
	ec.Put(NextValueKey, last+1)
	ec.Put(PartialSumKey, total)
	logger.Debugf("RangeSumTasklet '%s': summed [%d, %d], partial %d.", cc.StepExecution.StepName, next, last, total)

	if last == upper {
		return tasklet.Finished, nil
	}
	return tasklet.Continuable, nil
}

var _ tasklet.Tasklet = (*RangeSumTasklet)(nil)
