package sum

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tidebatch/pkg/batch/component/partitioner"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/partition"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/tidebatch/pkg/batch/infrastructure/repository/inmemory"
)

func newChunkContext(name string) *model.ChunkContext {
	je := model.NewJobExecution(model.NewJobInstance("sumJob", model.NewJobParameters()), model.NewJobParameters())
	return model.NewChunkContext(je.CreateStepExecution(name))
}

func TestRangeSumTasklet_SumsInSlices(t *testing.T) {
	ctx := context.Background()
	cc := newChunkContext("sumRange:partition0")
	cc.StepExecution.ExecutionContext.Put(partitioner.MinValueKey, int64(1))
	cc.StepExecution.ExecutionContext.Put(partitioner.MaxValueKey, int64(10))
	tl := NewRangeSumTasklet(4)

	var statuses []tasklet.RepeatStatus
	var read int64
	for i := 0; i < 5; i++ {
		contribution := &model.StepContribution{}
		status, err := tl.Execute(ctx, contribution, cc)
		require.NoError(t, err)
		statuses = append(statuses, status)
		read += contribution.ReadCount
		if !status.IsContinuable() {
			break
		}
	}

	assert.Equal(t, []tasklet.RepeatStatus{tasklet.Continuable, tasklet.Continuable, tasklet.Finished}, statuses)
	assert.Equal(t, int64(10), read)
	assert.Equal(t, int64(55), cc.StepExecution.ExecutionContext.GetInt64(PartialSumKey, 0))
	assert.Equal(t, int64(11), cc.StepExecution.ExecutionContext.GetInt64(NextValueKey, 0))
}

func TestRangeSumTasklet_ResumesFromContext(t *testing.T) {
	cc := newChunkContext("sumRange:partition1")
	ec := cc.StepExecution.ExecutionContext
	ec.Put(partitioner.MinValueKey, int64(11))
	ec.Put(partitioner.MaxValueKey, int64(20))
	ec.Put(NextValueKey, int64(16))
	ec.Put(PartialSumKey, int64(11+12+13+14+15))

	status, err := NewRangeSumTasklet(100).Execute(context.Background(), &model.StepContribution{}, cc)
	require.NoError(t, err)
	assert.Equal(t, tasklet.Finished, status)
	assert.Equal(t, int64(155), ec.GetInt64(PartialSumKey, 0))
}

func TestRangeSumTasklet_EmptyRange(t *testing.T) {
	cc := newChunkContext("sumRange:partition2")
	status, err := NewRangeSumTasklet(0).Execute(context.Background(), &model.StepContribution{}, cc)
	require.NoError(t, err)
	assert.Equal(t, tasklet.Finished, status)
	_, ok := cc.StepExecution.ExecutionContext.Get(PartialSumKey)
	assert.False(t, ok)
}

func TestExpectedSumWriter_RestoresAndStoresTotal(t *testing.T) {
	ctx := context.Background()
	ec := model.NewExecutionContext()
	ec.Put(ExpectedSumKey, int64(10))

	w := NewExpectedSumWriter()
	require.NoError(t, w.Open(ctx, ec))
	require.NoError(t, w.Write(ctx, []int64{5, 6, 7}))
	require.NoError(t, w.Update(ctx, ec))
	require.NoError(t, w.Close(ctx))

	assert.Equal(t, int64(28), w.Total())
	assert.Equal(t, int64(28), ec.GetInt64(ExpectedSumKey, 0))
}

func TestCollectTasklet(t *testing.T) {
	cases := []struct {
		name     string
		expected int64
		verified bool
	}{
		{name: "totals agree", expected: 21, verified: true},
		{name: "totals differ", expected: 20, verified: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := inmemory.NewJobRepository()
			je, err := repo.CreateJobExecution(ctx, "sumJob", model.NewJobParameters())
			require.NoError(t, err)

			ranges := partitioner.NewRangePartitioner(1, 6)
			master := je.CreateStepExecution("sumRange")
			master.ExecutionContext.Put(partition.GridSizeKey, 2)
			require.NoError(t, repo.AddStepExecution(ctx, master))
			for i, name := range ranges.GetPartitionNames(2) {
				child := je.CreateStepExecution("sumRange" + partition.StepNameSeparator + name)
				child.ExecutionContext.Put(PartialSumKey, []int64{6, 15}[i])
				require.NoError(t, repo.AddStepExecution(ctx, child))
			}
			expected := je.CreateStepExecution("expectedSum")
			expected.ExecutionContext.Put(ExpectedSumKey, tc.expected)
			require.NoError(t, repo.AddStepExecution(ctx, expected))

			cc := model.NewChunkContext(je.CreateStepExecution("collectSum"))
			status, err := NewCollectTasklet(repo, ranges, "sumRange", "expectedSum").
				Execute(ctx, &model.StepContribution{}, cc)
			require.NoError(t, err)
			assert.Equal(t, tasklet.Finished, status)

			ec := cc.StepExecution.ExecutionContext
			assert.Equal(t, int64(21), ec.GetInt64(TotalKey, 0))
			assert.Equal(t, tc.verified, ec.GetBool(VerifiedKey, !tc.verified))
			assert.Equal(t, int64(21), je.ExecutionContext.GetInt64(TotalKey, 0))
		})
	}
}

func TestCollectTasklet_MissingPartitionStep(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewJobRepository()
	je, err := repo.CreateJobExecution(ctx, "sumJob", model.NewJobParameters())
	require.NoError(t, err)

	cc := model.NewChunkContext(je.CreateStepExecution("collectSum"))
	_, err = NewCollectTasklet(repo, partitioner.NewRangePartitioner(1, 6), "sumRange", "expectedSum").
		Execute(ctx, &model.StepContribution{}, cc)
	assert.ErrorContains(t, err, "step 'sumRange' has not run")
}
