package item_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tidebatch/pkg/batch/component/item"
	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

func TestListItemReader_ResumesFromStoredPosition(t *testing.T) {
	ctx := context.Background()
	ec := model.NewExecutionContext()

	r := item.NewListItemReader("letters", []string{"a", "b", "c", "d"})
	require.NoError(t, r.Open(ctx, ec))
	for _, want := range []string{"a", "b"} {
		got, err := r.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	require.NoError(t, r.Update(ctx, ec))
	assert.Equal(t, 2, ec.GetInt("letters.read.count", 0))

	restarted := item.NewListItemReader("letters", []string{"a", "b", "c", "d"})
	require.NoError(t, restarted.Open(ctx, ec.Copy()))
	got, err := restarted.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c", got)
	_, err = restarted.Read(ctx)
	require.NoError(t, err)
	_, err = restarted.Read(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
}

func TestListItemReader_RejectsPositionBeyondInput(t *testing.T) {
	ec := model.NewExecutionContext()
	ec.Put("letters.read.count", 9)
	r := item.NewListItemReader("letters", []string{"a"})
	assert.Error(t, r.Open(context.Background(), ec))
}

func TestExecutionContextItemWriter_KeepsRunningTotal(t *testing.T) {
	ctx := context.Background()
	ec := model.NewExecutionContext()
	ec.Put("tally", 5)

	w := item.NewExecutionContextItemWriter[int]("tally")
	require.NoError(t, w.Open(ctx, ec))
	require.NoError(t, w.Write(ctx, []int{1, 2, 3}))
	require.NoError(t, w.Update(ctx, ec))

	assert.Equal(t, int64(8), w.Count())
	assert.Equal(t, int64(8), ec.GetInt64("tally", 0))
}

func TestPassThroughAndNoOp(t *testing.T) {
	ctx := context.Background()
	out, keep, err := item.NewPassThroughItemProcessor[string]().Process(ctx, "x")
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Equal(t, "x", out)

	_, err = item.NewNoOpItemReader[int]().Read(ctx)
	assert.ErrorIs(t, err, port.ErrNoMoreItems)
	assert.NoError(t, item.NewNoOpItemWriter[int]().Write(ctx, []int{1}))
}

func TestCallbackItemWriter(t *testing.T) {
	var got []int
	w := item.NewCallbackItemWriter(func(_ context.Context, items []int) error {
		got = append(got, items...)
		return nil
	})
	require.NoError(t, w.Write(context.Background(), []int{4, 5}))
	assert.Equal(t, []int{4, 5}, got)
}
