package partitioner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tidebatch/pkg/batch/component/partitioner"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/partition"
)

func TestRangePartitioner_CoversRangeWithoutGaps(t *testing.T) {
	p := partitioner.NewRangePartitioner(1, 10)
	partitions, err := p.Partition(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, partitions, 3)

	bounds := [][2]int64{{1, 4}, {5, 7}, {8, 10}}
	for i, want := range bounds {
		ec := partitions[partition.PartitionName(i)]
		require.NotNil(t, ec)
		assert.Equal(t, want[0], ec.GetInt64(partitioner.MinValueKey, -1))
		assert.Equal(t, want[1], ec.GetInt64(partitioner.MaxValueKey, -1))
	}
}

func TestRangePartitioner_NamesMatchPartitions(t *testing.T) {
	for _, grid := range []int{1, 2, 4, 7, 20} {
		p := partitioner.NewRangePartitioner(0, 5)
		partitions, err := p.Partition(context.Background(), grid)
		require.NoError(t, err)
		names := p.GetPartitionNames(grid)
		assert.Len(t, partitions, len(names), "grid %d", grid)
		for _, name := range names {
			assert.Contains(t, partitions, name)
		}
	}
}

func TestRangePartitioner_SmallRangeCapsGrid(t *testing.T) {
	partitions, err := partitioner.NewRangePartitioner(5, 6).Partition(context.Background(), 8)
	require.NoError(t, err)
	assert.Len(t, partitions, 2)
}

func TestRangePartitioner_RejectsInvertedRange(t *testing.T) {
	_, err := partitioner.NewRangePartitioner(9, 1).Partition(context.Background(), 2)
	assert.Error(t, err)
}
