// Package partitioner provides partitioners for common input shapes.
package partitioner

import (
	"context"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/partition"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// Context keys written by RangePartitioner.
const (
	MinValueKey = "minValue"
	MaxValueKey = "maxValue"
)

// RangePartitioner splits the inclusive range [Min, Max] into at most
// gridSize contiguous sub-ranges of near-equal size. Each partition context
// holds its bounds under MinValueKey and MaxValueKey.
type RangePartitioner struct {
	Min int64
	Max int64
}

// NewRangePartitioner creates a RangePartitioner over [minValue, maxValue].
func NewRangePartitioner(minValue, maxValue int64) *RangePartitioner {
	return &RangePartitioner{Min: minValue, Max: maxValue}
}

// Partition implements partition.Partitioner.
func (p *RangePartitioner) Partition(_ context.Context, gridSize int) (map[string]*model.ExecutionContext, error) {
	if p.Max < p.Min {
		return nil, exception.NewBatchErrorf("partitioner", "range max %d is lower than min %d", p.Max, p.Min)
	}
	count := p.count(gridSize)
	total := p.Max - p.Min + 1
	size, rest := total/int64(count), total%int64(count)

	partitions := make(map[string]*model.ExecutionContext, count)
	lower := p.Min
	for i := 0; i < count; i++ {
		upper := lower + size - 1
		if int64(i) < rest {
			upper++
		}
		ec := model.NewExecutionContext()
		ec.Put(MinValueKey, lower)
		ec.Put(MaxValueKey, upper)
		partitions[partition.PartitionName(i)] = ec
		lower = upper + 1
	}
	logger.Debugf("RangePartitioner: split [%d, %d] into %d partitions.", p.Min, p.Max, count)
	return partitions, nil
}

// GetPartitionNames implements partition.PartitionNameProvider. It returns
// the names Partition produces for the same grid size.
func (p *RangePartitioner) GetPartitionNames(gridSize int) []string {
	count := p.count(gridSize)
	names := make([]string, 0, count)
	for i := 0; i < count; i++ {
		names = append(names, partition.PartitionName(i))
	}
	return names
}

// count is the number of partitions: gridSize, capped by the size of the range.
func (p *RangePartitioner) count(gridSize int) int {
	if gridSize < 1 {
		gridSize = 1
	}
	if total := p.Max - p.Min + 1; total > 0 && total < int64(gridSize) {
		return int(total)
	}
	return gridSize
}

var (
	_ partition.Partitioner           = (*RangePartitioner)(nil)
	_ partition.PartitionNameProvider = (*RangePartitioner)(nil)
)
