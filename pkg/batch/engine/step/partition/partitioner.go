// Package partition runs one step as many independent partitions. A
// Partitioner describes the slices of work, a StepExecutionSplitter turns them
// into child StepExecutions named "<step>:<partition>", a PartitionHandler
// runs the children on a TaskExecutor and a StepExecutionAggregator folds
// their outcomes back into the master StepExecution.
//
// Partitions restart individually: a child that completed is not run again
// while its failed siblings are, each from its own saved ExecutionContext.
package partition

import (
	"context"
	"strconv"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// PartitionKeyPrefix prefixes the partition names generated by the partitioners in this package.
const PartitionKeyPrefix = "partition"

// PartitionName returns the name of the i-th partition, "partition<i>".
func PartitionName(i int) string { return PartitionKeyPrefix + strconv.Itoa(i) }

// Partitioner creates the input contexts of the partitions of a step.
type Partitioner interface {
	// Partition returns one ExecutionContext per partition, keyed by a
	// partition name that is unique within the step and stable across
	// restarts. gridSize is a hint; the result may hold more or fewer entries.
	Partition(ctx context.Context, gridSize int) (map[string]*model.ExecutionContext, error)
}

// PartitionNameProvider is implemented by partitioners that can name their
// partitions without computing them.
//
// When a partitioned step restarts, the splitter uses the names alone and
// re-adopts each child's context from its last StepExecution. Workers must
// therefore restore their state from the context of their StepExecution as
// loaded from the repository, never from a context the partitioner would
// build afresh.
type PartitionNameProvider interface {
	GetPartitionNames(gridSize int) []string
}

// PartitionerFunc adapts a function to Partitioner.
type PartitionerFunc func(ctx context.Context, gridSize int) (map[string]*model.ExecutionContext, error)

// Partition implements Partitioner.
func (f PartitionerFunc) Partition(ctx context.Context, gridSize int) (map[string]*model.ExecutionContext, error) {
	return f(ctx, gridSize)
}

// SimplePartitioner creates gridSize empty contexts named by PartitionName.
type SimplePartitioner struct{}

// NewSimplePartitioner creates a SimplePartitioner.
func NewSimplePartitioner() *SimplePartitioner { return &SimplePartitioner{} }

// Partition implements Partitioner.
func (p *SimplePartitioner) Partition(_ context.Context, gridSize int) (map[string]*model.ExecutionContext, error) {
	partitions := make(map[string]*model.ExecutionContext, gridSize)
	for _, name := range p.GetPartitionNames(gridSize) {
		partitions[name] = model.NewExecutionContext()
	}
	logger.Debugf("SimplePartitioner: Generated %d partitions.", len(partitions))
	return partitions, nil
}

// GetPartitionNames implements PartitionNameProvider.
func (p *SimplePartitioner) GetPartitionNames(gridSize int) []string {
	names := make([]string, 0, gridSize)
	for i := 0; i < gridSize; i++ {
		names = append(names, PartitionName(i))
	}
	return names
}

// DefaultResourceKey is the context key ResourcePartitioner stores each resource under.
const DefaultResourceKey = "fileName"

// ResourcePartitioner creates one partition per resource, storing the
// resource under Key. The grid size is ignored.
type ResourcePartitioner struct {
	Resources []string
	Key       string
}

// NewResourcePartitioner creates a ResourcePartitioner over resources.
func NewResourcePartitioner(resources ...string) *ResourcePartitioner {
	return &ResourcePartitioner{Resources: resources, Key: DefaultResourceKey}
}

// Partition implements Partitioner.
func (p *ResourcePartitioner) Partition(_ context.Context, _ int) (map[string]*model.ExecutionContext, error) {
	key := p.Key
	if key == "" {
		key = DefaultResourceKey
	}
	partitions := make(map[string]*model.ExecutionContext, len(p.Resources))
	for i, resource := range p.Resources {
		ec := model.NewExecutionContext()
		ec.Put(key, resource)
		partitions[PartitionName(i)] = ec
	}
	return partitions, nil
}

// GetPartitionNames implements PartitionNameProvider.
func (p *ResourcePartitioner) GetPartitionNames(int) []string {
	names := make([]string, 0, len(p.Resources))
	for i := range p.Resources {
		names = append(names, PartitionName(i))
	}
	return names
}

var (
	_ Partitioner           = (*SimplePartitioner)(nil)
	_ PartitionNameProvider = (*SimplePartitioner)(nil)
	_ Partitioner           = (*ResourcePartitioner)(nil)
	_ PartitionNameProvider = (*ResourcePartitioner)(nil)
)
