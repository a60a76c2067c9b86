// Package item provides reusable item components for chunk steps: in-memory
// readers, callback and counting writers, and pass-through processors.
package item

import (
	"context"
	"sync"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// DefaultWriteCountKey is the ExecutionContext key ExecutionContextItemWriter
// uses when none is given.
const DefaultWriteCountKey = "writer.write_count"

// ExecutionContextItemWriter counts the items written and stores the running
// total in the step's ExecutionContext, so the total survives a restart.
// It is primarily used for testing and for jobs that only need a tally.
type ExecutionContextItemWriter[I any] struct {
	mu    sync.Mutex
	key   string
	count int64
}

// NewExecutionContextItemWriter creates a new instance of ExecutionContextItemWriter.
func NewExecutionContextItemWriter[I any](key string) *ExecutionContextItemWriter[I] {
	if key == "" {
		key = DefaultWriteCountKey
	}
	return &ExecutionContextItemWriter[I]{key: key}
}

// Open restores the running total.
//
// Parameters:
//
//	ctx: The context for the operation.
//	ec: The ExecutionContext of the step.
func (w *ExecutionContextItemWriter[I]) Open(ctx context.Context, ec *model.ExecutionContext) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count = ec.GetInt64(w.key, 0)
	logger.Debugf("ExecutionContextItemWriter: opened with %d items already written.", w.count)
	return nil
}

// Write adds the number of items to the running total.
//
// Parameters:
//
//	ctx: The context for the operation.
//	items: The items to be written.
func (w *ExecutionContextItemWriter[I]) Write(ctx context.Context, items []I) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.count += int64(len(items))
	logger.Debugf("ExecutionContextItemWriter: Updated count of '%s' to %d.", w.key, w.count)
	return nil
}

// Update stores the running total under the configured key.
func (w *ExecutionContextItemWriter[I]) Update(ctx context.Context, ec *model.ExecutionContext) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ec.Put(w.key, w.count)
	return nil
}

// Close implements port.ItemStream.
func (w *ExecutionContextItemWriter[I]) Close(ctx context.Context) error { return nil }

// Count returns the running total.
func (w *ExecutionContextItemWriter[I]) Count() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

var (
	_ port.ItemWriter[any] = (*ExecutionContextItemWriter[any])(nil)
	_ port.ItemStream      = (*ExecutionContextItemWriter[any])(nil)
)
