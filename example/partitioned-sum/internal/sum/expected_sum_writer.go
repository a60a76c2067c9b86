package sum

import (
	"context"
	"sync"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// ExpectedSumWriter adds up the values it is given. The running total is
// stored under ExpectedSumKey before every commit.
type ExpectedSumWriter struct {
	mu    sync.Mutex
	total int64
}

// NewExpectedSumWriter creates an ExpectedSumWriter.
func NewExpectedSumWriter() *ExpectedSumWriter {
	return &ExpectedSumWriter{}
}

// Open restores the total of a previous execution.
func (w *ExpectedSumWriter) Open(ctx context.Context, ec *model.ExecutionContext) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.total = ec.GetInt64(ExpectedSumKey, 0)
	return nil
}

// Write implements port.ItemWriter.
func (w *ExpectedSumWriter) Write(ctx context.Context, items []int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, v := range items {
		w.total += v
	}
	return nil
}

// Update implements port.ItemStream.
func (w *ExpectedSumWriter) Update(ctx context.Context, ec *model.ExecutionContext) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	ec.Put(ExpectedSumKey, w.total)
	return nil
}

// Close implements port.ItemStream.
func (w *ExpectedSumWriter) Close(ctx context.Context) error { return nil }

// Total returns the current total.
func (w *ExpectedSumWriter) Total() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

var (
	_ port.ItemWriter[int64] = (*ExpectedSumWriter)(nil)
	_ port.ItemStream        = (*ExpectedSumWriter)(nil)
)
