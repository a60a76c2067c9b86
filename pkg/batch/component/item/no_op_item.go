package item

import (
	"context"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// NoOpItemReader is an implementation of [port.ItemReader] that has no items.
type NoOpItemReader[O any] struct{}

// NewNoOpItemReader creates a new instance of [NoOpItemReader].
func NewNoOpItemReader[O any]() port.ItemReader[O] {
	return &NoOpItemReader[O]{}
}

// Read always returns the zero value of type O and [port.ErrNoMoreItems].
//
// Parameters:
//
//	ctx: The context for the operation.
//
// Returns:
//
//	O: The zero value of type O.
//	error: Always [port.ErrNoMoreItems].
func (r *NoOpItemReader[O]) Read(ctx context.Context) (O, error) {
	var zero O
	return zero, port.ErrNoMoreItems
}

// NoOpItemWriter is an implementation of [port.ItemWriter] that discards its items.
type NoOpItemWriter[I any] struct{}

// NewNoOpItemWriter creates a new instance of [NoOpItemWriter].
func NewNoOpItemWriter[I any]() port.ItemWriter[I] {
	return &NoOpItemWriter[I]{}
}

// Write performs no operation, effectively discarding the items.
//
// Parameters:
//
//	ctx: The context for the operation.
//	items: The items to be written.
func (w *NoOpItemWriter[I]) Write(ctx context.Context, items []I) error {
	logger.Debugf("NoOpItemWriter: Write called with %d items.", len(items))
	return nil
}
