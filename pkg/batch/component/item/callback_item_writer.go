package item

import (
	"context"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
)

// CallbackItemWriter hands every chunk to a function.
type CallbackItemWriter[T any] struct {
	callback func(ctx context.Context, items []T) error
}

// NewCallbackItemWriter creates a writer calling callback for every chunk.
func NewCallbackItemWriter[T any](callback func(ctx context.Context, items []T) error) *CallbackItemWriter[T] {
	return &CallbackItemWriter[T]{callback: callback}
}

// Write implements port.ItemWriter.
func (w *CallbackItemWriter[T]) Write(ctx context.Context, items []T) error {
	return w.callback(ctx, items)
}

var _ port.ItemWriter[any] = (*CallbackItemWriter[any])(nil)
