package item

import (
	"context"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// PassThroughItemProcessor is an implementation of [port.ItemProcessor] that returns the input item as the output item as is.
type PassThroughItemProcessor[T any] struct{}

// NewPassThroughItemProcessor creates a new instance of [PassThroughItemProcessor].
func NewPassThroughItemProcessor[T any]() port.ItemProcessor[T, T] {
	return &PassThroughItemProcessor[T]{}
}

// Process returns the input item as is. No item is filtered.
func (p *PassThroughItemProcessor[T]) Process(ctx context.Context, item T) (T, bool, error) {
	logger.Debugf("PassThroughItemProcessor: Processing item: %+v", item)
	return item, true, nil
}

// FuncItemProcessor adapts a function to [port.ItemProcessor].
type FuncItemProcessor[I, O any] func(ctx context.Context, item I) (O, bool, error)

// Process calls f.
func (f FuncItemProcessor[I, O]) Process(ctx context.Context, item I) (O, bool, error) {
	return f(ctx, item)
}

var (
	_ port.ItemProcessor[any, any] = (*PassThroughItemProcessor[any])(nil)
	_ port.ItemProcessor[int, int] = FuncItemProcessor[int, int](nil)
)
