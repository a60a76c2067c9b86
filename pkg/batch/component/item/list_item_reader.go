package item

import (
	"context"
	"fmt"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// ListItemReader reads items from a slice. Its position is saved in the
// ExecutionContext under "<name>.read.count", so a restarted step resumes
// after the last committed item.
type ListItemReader[T any] struct {
	name   string
	items  []T
	offset int
}

// NewListItemReader creates a reader over items. name scopes its
// ExecutionContext key and must be unique within the step.
func NewListItemReader[T any](name string, items []T) *ListItemReader[T] {
	return &ListItemReader[T]{name: name, items: items}
}

func (r *ListItemReader[T]) key() string { return r.name + ".read.count" }

// Open restores the position stored by a previous execution, if any.
//
// Parameters:
//
//	ctx: The context for the operation.
//	ec: The ExecutionContext of the step.
//
// Returns:
//
//	error: An error if the stored position lies beyond the input.
func (r *ListItemReader[T]) Open(ctx context.Context, ec *model.ExecutionContext) error {
	offset := ec.GetInt(r.key(), 0)
	if offset < 0 || offset > len(r.items) {
		return fmt.Errorf("ListItemReader %q: stored position %d is outside the %d items", r.name, offset, len(r.items))
	}
	r.offset = offset
	return nil
}

// Read returns the next item, or [port.ErrNoMoreItems] once all are read.
func (r *ListItemReader[T]) Read(ctx context.Context) (T, error) {
	var zero T
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	if r.offset >= len(r.items) {
		return zero, port.ErrNoMoreItems
	}
	item := r.items[r.offset]
	r.offset++
	return item, nil
}

// Update stores the current position.
func (r *ListItemReader[T]) Update(ctx context.Context, ec *model.ExecutionContext) error {
	ec.Put(r.key(), r.offset)
	return nil
}

// Close implements port.ItemStream.
func (r *ListItemReader[T]) Close(ctx context.Context) error { return nil }

var (
	_ port.ItemReader[any] = (*ListItemReader[any])(nil)
	_ port.ItemStream      = (*ListItemReader[any])(nil)
)
