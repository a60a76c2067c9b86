// Package item implements chunk-oriented processing: items are read into a
// Chunk until a completion policy is satisfied, transformed, and written as
// one commit unit by a ChunkOrientedTasklet.
package item

// Chunk is the in-memory batch of items handled by one commit cycle. It is
// never persisted.
type Chunk[T any] struct {
	items    []T
	skips    []error
	errors   []error
	end      bool
	busy     bool
	userData interface{}
}

// NewChunk creates a chunk holding items.
func NewChunk[T any](items ...T) *Chunk[T] {
	return &Chunk[T]{items: items}
}

// Add appends item.
func (c *Chunk[T]) Add(item T) {
	c.items = append(c.items, item)
}

// Items returns the items in read order.
func (c *Chunk[T]) Items() []T { return c.items }

// Size returns the number of items.
func (c *Chunk[T]) Size() int { return len(c.items) }

// IsEmpty reports whether the chunk holds no items.
func (c *Chunk[T]) IsEmpty() bool { return len(c.items) == 0 }

// Clear drops the items and the recorded skips. Flags and user data are kept.
func (c *Chunk[T]) Clear() {
	c.items = nil
	c.skips = nil
	c.userData = nil
}

// SkipError records an error for an item that was left out of the chunk.
func (c *Chunk[T]) SkipError(err error) {
	c.skips = append(c.skips, err)
}

// Skips returns the errors recorded with SkipError.
func (c *Chunk[T]) Skips() []error { return c.skips }

// AddError records a non-fatal error seen while building the chunk.
func (c *Chunk[T]) AddError(err error) {
	c.errors = append(c.errors, err)
}

// Errors returns the errors recorded with AddError.
func (c *Chunk[T]) Errors() []error { return c.errors }

// SetEnd marks the input as exhausted.
func (c *Chunk[T]) SetEnd() { c.end = true }

// IsEnd reports whether the reader had no more items when the chunk was built.
func (c *Chunk[T]) IsEnd() bool { return c.end }

// SetBusy tells the tasklet the same chunk needs another invocation.
func (c *Chunk[T]) SetBusy(busy bool) { c.busy = busy }

// IsBusy reports whether the chunk needs another invocation.
func (c *Chunk[T]) IsBusy() bool { return c.busy }

// SetUserData attaches processor bookkeeping to the chunk.
func (c *Chunk[T]) SetUserData(data interface{}) { c.userData = data }

// UserData returns the data set with SetUserData.
func (c *Chunk[T]) UserData() interface{} { return c.userData }
