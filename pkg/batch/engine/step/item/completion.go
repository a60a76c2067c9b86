package item

// CompletionPolicy decides when a chunk being read is full.
type CompletionPolicy[T any] interface {
	IsComplete(chunk *Chunk[T]) bool
}

// CompletionPolicyFunc adapts a predicate to CompletionPolicy.
type CompletionPolicyFunc[T any] func(chunk *Chunk[T]) bool

// IsComplete implements CompletionPolicy.
func (f CompletionPolicyFunc[T]) IsComplete(chunk *Chunk[T]) bool { return f(chunk) }

// SimpleCompletionPolicy completes a chunk once it holds Size items.
type SimpleCompletionPolicy[T any] struct {
	Size int
}

// NewSimpleCompletionPolicy creates a fixed-size policy. A size below one is
// treated as one.
func NewSimpleCompletionPolicy[T any](size int) *SimpleCompletionPolicy[T] {
	if size < 1 {
		size = 1
	}
	return &SimpleCompletionPolicy[T]{Size: size}
}

// IsComplete implements CompletionPolicy.
func (p *SimpleCompletionPolicy[T]) IsComplete(chunk *Chunk[T]) bool {
	return chunk.Size() >= p.Size
}
