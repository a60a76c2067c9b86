package item

import (
	"context"
	"errors"
	"io"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// ChunkProvider builds the chunks a ChunkOrientedTasklet processes.
type ChunkProvider[T any] interface {
	// Provide reads the next chunk. A chunk with IsEnd set may still hold the
	// last items of the input.
	Provide(ctx context.Context, contribution *model.StepContribution) (*Chunk[T], error)
	// PostProcess is called after the chunk was processed successfully.
	PostProcess(ctx context.Context, contribution *model.StepContribution, chunk *Chunk[T])
}

// SimpleChunkProvider reads items from an ItemReader until its completion
// policy is satisfied or the reader is exhausted. Read failures are fatal.
type SimpleChunkProvider[T any] struct {
	reader port.ItemReader[T]
	policy CompletionPolicy[T]
}

// NewSimpleChunkProvider creates a SimpleChunkProvider.
func NewSimpleChunkProvider[T any](reader port.ItemReader[T], policy CompletionPolicy[T]) *SimpleChunkProvider[T] {
	return &SimpleChunkProvider[T]{reader: reader, policy: policy}
}

// Provide implements ChunkProvider.
func (p *SimpleChunkProvider[T]) Provide(ctx context.Context, contribution *model.StepContribution) (*Chunk[T], error) {
	chunk := NewChunk[T]()
	for !p.policy.IsComplete(chunk) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		item, err := p.reader.Read(ctx)
		if errors.Is(err, port.ErrNoMoreItems) || errors.Is(err, io.EOF) {
			chunk.SetEnd()
			break
		}
		if err != nil {
			return nil, exception.NewBatchError("chunk", "item read failed", err, false, false)
		}
		contribution.IncrementReadCount(1)
		chunk.Add(item)
	}
	return chunk, nil
}

// PostProcess implements ChunkProvider.
func (p *SimpleChunkProvider[T]) PostProcess(context.Context, *model.StepContribution, *Chunk[T]) {}

var _ ChunkProvider[any] = (*SimpleChunkProvider[any])(nil)
