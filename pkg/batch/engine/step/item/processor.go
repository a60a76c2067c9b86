package item

import (
	"context"
	"fmt"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// ChunkProcessor transforms and writes a chunk.
type ChunkProcessor[I any] interface {
	Process(ctx context.Context, contribution *model.StepContribution, chunk *Chunk[I]) error
}

// SimpleChunkProcessor passes every item of a chunk through an optional
// ItemProcessor and writes the survivors. Any failure clears the inputs of
// the chunk and is returned; no item is skipped.
type SimpleChunkProcessor[I, O any] struct {
	processor port.ItemProcessor[I, O]
	writer    port.ItemWriter[O]
}

// NewSimpleChunkProcessor creates a SimpleChunkProcessor. processor may be
// nil, in which case I must be assignable to O and items are written as read.
func NewSimpleChunkProcessor[I, O any](processor port.ItemProcessor[I, O], writer port.ItemWriter[O]) *SimpleChunkProcessor[I, O] {
	return &SimpleChunkProcessor[I, O]{processor: processor, writer: writer}
}

// Process implements ChunkProcessor.
func (p *SimpleChunkProcessor[I, O]) Process(ctx context.Context, contribution *model.StepContribution, chunk *Chunk[I]) error {
	outputs, err := p.transform(ctx, contribution, chunk)
	if err != nil {
		chunk.Clear()
		return err
	}
	if err := p.write(ctx, contribution, outputs); err != nil {
		chunk.Clear()
		return err
	}
	return nil
}

func (p *SimpleChunkProcessor[I, O]) transform(ctx context.Context, contribution *model.StepContribution, chunk *Chunk[I]) ([]O, error) {
	outputs := make([]O, 0, chunk.Size())
	for _, in := range chunk.Items() {
		if p.processor == nil {
			out, ok := any(in).(O)
			if !ok {
				return nil, exception.NewBatchErrorf("chunk", "item of type %T cannot be written without a processor", in)
			}
			outputs = append(outputs, out)
			continue
		}
		out, keep, err := p.processor.Process(ctx, in)
		if err != nil {
			return nil, exception.NewBatchError("chunk", fmt.Sprintf("item processing failed for %v", in), err, false, false)
		}
		if !keep {
			contribution.IncrementFilterCount(1)
			continue
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

func (p *SimpleChunkProcessor[I, O]) write(ctx context.Context, contribution *model.StepContribution, items []O) error {
	if len(items) == 0 || p.writer == nil {
		return nil
	}
	if err := p.writer.Write(ctx, items); err != nil {
		return exception.NewBatchError("chunk", "item write failed", err, false, false)
	}
	contribution.IncrementWriteCount(int64(len(items)))
	return nil
}

var _ ChunkProcessor[any] = (*SimpleChunkProcessor[any, any])(nil)
