package item

import (
	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// DefaultChunkSize is used when no chunk size or completion policy is set.
const DefaultChunkSize = 10

// ChunkStepBuilder assembles a TaskletStep running a ChunkOrientedTasklet
// over a reader, an optional processor and a writer.
type ChunkStepBuilder[I, O any] struct {
	name      string
	repo      repository.JobRepository
	reader    port.ItemReader[I]
	processor port.ItemProcessor[I, O]
	writer    port.ItemWriter[O]
	policy    CompletionPolicy[I]
	buffering bool
	opts      []step.Option
}

// NewChunkStepBuilder starts building the chunk step named name.
func NewChunkStepBuilder[I, O any](name string, repo repository.JobRepository) *ChunkStepBuilder[I, O] {
	return &ChunkStepBuilder[I, O]{name: name, repo: repo, buffering: true}
}

// Reader sets the item reader.
func (b *ChunkStepBuilder[I, O]) Reader(reader port.ItemReader[I]) *ChunkStepBuilder[I, O] {
	b.reader = reader
	return b
}

// Processor sets the item processor. Without one, items are written as read.
func (b *ChunkStepBuilder[I, O]) Processor(processor port.ItemProcessor[I, O]) *ChunkStepBuilder[I, O] {
	b.processor = processor
	return b
}

// Writer sets the item writer.
func (b *ChunkStepBuilder[I, O]) Writer(writer port.ItemWriter[O]) *ChunkStepBuilder[I, O] {
	b.writer = writer
	return b
}

// ChunkSize completes chunks after size items.
func (b *ChunkStepBuilder[I, O]) ChunkSize(size int) *ChunkStepBuilder[I, O] {
	b.policy = NewSimpleCompletionPolicy[I](size)
	return b
}

// CompletionPolicy completes chunks with a custom policy.
func (b *ChunkStepBuilder[I, O]) CompletionPolicy(policy CompletionPolicy[I]) *ChunkStepBuilder[I, O] {
	b.policy = policy
	return b
}

// Buffering turns chunk buffering on (the default) or off.
func (b *ChunkStepBuilder[I, O]) Buffering(buffering bool) *ChunkStepBuilder[I, O] {
	b.buffering = buffering
	return b
}

// Options adds step options such as listeners, start limit or transaction settings.
func (b *ChunkStepBuilder[I, O]) Options(opts ...step.Option) *ChunkStepBuilder[I, O] {
	b.opts = append(b.opts, opts...)
	return b
}

// Build creates the step. Reader, processor and writer implementing
// port.ItemStream are registered as streams of the step.
func (b *ChunkStepBuilder[I, O]) Build() (*tasklet.TaskletStep, error) {
	if b.name == "" {
		return nil, exception.NewBatchError("chunk", "step name must not be empty", nil, false, false)
	}
	if b.reader == nil {
		return nil, exception.NewBatchErrorf("chunk", "step '%s' has no item reader", b.name)
	}
	if b.writer == nil {
		return nil, exception.NewBatchErrorf("chunk", "step '%s' has no item writer", b.name)
	}
	policy := b.policy
	if policy == nil {
		policy = NewSimpleCompletionPolicy[I](DefaultChunkSize)
	}

	t := NewChunkOrientedTasklet[I](
		NewSimpleChunkProvider(b.reader, policy),
		NewSimpleChunkProcessor(b.processor, b.writer),
	)
	t.SetBuffering(b.buffering)

	s := tasklet.NewTaskletStep(b.name, t, b.repo, b.opts...)
	for _, c := range []interface{}{b.reader, b.processor, b.writer} {
		if stream, ok := c.(port.ItemStream); ok {
			s.RegisterStream(stream)
		}
	}
	return s, nil
}
