package item

import (
	"context"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// inputsKey is the ChunkContext attribute holding the buffered chunk.
const inputsKey = "INPUTS"

// ChunkOrientedTasklet processes one chunk per invocation.
//
// With buffering on, a chunk that was read but not completed stays in the
// ChunkContext, so the next invocation works on it instead of reading again.
// Turn buffering off for readers that must not hold unconsumed items across a
// rollback, such as transactional queues.
type ChunkOrientedTasklet[I any] struct {
	provider  ChunkProvider[I]
	processor ChunkProcessor[I]
	buffering bool
}

// NewChunkOrientedTasklet creates a tasklet with buffering on.
func NewChunkOrientedTasklet[I any](provider ChunkProvider[I], processor ChunkProcessor[I]) *ChunkOrientedTasklet[I] {
	return &ChunkOrientedTasklet[I]{provider: provider, processor: processor, buffering: true}
}

// SetBuffering turns buffering of the in-flight chunk on or off.
func (t *ChunkOrientedTasklet[I]) SetBuffering(buffering bool) { t.buffering = buffering }

// Execute implements tasklet.Tasklet.
func (t *ChunkOrientedTasklet[I]) Execute(ctx context.Context, contribution *model.StepContribution, cc *model.ChunkContext) (tasklet.RepeatStatus, error) {
	var inputs *Chunk[I]
	if v, ok := cc.GetAttribute(inputsKey); ok {
		inputs, _ = v.(*Chunk[I])
	}
	if inputs == nil {
		provided, err := t.provider.Provide(ctx, contribution)
		if err != nil {
			return tasklet.Failed, err
		}
		inputs = provided
		if t.buffering {
			cc.SetAttribute(inputsKey, inputs)
		}
	}

	if err := t.processor.Process(ctx, contribution, inputs); err != nil {
		return tasklet.Failed, err
	}
	t.provider.PostProcess(ctx, contribution, inputs)

	if inputs.IsBusy() {
		logger.Debugf("Chunk of %d items is still busy; processing it again.", inputs.Size())
		return tasklet.Continuable, nil
	}

	cc.RemoveAttribute(inputsKey)
	cc.SetComplete()
	if inputs.IsEnd() {
		return tasklet.Finished, nil
	}
	return tasklet.Continuable, nil
}

var _ tasklet.Tasklet = (*ChunkOrientedTasklet[any])(nil)
