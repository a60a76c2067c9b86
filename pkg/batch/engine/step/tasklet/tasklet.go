// Package tasklet implements the step that repeatedly invokes a Tasklet, one
// transaction per invocation, until the tasklet reports it is finished.
package tasklet

import (
	"context"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// RepeatStatus tells the step whether to invoke the tasklet again.
type RepeatStatus int

const (
	// Continuable asks for another invocation.
	Continuable RepeatStatus = iota
	// Finished ends the step successfully.
	Finished
	// Failed ends the step with a failure even though no error was returned.
	Failed
)

func (s RepeatStatus) String() string {
	switch s {
	case Continuable:
		return "CONTINUABLE"
	case Finished:
		return "FINISHED"
	case Failed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// IsContinuable reports whether the step should invoke the tasklet again.
func (s RepeatStatus) IsContinuable() bool { return s == Continuable }

// Tasklet is the unit of work of a TaskletStep. Each invocation runs in its
// own transaction; counters recorded on contribution are applied to the step
// only when the invocation commits.
type Tasklet interface {
	Execute(ctx context.Context, contribution *model.StepContribution, cc *model.ChunkContext) (RepeatStatus, error)
}

// Func adapts a function to Tasklet.
type Func func(ctx context.Context, contribution *model.StepContribution, cc *model.ChunkContext) (RepeatStatus, error)

// Execute implements Tasklet.
func (f Func) Execute(ctx context.Context, contribution *model.StepContribution, cc *model.ChunkContext) (RepeatStatus, error) {
	return f(ctx, contribution, cc)
}
