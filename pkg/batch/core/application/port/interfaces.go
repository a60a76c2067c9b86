// Package port defines the interfaces the engine consumes and exposes: item
// readers, processors and writers, task executors, jobs, steps and listeners.
// Concrete implementations live in the component, engine and runner packages.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// ErrNoMoreItems is returned by ItemReader.Read when the input is exhausted.
var ErrNoMoreItems = errors.New("no more items to read")

// ItemReader reads items one at a time. Readers are stateful and need not be
// safe for concurrent use.
type ItemReader[T any] interface {
	// Read returns the next item.
	//
	// Parameters:
	//
	//	ctx: The context for the operation.
	//
	// Returns:
	//
	//	T: The next item.
	//	error: ErrNoMoreItems when the input is exhausted, or the read failure.
	Read(ctx context.Context) (T, error)
}

// ItemProcessor transforms an input item into an output item.
type ItemProcessor[I, O any] interface {
	// Process transforms item.
	//
	// Parameters:
	//
	//	ctx: The context for the operation.
	//	item: The item to transform.
	//
	// Returns:
	//
	//	O: The transformed item.
	//	bool: false when the item is filtered out and must not be written.
	//	error: The processing failure, if any.
	Process(ctx context.Context, item I) (O, bool, error)
}

// ItemWriter writes a chunk of items.
type ItemWriter[O any] interface {
	// Write writes items. The step commits its transaction after Write returns nil.
	//
	// Parameters:
	//
	//	ctx: The context for the operation. It carries the chunk transaction, if any.
	//	items: The items that survived processing, in read order.
	//
	// Returns:
	//
	//	error: The write failure, if any.
	Write(ctx context.Context, items []O) error
}

// ItemStream is implemented by readers and writers that keep restart state in
// the step's ExecutionContext.
type ItemStream interface {
	// Open acquires resources and restores the position stored in ec.
	Open(ctx context.Context, ec *model.ExecutionContext) error
	// Update stores the current position in ec. It is called before every
	// commit, so the stored position always matches the committed items.
	Update(ctx context.Context, ec *model.ExecutionContext) error
	// Close releases resources.
	Close(ctx context.Context) error
}

// TaskExecutor runs tasks, either on the calling goroutine or on a pool.
type TaskExecutor interface {
	// Execute submits task.
	//
	// Parameters:
	//
	//	task: The work to run.
	//
	// Returns:
	//
	//	error: exception.ErrTaskRejected when the task cannot be accepted. A
	//	rejected task is never run and never silently dropped.
	Execute(task func()) error
}

// Step is a single unit of a job: a tasklet step, a nested flow or a
// partitioned step.
type Step interface {
	// Name returns the step name. It identifies the step across executions of
	// a job instance and is used for restart decisions.
	Name() string
	// Execute runs the step for se. The step updates se and persists it
	// through the job repository; the returned error reports a failure that
	// has already been recorded on se.
	Execute(ctx context.Context, se *model.StepExecution) error
	// IsAllowStartIfComplete reports whether a step that already completed for
	// the job instance runs again on restart.
	IsAllowStartIfComplete() bool
	// StartLimit returns how many times the step may be started for one job
	// instance. Zero means unlimited.
	StartLimit() int
}

// Job is an executable batch job.
type Job interface {
	// Name returns the job name, part of the job instance identity.
	Name() string
	// Execute runs the job for je, recording its outcome on je and in the job
	// repository before returning.
	Execute(ctx context.Context, je *model.JobExecution) error
	// IsRestartable reports whether a failed or stopped instance of the job may
	// be run again.
	IsRestartable() bool
	// JobParametersIncrementer returns the incrementer used to derive the
	// parameters of the next run, or nil.
	JobParametersIncrementer() JobParametersIncrementer
	// ValidateParameters rejects parameters the job cannot run with.
	ValidateParameters(params model.JobParameters) error
}

// JobParametersIncrementer derives the parameters of the next job run.
type JobParametersIncrementer interface {
	// GetNext returns the parameters following params.
	GetNext(params model.JobParameters) model.JobParameters
}

// JobExecutionListener is notified around a job execution.
type JobExecutionListener interface {
	// BeforeJob is called after the execution is marked STARTED.
	BeforeJob(ctx context.Context, je *model.JobExecution)
	// AfterJob is called once the outcome is known, before it is persisted.
	AfterJob(ctx context.Context, je *model.JobExecution)
}

// StepExecutionListener is notified around a step execution.
type StepExecutionListener interface {
	// BeforeStep is called after the execution is marked STARTED.
	BeforeStep(ctx context.Context, se *model.StepExecution)
	// AfterStep is called once the outcome is known, before it is persisted.
	AfterStep(ctx context.Context, se *model.StepExecution)
}

// ChunkListener is notified around every tasklet invocation of a step.
type ChunkListener interface {
	BeforeChunk(ctx context.Context, cc *model.ChunkContext)
	AfterChunk(ctx context.Context, cc *model.ChunkContext)
	AfterChunkError(ctx context.Context, cc *model.ChunkContext, err error)
}

type contextKey string

const stepExecutionKey contextKey = "stepExecution"

// WithStepExecution returns a context carrying se.
func WithStepExecution(ctx context.Context, se *model.StepExecution) context.Context {
	return context.WithValue(ctx, stepExecutionKey, se)
}

// StepExecutionFromContext returns the StepExecution carried by ctx, or nil.
func StepExecutionFromContext(ctx context.Context) *model.StepExecution {
	if se, ok := ctx.Value(stepExecutionKey).(*model.StepExecution); ok {
		return se
	}
	return nil
}
