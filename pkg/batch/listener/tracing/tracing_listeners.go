package tracing

import (
	"context"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
)

// Spans are opened by the job and step runners. These listeners annotate the
// span carried by the context they are called with.

// TracingJobListener adds lifecycle events to the job span.
type TracingJobListener struct {
	tracer metrics.Tracer
}

func NewTracingJobListener(tracer metrics.Tracer) *TracingJobListener {
	return &TracingJobListener{tracer: tracer}
}

func (l *TracingJobListener) BeforeJob(ctx context.Context, je *model.JobExecution) {
	l.tracer.RecordEvent(ctx, "job.started", map[string]interface{}{
		"job.parameters": je.Parameters.String(),
	})
}

func (l *TracingJobListener) AfterJob(ctx context.Context, je *model.JobExecution) {
	l.tracer.RecordEvent(ctx, "job.finished", map[string]interface{}{
		"job.status":    je.GetStatus().String(),
		"job.exit_code": je.GetExitStatus().ExitCode,
		"job.failures":  len(je.AllFailures()),
	})
}

var _ port.JobExecutionListener = (*TracingJobListener)(nil)

// TracingChunkListener adds an event per committed chunk and records chunk
// errors on the step span.
type TracingChunkListener struct {
	tracer metrics.Tracer
}

func NewTracingChunkListener(tracer metrics.Tracer) *TracingChunkListener {
	return &TracingChunkListener{tracer: tracer}
}

func (l *TracingChunkListener) BeforeChunk(ctx context.Context, cc *model.ChunkContext) {}

func (l *TracingChunkListener) AfterChunk(ctx context.Context, cc *model.ChunkContext) {
	se := cc.StepExecution
	l.tracer.RecordEvent(ctx, "chunk.committed", map[string]interface{}{
		"step.commit_count": se.CommitCount,
		"step.read_count":   se.ReadCount,
		"step.write_count":  se.WriteCount,
	})
}

func (l *TracingChunkListener) AfterChunkError(ctx context.Context, cc *model.ChunkContext, err error) {
	l.tracer.RecordEvent(ctx, "chunk.rolled_back", map[string]interface{}{
		"step.rollback_count": cc.StepExecution.RollbackCount,
	})
	l.tracer.RecordError(ctx, "chunk", err)
}

var _ port.ChunkListener = (*TracingChunkListener)(nil)
