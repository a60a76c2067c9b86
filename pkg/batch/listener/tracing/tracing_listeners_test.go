package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
)

type eventTracer struct {
	metrics.NoOpTracer
	events  []string
	attrs   []map[string]interface{}
	modules []string
}

func (t *eventTracer) RecordEvent(_ context.Context, name string, attrs map[string]interface{}) {
	t.events = append(t.events, name)
	t.attrs = append(t.attrs, attrs)
}

func (t *eventTracer) RecordError(_ context.Context, module string, _ error) {
	t.modules = append(t.modules, module)
}

func TestTracingJobListener(t *testing.T) {
	tracer := &eventTracer{}
	l := NewTracingJobListener(tracer)
	params := model.NewJobParametersBuilder().AddString("date", "2026-10-18").ToJobParameters()
	je := model.NewJobExecution(model.NewJobInstance("sumJob", params), params)

	l.BeforeJob(context.Background(), je)
	je.SetStatus(model.BatchStatusCompleted)
	je.SetExitStatus(model.ExitStatusCompleted)
	l.AfterJob(context.Background(), je)

	assert.Equal(t, []string{"job.started", "job.finished"}, tracer.events)
	assert.Equal(t, "COMPLETED", tracer.attrs[1]["job.status"])
	assert.Equal(t, model.ExitCodeCompleted, tracer.attrs[1]["job.exit_code"])
}

func TestTracingChunkListener(t *testing.T) {
	tracer := &eventTracer{}
	l := NewTracingChunkListener(tracer)
	params := model.NewJobParameters()
	je := model.NewJobExecution(model.NewJobInstance("sumJob", params), params)
	se := je.CreateStepExecution("sumStep")
	se.CommitCount = 2
	cc := model.NewChunkContext(se)

	l.BeforeChunk(context.Background(), cc)
	l.AfterChunk(context.Background(), cc)
	l.AfterChunkError(context.Background(), cc, assert.AnError)

	assert.Equal(t, []string{"chunk.committed", "chunk.rolled_back"}, tracer.events)
	assert.Equal(t, int64(2), tracer.attrs[0]["step.commit_count"])
	assert.Equal(t, []string{"chunk"}, tracer.modules)
}
