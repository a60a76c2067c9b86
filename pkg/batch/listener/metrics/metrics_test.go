package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
)

type recordingRecorder struct {
	metrics.NoOpMetricRecorder
	mu        sync.Mutex
	events    []string
	stepReads []int64
}

func (r *recordingRecorder) add(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingRecorder) RecordJobStart(context.Context, *model.JobExecution) { r.add("job_start") }
func (r *recordingRecorder) RecordStepEnd(_ context.Context, se *model.StepExecution) {
	r.mu.Lock()
	r.stepReads = append(r.stepReads, se.ReadCount)
	r.mu.Unlock()
	r.add("step_end")
}
func (r *recordingRecorder) RecordChunkCommit(_ context.Context, step string) { r.add("commit:" + step) }
func (r *recordingRecorder) RecordChunkRollback(_ context.Context, step string) {
	r.add("rollback:" + step)
}
func (r *recordingRecorder) RecordPartitions(context.Context, string, int) { r.add("partitions") }
func (r *recordingRecorder) RecordDuration(context.Context, string, time.Duration, map[string]string) {
	r.add("duration")
}

func newStepExecution() *model.StepExecution {
	params := model.NewJobParameters()
	je := model.NewJobExecution(model.NewJobInstance("sumJob", params), params)
	return je.CreateStepExecution("sumStep")
}

func TestMetricsChunkListener(t *testing.T) {
	rec := &recordingRecorder{}
	l := NewMetricsChunkListener(rec)
	cc := model.NewChunkContext(newStepExecution())

	l.BeforeChunk(context.Background(), cc)
	l.AfterChunk(context.Background(), cc)
	l.AfterChunkError(context.Background(), cc, assert.AnError)

	assert.Equal(t, []string{"commit:sumStep", "rollback:sumStep"}, rec.events)
}

func TestAsyncMetricRecorder_DrainsQueueOnClose(t *testing.T) {
	rec := &recordingRecorder{}
	async := NewAsyncMetricRecorder(16, rec)
	ctx := context.Background()

	se := newStepExecution()
	se.ReadCount = 5

	async.RecordJobStart(ctx, se.JobExecution)
	async.RecordChunkCommit(ctx, "sumStep")
	async.RecordChunkRollback(ctx, "sumStep")
	async.RecordPartitions(ctx, "sumStep", 4)
	async.RecordDuration(ctx, "read", time.Millisecond, nil)
	async.RecordStepEnd(ctx, se)
	// Later changes must not leak into the queued snapshot.
	se.ReadCount = 99

	async.Close()
	async.Close()

	assert.Equal(t, []string{"job_start", "commit:sumStep", "rollback:sumStep", "partitions", "duration", "step_end"}, rec.events)
	assert.Equal(t, []int64{5}, rec.stepReads)
}

func TestAsyncMetricRecorder_KeepsContextValuesAfterCancel(t *testing.T) {
	type key struct{}
	got := make(chan interface{}, 1)
	rec := &ctxRecorder{got: got, key: key{}}
	async := NewAsyncMetricRecorder(1, rec)

	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), key{}, "span"))
	cancel()
	async.RecordChunkCommit(ctx, "sumStep")
	async.Close()

	select {
	case v := <-got:
		assert.Equal(t, "span", v)
	default:
		t.Fatal("event was not recorded")
	}
}

type ctxRecorder struct {
	metrics.NoOpMetricRecorder
	got chan interface{}
	key interface{}
}

func (r *ctxRecorder) RecordChunkCommit(ctx context.Context, _ string) {
	if ctx.Err() == nil {
		r.got <- ctx.Value(r.key)
	}
}

func TestDecorateAsync(t *testing.T) {
	tests := []struct {
		name      string
		enabled   bool
		buffer    int
		wantAsync bool
	}{
		{name: "disabled metrics", enabled: false, buffer: 10},
		{name: "synchronous", enabled: true, buffer: 0},
		{name: "asynchronous", enabled: true, buffer: 10, wantAsync: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.Tidebatch.Infrastructure.Metrics.Enabled = tt.enabled
			cfg.Tidebatch.Infrastructure.Metrics.AsyncBufferSize = tt.buffer

			var recorder metrics.MetricRecorder
			app := fxtest.New(t,
				fx.Supply(cfg),
				fx.Provide(metrics.NewNoOpMetricRecorder),
				fx.Decorate(DecorateAsync),
				fx.Populate(&recorder),
			)
			app.RequireStart()
			app.RequireStop()

			_, isAsync := recorder.(*AsyncMetricRecorder)
			require.Equal(t, tt.wantAsync, isAsync)
		})
	}
}
