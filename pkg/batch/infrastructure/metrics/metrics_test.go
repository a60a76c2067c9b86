package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
)

func newFinishedJob(t *testing.T, status model.BatchStatus) *model.JobExecution {
	t.Helper()
	params := model.NewJobParameters()
	je := model.NewJobExecution(model.NewJobInstance("sumJob", params), params)
	je.StartTime = time.Now().Add(-2 * time.Second)
	end := time.Now()
	je.EndTime = &end
	je.SetStatus(status)
	return je
}

func TestPrometheusRecorder_JobAndStep(t *testing.T) {
	ctx := context.Background()
	r := NewPrometheusRecorder()

	je := newFinishedJob(t, model.BatchStatusStarted)
	r.RecordJobStart(ctx, je)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobsRunning.WithLabelValues("sumJob")))

	se := je.CreateStepExecution("sumStep")
	se.ReadCount = 7
	se.WriteCount = 5
	se.FilterCount = 2
	se.Status = model.BatchStatusCompleted
	stepEnd := time.Now()
	se.EndTime = &stepEnd
	r.RecordStepEnd(ctx, se)

	je.SetStatus(model.BatchStatusCompleted)
	r.RecordJobEnd(ctx, je)

	assert.Equal(t, 0.0, testutil.ToFloat64(r.jobsRunning.WithLabelValues("sumJob")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.jobStatusCounter.WithLabelValues("sumJob", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stepStatusCounter.WithLabelValues("sumJob", "sumStep", "COMPLETED")))
	assert.Equal(t, 7.0, testutil.ToFloat64(r.stepItemCount.WithLabelValues("sumJob", "sumStep", "read")))
	assert.Equal(t, 5.0, testutil.ToFloat64(r.stepItemCount.WithLabelValues("sumJob", "sumStep", "write")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.stepItemCount.WithLabelValues("sumJob", "sumStep", "filter")))
}

func TestPrometheusRecorder_ChunksAndPartitions(t *testing.T) {
	ctx := context.Background()
	r := NewPrometheusRecorder()

	r.RecordChunkCommit(ctx, "sumStep")
	r.RecordChunkCommit(ctx, "sumStep")
	r.RecordChunkRollback(ctx, "sumStep")
	r.RecordPartitions(ctx, "sumStep", 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.chunkCommitCount.WithLabelValues("sumStep")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.chunkRollbackCount.WithLabelValues("sumStep")))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.partitionCount.WithLabelValues("sumStep")))

	families, err := r.GetRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["batch_chunk_commit_total"])
	assert.True(t, names["batch_partitions_total"])
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.True(t, ok, "metric %s not collected", name)
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "metric %s is not an int64 sum", name)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestOTelMetricRecorder(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	r, err := NewOTelMetricRecorder(provider)
	require.NoError(t, err)

	je := newFinishedJob(t, model.BatchStatusStarted)
	r.RecordJobStart(ctx, je)
	r.RecordChunkCommit(ctx, "sumStep")
	r.RecordChunkCommit(ctx, "sumStep")
	r.RecordChunkRollback(ctx, "sumStep")
	r.RecordPartitions(ctx, "sumStep", 3)
	je.SetStatus(model.BatchStatusFailed)
	r.RecordJobEnd(ctx, je)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.Equal(t, int64(2), sumOf(t, rm, "batch.chunk.commits"))
	assert.Equal(t, int64(1), sumOf(t, rm, "batch.chunk.rollbacks"))
	assert.Equal(t, int64(3), sumOf(t, rm, "batch.partitions"))
	assert.Equal(t, int64(1), sumOf(t, rm, "batch.job.executions"))
	assert.Equal(t, int64(0), sumOf(t, rm, "batch.job.running"))

	_, ok := findMetric(rm, "batch.job.duration")
	assert.True(t, ok)
}

func TestOpenTelemetryTracer_SpanHierarchy(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := NewOpenTelemetryTracer(provider)

	params := model.NewJobParameters()
	je := model.NewJobExecution(model.NewJobInstance("sumJob", params), params)
	jobCtx, endJob := tracer.StartJobSpan(context.Background(), je)

	se := je.CreateStepExecution("sumStep")
	stepCtx, endStep := tracer.StartStepSpan(jobCtx, se)
	tracer.RecordEvent(stepCtx, "chunk.committed", map[string]interface{}{"read": 3, "step": "sumStep"})
	tracer.RecordError(stepCtx, "step", errors.New("boom"))
	se.Status = model.BatchStatusFailed
	se.ExitStatus = model.ExitStatusFailed
	endStep()

	je.SetStatus(model.BatchStatusFailed)
	endJob()

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	step, job := spans[0], spans[1]

	assert.Equal(t, "step sumStep", step.Name())
	assert.Equal(t, "job sumJob", job.Name())
	assert.Equal(t, job.SpanContext().SpanID(), step.Parent().SpanID())
	assert.False(t, job.Parent().IsValid())
	assert.Equal(t, codes.Error, step.Status().Code)
	assert.Equal(t, codes.Error, job.Status().Code)

	var eventNames []string
	for _, e := range step.Events() {
		eventNames = append(eventNames, e.Name)
	}
	assert.Contains(t, eventNames, "chunk.committed")
	assert.Contains(t, eventNames, "exception")
}

func TestOpenTelemetryTracer_CompletedJobHasNoErrorStatus(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tracer := NewOpenTelemetryTracer(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))

	je := newFinishedJob(t, model.BatchStatusCompleted)
	_, end := tracer.StartJobSpan(context.Background(), je)
	end()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestModule_SelectsBackend(t *testing.T) {
	tests := []struct {
		name         string
		configure    func(cfg *config.Config)
		wantRecorder interface{}
		wantTracer   interface{}
	}{
		{
			name:         "disabled",
			configure:    func(*config.Config) {},
			wantRecorder: &metrics.NoOpMetricRecorder{},
			wantTracer:   &metrics.NoOpTracer{},
		},
		{
			name: "prometheus",
			configure: func(cfg *config.Config) {
				cfg.Tidebatch.Infrastructure.Metrics.Enabled = true
			},
			wantRecorder: &PrometheusRecorder{},
			wantTracer:   &metrics.NoOpTracer{},
		},
		{
			name: "otel without exporter",
			configure: func(cfg *config.Config) {
				cfg.Tidebatch.Infrastructure.Metrics.Enabled = true
				cfg.Tidebatch.Infrastructure.Metrics.Backend = config.MetricsBackendOTel
				cfg.Tidebatch.Infrastructure.Tracing.Enabled = true
			},
			wantRecorder: &OTelMetricRecorder{},
			wantTracer:   &OpenTelemetryTracer{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			tt.configure(cfg)

			var recorder metrics.MetricRecorder
			var tracer metrics.Tracer
			app := fxtest.New(t,
				fx.Supply(cfg),
				Module,
				fx.Populate(&recorder, &tracer),
			)
			app.RequireStart()
			defer app.RequireStop()

			assert.IsType(t, tt.wantRecorder, recorder)
			assert.IsType(t, tt.wantTracer, tracer)
		})
	}
}

func TestModule_UnknownBackend(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Tidebatch.Infrastructure.Metrics.Enabled = true
	cfg.Tidebatch.Infrastructure.Metrics.Backend = "statsd"

	var recorder metrics.MetricRecorder
	app := fx.New(fx.NopLogger, fx.Supply(cfg), Module, fx.Populate(&recorder))
	assert.Error(t, app.Err())
}
