package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// instrumentationName is the scope name of the meters and tracers created here.
const instrumentationName = "github.com/tigerroll/tidebatch"

// OTelMetricRecorder implements metrics.MetricRecorder with OpenTelemetry
// instruments. The MeterProvider decides where the measurements go.
type OTelMetricRecorder struct {
	jobDuration   otelmetric.Float64Histogram
	jobCount      otelmetric.Int64Counter
	jobsRunning   otelmetric.Int64UpDownCounter
	stepDuration  otelmetric.Float64Histogram
	stepCount     otelmetric.Int64Counter
	stepItems     otelmetric.Int64Counter
	chunkCommits  otelmetric.Int64Counter
	chunkRollback otelmetric.Int64Counter
	partitions    otelmetric.Int64Counter
	operation     otelmetric.Float64Histogram
}

// NewOTelMetricRecorder creates the instruments on a meter of provider.
func NewOTelMetricRecorder(provider otelmetric.MeterProvider) (*OTelMetricRecorder, error) {
	meter := provider.Meter(instrumentationName)
	r := &OTelMetricRecorder{}
	var err error
	if r.jobDuration, err = meter.Float64Histogram("batch.job.duration",
		otelmetric.WithUnit("s"), otelmetric.WithDescription("Duration of batch job executions.")); err != nil {
		return nil, wrapInstrumentError("batch.job.duration", err)
	}
	if r.jobCount, err = meter.Int64Counter("batch.job.executions",
		otelmetric.WithDescription("Finished batch job executions by status.")); err != nil {
		return nil, wrapInstrumentError("batch.job.executions", err)
	}
	if r.jobsRunning, err = meter.Int64UpDownCounter("batch.job.running",
		otelmetric.WithDescription("Batch job executions currently running.")); err != nil {
		return nil, wrapInstrumentError("batch.job.running", err)
	}
	if r.stepDuration, err = meter.Float64Histogram("batch.step.duration",
		otelmetric.WithUnit("s"), otelmetric.WithDescription("Duration of batch step executions.")); err != nil {
		return nil, wrapInstrumentError("batch.step.duration", err)
	}
	if r.stepCount, err = meter.Int64Counter("batch.step.executions",
		otelmetric.WithDescription("Finished batch step executions by status.")); err != nil {
		return nil, wrapInstrumentError("batch.step.executions", err)
	}
	if r.stepItems, err = meter.Int64Counter("batch.step.items",
		otelmetric.WithDescription("Items handled by finished step executions, by kind.")); err != nil {
		return nil, wrapInstrumentError("batch.step.items", err)
	}
	if r.chunkCommits, err = meter.Int64Counter("batch.chunk.commits",
		otelmetric.WithDescription("Chunk commits by step.")); err != nil {
		return nil, wrapInstrumentError("batch.chunk.commits", err)
	}
	if r.chunkRollback, err = meter.Int64Counter("batch.chunk.rollbacks",
		otelmetric.WithDescription("Chunk rollbacks by step.")); err != nil {
		return nil, wrapInstrumentError("batch.chunk.rollbacks", err)
	}
	if r.partitions, err = meter.Int64Counter("batch.partitions",
		otelmetric.WithDescription("Partitions started by partitioned steps.")); err != nil {
		return nil, wrapInstrumentError("batch.partitions", err)
	}
	if r.operation, err = meter.Float64Histogram("batch.operation.duration",
		otelmetric.WithUnit("s"), otelmetric.WithDescription("Duration of named engine operations.")); err != nil {
		return nil, wrapInstrumentError("batch.operation.duration", err)
	}
	return r, nil
}

func wrapInstrumentError(name string, err error) error {
	return exception.NewBatchError("metrics", "failed to create instrument "+name, err, false, false)
}

// RecordJobStart implements metrics.MetricRecorder.
func (r *OTelMetricRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobsRunning.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("job.name", execution.JobName)))
}

// RecordJobEnd implements metrics.MetricRecorder.
func (r *OTelMetricRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	attrs := otelmetric.WithAttributes(
		attribute.String("job.name", execution.JobName),
		attribute.String("job.status", execution.GetStatus().String()),
	)
	r.jobCount.Add(ctx, 1, attrs)
	if execution.StartTime.IsZero() {
		return
	}
	r.jobsRunning.Add(ctx, -1, otelmetric.WithAttributes(attribute.String("job.name", execution.JobName)))
	if execution.EndTime != nil {
		r.jobDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), attrs)
	}
}

// RecordStepStart implements metrics.MetricRecorder.
func (r *OTelMetricRecorder) RecordStepStart(context.Context, *model.StepExecution) {}

// RecordStepEnd implements metrics.MetricRecorder.
func (r *OTelMetricRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	base := []attribute.KeyValue{
		attribute.String("job.name", jobNameOf(execution)),
		attribute.String("step.name", execution.StepName),
	}
	statusAttrs := otelmetric.WithAttributes(append(base, attribute.String("step.status", execution.Status.String()))...)
	r.stepCount.Add(ctx, 1, statusAttrs)
	for kind, n := range map[string]int64{
		"read":   execution.ReadCount,
		"write":  execution.WriteCount,
		"filter": execution.FilterCount,
		"skip":   execution.SkipCount(),
	} {
		r.stepItems.Add(ctx, n, otelmetric.WithAttributes(append(base, attribute.String("item.kind", kind))...))
	}
	if execution.EndTime != nil {
		r.stepDuration.Record(ctx, execution.EndTime.Sub(execution.StartTime).Seconds(), statusAttrs)
	}
}

// RecordChunkCommit implements metrics.MetricRecorder.
func (r *OTelMetricRecorder) RecordChunkCommit(ctx context.Context, stepName string) {
	r.chunkCommits.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("step.name", stepName)))
}

// RecordChunkRollback implements metrics.MetricRecorder.
func (r *OTelMetricRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.chunkRollback.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("step.name", stepName)))
}

// RecordPartitions implements metrics.MetricRecorder.
func (r *OTelMetricRecorder) RecordPartitions(ctx context.Context, stepName string, count int) {
	r.partitions.Add(ctx, int64(count), otelmetric.WithAttributes(attribute.String("step.name", stepName)))
}

// RecordDuration implements metrics.MetricRecorder. Every tag becomes an attribute.
func (r *OTelMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	attrs := make([]attribute.KeyValue, 0, len(tags)+1)
	attrs = append(attrs, attribute.String("operation", name))
	for k, v := range tags {
		attrs = append(attrs, attribute.String(k, v))
	}
	r.operation.Record(ctx, duration.Seconds(), otelmetric.WithAttributes(attrs...))
}

var _ metrics.MetricRecorder = (*OTelMetricRecorder)(nil)
