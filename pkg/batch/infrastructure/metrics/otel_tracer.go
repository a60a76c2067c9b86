package metrics

import (
	"context"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
)

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
// A job span is the root of its step spans; partition spans are children of
// the span of their master step.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a new instance of OpenTelemetryTracer.
func NewOpenTelemetryTracer(provider trace.TracerProvider) *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: provider.Tracer(instrumentationName)}
}

// StartJobSpan starts a new span for a JobExecution. The final status is
// attached when the span ends.
func (t *OpenTelemetryTracer) StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "job "+execution.JobName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("job.name", execution.JobName),
			attribute.String("job.execution.id", execution.ID),
			attribute.String("job.instance.id", execution.JobInstanceID),
		))
	return ctx, func() {
		status := execution.GetStatus()
		exit := execution.GetExitStatus()
		span.SetAttributes(
			attribute.String("job.status", status.String()),
			attribute.String("job.exit_code", exit.ExitCode),
		)
		if status.IsUnsuccessful() {
			span.SetStatus(codes.Error, exit.ExitDescription)
		}
		span.End()
	}
}

// StartStepSpan starts a new span for a StepExecution.
func (t *OpenTelemetryTracer) StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "step "+execution.StepName,
		trace.WithAttributes(
			attribute.String("step.name", execution.StepName),
			attribute.String("step.execution.id", execution.ID),
			attribute.String("job.execution.id", execution.JobExecutionID),
		))
	return ctx, func() {
		span.SetAttributes(
			attribute.String("step.status", execution.Status.String()),
			attribute.String("step.exit_code", execution.ExitStatus.ExitCode),
			attribute.Int64("step.read_count", execution.ReadCount),
			attribute.Int64("step.write_count", execution.WriteCount),
			attribute.Int64("step.commit_count", execution.CommitCount),
			attribute.Int64("step.rollback_count", execution.RollbackCount),
		)
		if execution.Status.IsUnsuccessful() {
			span.SetStatus(codes.Error, execution.ExitStatus.ExitDescription)
		}
		span.End()
	}
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(toAttributes(attributes)...))
}

// toAttributes converts attributes in key order.
func toAttributes(attributes map[string]interface{}) []attribute.KeyValue {
	keys := make([]string, 0, len(attributes))
	for k := range attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	kvs := make([]attribute.KeyValue, 0, len(keys))
	for _, k := range keys {
		switch v := attributes[k].(type) {
		case string:
			kvs = append(kvs, attribute.String(k, v))
		case bool:
			kvs = append(kvs, attribute.Bool(k, v))
		case int:
			kvs = append(kvs, attribute.Int(k, v))
		case int64:
			kvs = append(kvs, attribute.Int64(k, v))
		case float64:
			kvs = append(kvs, attribute.Float64(k, v))
		default:
			kvs = append(kvs, attribute.String(k, fmt.Sprint(v)))
		}
	}
	return kvs
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
