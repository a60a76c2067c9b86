package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

const defaultServiceName = "tidebatch"

func newResource(serviceName string) *resource.Resource {
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	return resource.NewSchemaless(attribute.String("service.name", serviceName))
}

// newSpanExporter returns the OTLP span exporter named by exporter, or nil
// for "none".
func newSpanExporter(ctx context.Context, exporter, endpoint string, insecure bool) (sdktrace.SpanExporter, error) {
	switch exporter {
	case "", config.ExporterNone:
		return nil, nil
	case config.ExporterOTLPHTTP:
		var opts []otlptracehttp.Option
		if endpoint != "" {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		return otlptracehttp.New(ctx, opts...)
	case config.ExporterOTLPGRPC:
		var opts []otlptracegrpc.Option
		if endpoint != "" {
			opts = append(opts, otlptracegrpc.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	default:
		return nil, exception.NewBatchErrorf("metrics", "unknown span exporter '%s'", exporter)
	}
}

// newMetricReader returns a periodic reader pushing to the OTLP exporter
// named by exporter. For "none" measurements are kept in a manual reader
// that nothing collects.
func newMetricReader(ctx context.Context, exporter, endpoint string, insecure bool) (sdkmetric.Reader, error) {
	switch exporter {
	case "", config.ExporterNone:
		return sdkmetric.NewManualReader(), nil
	case config.ExporterOTLPHTTP:
		var opts []otlpmetrichttp.Option
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlpmetrichttp.WithInsecure())
		}
		exp, err := otlpmetrichttp.New(ctx, opts...)
		if err != nil {
			return nil, exception.NewBatchError("metrics", "failed to create OTLP/HTTP metric exporter", err, false, false)
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	case config.ExporterOTLPGRPC:
		var opts []otlpmetricgrpc.Option
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		if insecure {
			opts = append(opts, otlpmetricgrpc.WithInsecure())
		}
		exp, err := otlpmetricgrpc.New(ctx, opts...)
		if err != nil {
			return nil, exception.NewBatchError("metrics", "failed to create OTLP/gRPC metric exporter", err, false, false)
		}
		return sdkmetric.NewPeriodicReader(exp), nil
	default:
		return nil, exception.NewBatchErrorf("metrics", "unknown metric exporter '%s'", exporter)
	}
}

// NewTracerProvider builds the SDK tracer provider described by cfg.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig) (*sdktrace.TracerProvider, error) {
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(newResource(cfg.ServiceName))}
	exporter, err := newSpanExporter(ctx, cfg.Exporter, cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, exception.NewBatchError("metrics", "failed to create span exporter", err, false, false)
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}
	return sdktrace.NewTracerProvider(opts...), nil
}

// NewMeterProvider builds the SDK meter provider described by cfg.
func NewMeterProvider(ctx context.Context, cfg config.MetricsConfig, serviceName string) (*sdkmetric.MeterProvider, error) {
	reader, err := newMetricReader(ctx, cfg.Exporter, cfg.Endpoint, cfg.Insecure)
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(newResource(serviceName)),
	), nil
}
