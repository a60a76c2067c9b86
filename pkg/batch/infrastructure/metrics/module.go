// Package metrics provides the telemetry backends behind the core metrics
// ports: a Prometheus or OpenTelemetry MetricRecorder and an OpenTelemetry
// Tracer, selected by tidebatch.infrastructure.metrics and .tracing.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus/push"
	"go.opentelemetry.io/otel"
	"go.uber.org/fx"

	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// Params are the dependencies of the providers in this package.
type Params struct {
	fx.In
	Lifecycle fx.Lifecycle
	Cfg       *config.Config
}

// NewMetricRecorder builds the configured MetricRecorder. Disabled metrics
// yield a no-op recorder.
func NewMetricRecorder(p Params) (metrics.MetricRecorder, error) {
	m := p.Cfg.Tidebatch.Infrastructure.Metrics
	if !m.Enabled {
		return metrics.NewNoOpMetricRecorder(), nil
	}
	switch m.Backend {
	case "", config.MetricsBackendPrometheus:
		recorder := NewPrometheusRecorder()
		if m.Endpoint != "" {
			job := p.Cfg.Tidebatch.Batch.JobName
			if job == "" {
				job = defaultServiceName
			}
			pusher := push.New(m.Endpoint, job).Gatherer(recorder.GetRegistry())
			p.Lifecycle.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					if err := pusher.PushContext(ctx); err != nil {
						logger.Errorf("Metrics: failed to push to Pushgateway '%s': %v", m.Endpoint, err)
					}
					return nil
				},
			})
		}
		logger.Infof("Metrics: using Prometheus recorder.")
		return recorder, nil

	case config.MetricsBackendOTel:
		provider, err := NewMeterProvider(context.Background(), m, p.Cfg.Tidebatch.Infrastructure.Tracing.ServiceName)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{OnStop: provider.Shutdown})
		otel.SetMeterProvider(provider)
		logger.Infof("Metrics: using OpenTelemetry recorder (exporter: %s).", m.Exporter)
		return NewOTelMetricRecorder(provider)

	default:
		return nil, exception.NewBatchErrorf("metrics", "unknown metrics backend '%s'", m.Backend)
	}
}

// NewTracer builds the configured Tracer. Disabled tracing yields a no-op tracer.
func NewTracer(p Params) (metrics.Tracer, error) {
	t := p.Cfg.Tidebatch.Infrastructure.Tracing
	if !t.Enabled {
		return metrics.NewNoOpTracer(), nil
	}
	provider, err := NewTracerProvider(context.Background(), t)
	if err != nil {
		return nil, err
	}
	p.Lifecycle.Append(fx.Hook{OnStop: provider.Shutdown})
	otel.SetTracerProvider(provider)
	logger.Infof("Tracing: using OpenTelemetry tracer (exporter: %s).", t.Exporter)
	return NewOpenTelemetryTracer(provider), nil
}

// Module provides metrics.MetricRecorder and metrics.Tracer.
var Module = fx.Options(
	fx.Provide(NewMetricRecorder),
	fx.Provide(NewTracer),
)
