package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Job Metrics
	jobDurationSeconds *prometheus.HistogramVec
	jobStatusCounter   *prometheus.CounterVec
	jobsRunning        *prometheus.GaugeVec

	// Step Metrics
	stepDurationSeconds *prometheus.HistogramVec
	stepStatusCounter   *prometheus.CounterVec
	stepItemCount       *prometheus.CounterVec

	// Chunk and partition metrics
	chunkCommitCount   *prometheus.CounterVec
	chunkRollbackCount *prometheus.CounterVec
	partitionCount     *prometheus.CounterVec

	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder with its
// own registry, which also carries the Go runtime and process collectors.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		jobDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_job_duration_seconds",
			Help:    "Duration of batch job executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "status", "exit_code"}),
		jobStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_job_status_total",
			Help: "Total number of finished batch job executions by status.",
		}, []string{"job_name", "status"}),
		jobsRunning: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "batch_job_running",
			Help: "Number of batch job executions currently running.",
		}, []string{"job_name"}),
		stepDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_step_duration_seconds",
			Help:    "Duration of batch step executions.",
			Buckets: prometheus.DefBuckets,
		}, []string{"job_name", "step_name", "status", "exit_code"}),
		stepStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_status_total",
			Help: "Total number of finished batch step executions by status.",
		}, []string{"job_name", "step_name", "status"}),
		stepItemCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_step_items_total",
			Help: "Items handled by finished step executions, by kind (read, write, filter, skip).",
		}, []string{"job_name", "step_name", "kind"}),
		chunkCommitCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_chunk_commit_total",
			Help: "Total chunk commits by step.",
		}, []string{"step_name"}),
		chunkRollbackCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_chunk_rollback_total",
			Help: "Total chunk rollbacks by step.",
		}, []string{"step_name"}),
		partitionCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "batch_partitions_total",
			Help: "Total partitions started by partitioned steps.",
		}, []string{"step_name"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "batch_operation_duration_seconds",
			Help:    "Duration of named engine operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name", "step_name"}),
	}

	registry.MustRegister(
		r.jobDurationSeconds,
		r.jobStatusCounter,
		r.jobsRunning,
		r.stepDurationSeconds,
		r.stepStatusCounter,
		r.stepItemCount,
		r.chunkCommitCount,
		r.chunkRollbackCount,
		r.partitionCount,
		r.operationDurationSeconds,
	)
	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordJobStart records the start of a JobExecution.
func (r *PrometheusRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobsRunning.WithLabelValues(execution.JobName).Inc()
	logger.Debugf("Metrics: Job '%s' started.", execution.JobName)
}

// RecordJobEnd records the end of a JobExecution.
func (r *PrometheusRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	status := execution.GetStatus().String()
	r.jobStatusCounter.WithLabelValues(execution.JobName, status).Inc()
	if execution.StartTime.IsZero() {
		return
	}
	r.jobsRunning.WithLabelValues(execution.JobName).Dec()
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.jobDurationSeconds.WithLabelValues(execution.JobName, status, execution.GetExitStatus().ExitCode).Observe(duration)
	logger.Debugf("Metrics: Job '%s' ended. Duration: %.3fs", execution.JobName, duration)
}

// RecordStepStart records the start of a StepExecution.
func (r *PrometheusRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	logger.Debugf("Metrics: Step '%s' started.", execution.StepName)
}

// RecordStepEnd records the end of a StepExecution. Each execution ends once,
// so its item counters are added to the totals here.
func (r *PrometheusRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	jobName := jobNameOf(execution)
	stepName := execution.StepName
	status := execution.Status.String()

	r.stepStatusCounter.WithLabelValues(jobName, stepName, status).Inc()
	r.stepItemCount.WithLabelValues(jobName, stepName, "read").Add(float64(execution.ReadCount))
	r.stepItemCount.WithLabelValues(jobName, stepName, "write").Add(float64(execution.WriteCount))
	r.stepItemCount.WithLabelValues(jobName, stepName, "filter").Add(float64(execution.FilterCount))
	r.stepItemCount.WithLabelValues(jobName, stepName, "skip").Add(float64(execution.SkipCount()))

	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.stepDurationSeconds.WithLabelValues(jobName, stepName, status, execution.ExitStatus.ExitCode).Observe(duration)
	logger.Debugf("Metrics: Step '%s' ended. Duration: %.3fs", stepName, duration)
}

// RecordChunkCommit records chunk commits.
func (r *PrometheusRecorder) RecordChunkCommit(ctx context.Context, stepName string) {
	r.chunkCommitCount.WithLabelValues(stepName).Inc()
}

// RecordChunkRollback records chunk rollbacks.
func (r *PrometheusRecorder) RecordChunkRollback(ctx context.Context, stepName string) {
	r.chunkRollbackCount.WithLabelValues(stepName).Inc()
}

// RecordPartitions records the partitions started by a partitioned step.
func (r *PrometheusRecorder) RecordPartitions(ctx context.Context, stepName string, count int) {
	r.partitionCount.WithLabelValues(stepName).Add(float64(count))
}

// RecordDuration records the execution time of a specific operation. Only the
// "step" tag becomes a label.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name, tags["step"]).Observe(duration.Seconds())
}

// jobNameOf returns the job name of se, or "" for a detached execution.
func jobNameOf(se *model.StepExecution) string {
	if se.JobExecution == nil {
		return ""
	}
	return se.JobExecution.JobName
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
