// Package metrics defines the observability ports of the engine: a
// MetricRecorder for counters and timings and a Tracer for spans. The no-op
// implementations in this package are used whenever no backend is configured.
package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// MetricRecorder records metrics about job, step, chunk and partition
// execution. Implementations must be safe for concurrent use: partitions of a
// step report from several goroutines at once.
type MetricRecorder interface {
	// RecordJobStart records the start of a JobExecution.
	//
	// ctx: The context for the operation.
	// execution: The started JobExecution.
	RecordJobStart(ctx context.Context, execution *model.JobExecution)

	// RecordJobEnd records the end of a JobExecution, including its final status
	// and duration.
	//
	// ctx: The context for the operation.
	// execution: The ended JobExecution.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)

	// RecordStepStart records the start of a StepExecution.
	//
	// ctx: The context for the operation.
	// execution: The started StepExecution.
	RecordStepStart(ctx context.Context, execution *model.StepExecution)

	// RecordStepEnd records the end of a StepExecution together with its item
	// counters.
	//
	// ctx: The context for the operation.
	// execution: The ended StepExecution.
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)

	// RecordChunkCommit records a committed tasklet invocation.
	//
	// ctx: The context for the operation.
	// stepName: The name of the step that committed.
	RecordChunkCommit(ctx context.Context, stepName string)

	// RecordChunkRollback records a rolled back tasklet invocation.
	//
	// ctx: The context for the operation.
	// stepName: The name of the step that rolled back.
	RecordChunkRollback(ctx context.Context, stepName string)

	// RecordPartitions records how many partitions a partitioned step started.
	//
	// ctx: The context for the operation.
	// stepName: The name of the partitioned step.
	// count: The number of partitions handed to the task executor.
	RecordPartitions(ctx context.Context, stepName string, count int)

	// RecordDuration records the execution time of a specific operation.
	//
	// ctx: The context for the operation.
	// name: The name of the duration to record (e.g., "partition_split").
	// duration: The length of the duration to record.
	// tags: Additional attributes to associate with the duration.
	//       Example: `{"step": "sumStep"}`
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
