// Package job assembles the partitioned-sum job.
package job

import (
	"go.uber.org/fx"

	"github.com/tigerroll/tidebatch/example/partitioned-sum/internal/sum"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/tidebatch/pkg/batch/component/flow"
	"github.com/tigerroll/tidebatch/pkg/batch/component/item"
	"github.com/tigerroll/tidebatch/pkg/batch/component/partitioner"
	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	coreflow "github.com/tigerroll/tidebatch/pkg/batch/core/flow"
	"github.com/tigerroll/tidebatch/pkg/batch/core/job/runner"
	chunk "github.com/tigerroll/tidebatch/pkg/batch/engine/step/item"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/partition"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// Names of the job, its steps and its outcomes.
const (
	JobName          = "partitionedSumJob"
	ExpectedStep     = "expectedSum"
	PartitionStep    = "sumRange"
	WorkerStep       = "sumRangeWorker"
	CollectStep      = "collectSum"
	VerifyDecision   = "verifySum"
	ReportStep       = "publishReport"
	ReportStorage    = "reports"
	MismatchExitCode = "SUM_MISMATCH"
)

// Params are the dependencies of NewSumJob.
type Params struct {
	fx.In
	Config      *config.Config
	Jobs        *runner.JobFactory
	Partitions  *partition.Factory
	Storage     storage.ConnectionResolver
	Incrementer port.JobParametersIncrementer `name:"runIdIncrementer"`
	Max         int64                         `name:"sumMax"`
}

// NewSumJob builds the job:
//
//	expectedSum -> sumRange (partitioned) -> collectSum -> verifySum
//	verifySum COMPLETED -> publishReport
//	verifySum FAILED    -> fail with SUM_MISMATCH
//
// expectedSum adds 1..max with a chunk step, sumRange adds the same values
// split over the grid, and verifySum routes on whether both totals agree.
func NewSumJob(p Params) (*runner.FlowJob, error) {
	repo := p.Jobs.JobRepository()
	chunkSize := p.Config.Tidebatch.Batch.ChunkSize

	values := make([]int64, 0, p.Max)
	for v := int64(1); v <= p.Max; v++ {
		values = append(values, v)
	}
	expected, err := chunk.NewChunkStepBuilder[int64, int64](ExpectedStep, repo).
		Reader(item.NewListItemReader("values", values)).
		Processor(item.NewPassThroughItemProcessor[int64]()).
		Writer(sum.NewExpectedSumWriter()).
		ChunkSize(chunkSize).
		Buffering(p.Config.Tidebatch.Batch.Buffering).
		Options(p.Jobs.StepOptions()...).
		Build()
	if err != nil {
		return nil, err
	}

	ranges := partitioner.NewRangePartitioner(1, p.Max)
	worker := tasklet.NewTaskletStep(WorkerStep, sum.NewRangeSumTasklet(chunkSize), repo, p.Jobs.StepOptions()...)
	partitioned := p.Partitions.NewPartitionStep(PartitionStep, worker, ranges, p.Jobs.StepOptions()...)

	collect := tasklet.NewTaskletStep(CollectStep,
		sum.NewCollectTasklet(repo, ranges, PartitionStep, ExpectedStep), repo, p.Jobs.StepOptions()...)
	report := tasklet.NewTaskletStep(ReportStep,
		sum.NewReportTasklet(p.Storage, ReportStorage), repo, p.Jobs.StepOptions()...)

	verify := coreflow.NewDecisionState(VerifyDecision, flow.NewConditionalDecision(VerifyDecision, sum.VerifiedKey, "true"))

	f, err := coreflow.NewBuilder(JobName).
		Start(coreflow.NewStepState(expected)).
		Next(coreflow.NewStepState(partitioned)).
		Next(coreflow.NewStepState(collect)).
		Next(verify).
		On("COMPLETED").To(coreflow.NewStepState(report)).
		From(verify).On("FAILED").Fail(MismatchExitCode).
		Build()
	if err != nil {
		return nil, err
	}

	logger.Debugf("Job '%s' built: summing 1..%d over a grid of %d.", JobName, p.Max, p.Partitions.GridSize())
	return p.Jobs.NewFlowJob(JobName, f, runner.WithIncrementer(p.Incrementer)), nil
}

// Module registers the job in the "jobs" group read by the job registry.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewSumJob,
		fx.As(new(port.Job)),
		fx.ResultTags(`group:"jobs"`),
	)),
)
