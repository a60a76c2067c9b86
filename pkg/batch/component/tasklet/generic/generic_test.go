package generic_test

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	componentflow "github.com/tigerroll/tidebatch/pkg/batch/component/flow"
	"github.com/tigerroll/tidebatch/pkg/batch/component/tasklet/generic"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/flow"
	"github.com/tigerroll/tidebatch/pkg/batch/core/job/runner"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/tidebatch/pkg/batch/infrastructure/repository/inmemory"
	batchtest "github.com/tigerroll/tidebatch/pkg/batch/test"
)

func execute(t *testing.T, tl tasklet.Tasklet) (*model.ChunkContext, tasklet.RepeatStatus, error) {
	t.Helper()
	cc := batchtest.NewTestChunkContext("genericJob", "generic")
	status, err := tl.Execute(context.Background(), cc.StepExecution.CreateStepContribution(), cc)
	return cc, status, err
}

func TestExecutionContextWriterTasklet_WritesTypedValues(t *testing.T) {
	cc, status, err := execute(t, generic.NewExecutionContextWriterTasklet("writer", map[string]string{
		"name.string":      "tide",
		"sum.expected.int": "5050",
		"ratio.float":      "0.25",
		"verified.bool":    "true",
		"region.custom":    "eu",
	}))
	require.NoError(t, err)
	assert.Equal(t, tasklet.Finished, status)

	ec := cc.StepExecution.ExecutionContext
	assert.Equal(t, "tide", ec.GetString("name", ""))
	v, ok := ec.Get("sum.expected")
	require.True(t, ok)
	assert.Equal(t, int64(5050), v)
	assert.Equal(t, 0.25, ec.GetFloat64("ratio", 0))
	assert.True(t, ec.GetBool("verified", false))
	assert.Equal(t, "eu", ec.GetString("region", ""))
	assert.False(t, cc.StepExecution.JobExecution.ExecutionContext.ContainsKey("name"))
}

func TestExecutionContextWriterTasklet_JobScope(t *testing.T) {
	cc, _, err := execute(t, generic.NewExecutionContextWriterTasklet("writer", map[string]string{
		"mode.string": "fast",
	}).InJobScope())
	require.NoError(t, err)
	assert.Equal(t, "fast", cc.StepExecution.JobExecution.ExecutionContext.GetString("mode", ""))
	assert.False(t, cc.StepExecution.ExecutionContext.ContainsKey("mode"))
}

func TestExecutionContextWriterTasklet_InvalidProperties(t *testing.T) {
	for name, props := range map[string]map[string]string{
		"bad int":     {"count.int": "ten"},
		"bad bool":    {"flag.bool": "maybe"},
		"no type":     {"count": "1"},
		"empty type":  {"count.": "1"},
		"leading dot": {".int": "1"},
	} {
		t.Run(name, func(t *testing.T) {
			_, status, err := execute(t, generic.NewExecutionContextWriterTasklet("writer", props))
			assert.Error(t, err)
			assert.Equal(t, tasklet.Failed, status)
		})
	}
}

func TestExecutionContextWriterTasklet_RoutesDecision(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewJobRepository()

	writer := tasklet.NewTaskletStep("configure", generic.NewExecutionContextWriterTasklet("configure", map[string]string{
		"mode.string": "fast",
	}).InJobScope(), repo)
	var fastRuns int
	fast := tasklet.NewTaskletStep("fastPath", tasklet.Func(
		func(context.Context, *model.StepContribution, *model.ChunkContext) (tasklet.RepeatStatus, error) {
			fastRuns++
			return tasklet.Finished, nil
		}), repo)
	decision := flow.NewDecisionState("mode", componentflow.NewConditionalDecision("mode", "mode", "fast"))

	f, err := flow.NewBuilder("routing").
		Start(flow.NewStepState(writer)).
		Next(decision).On("COMPLETED").To(flow.NewStepState(fast)).
		From(decision).On("FAILED").Fail("NO_MODE").
		Build()
	require.NoError(t, err)

	job := runner.NewFlowJob("routing", f, repo)
	je, err := repo.CreateJobExecution(ctx, job.Name(), model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, job.Execute(ctx, je))

	assert.Equal(t, model.BatchStatusCompleted, je.GetStatus())
	assert.Equal(t, 1, fastRuns)
}

func TestRandomFailTasklet_FailCount(t *testing.T) {
	tl := generic.NewRandomFailTasklet("flaky", generic.WithFailCount(2))

	for run := 1; run <= 2; run++ {
		_, status, err := execute(t, tl)
		assert.Error(t, err, "run %d", run)
		assert.Equal(t, tasklet.Failed, status)
	}
	_, status, err := execute(t, tl)
	require.NoError(t, err)
	assert.Equal(t, tasklet.Finished, status)
	assert.Equal(t, 3, tl.Runs())
}

func TestRandomFailTasklet_Rate(t *testing.T) {
	always := generic.NewRandomFailTasklet("always", generic.WithFailRate(1))
	never := generic.NewRandomFailTasklet("never", generic.WithFailRate(0))
	for i := 0; i < 20; i++ {
		_, _, err := execute(t, always)
		assert.Error(t, err)
		_, _, err = execute(t, never)
		assert.NoError(t, err)
	}

	// The same seed yields the same sequence of outcomes.
	outcomes := func() []bool {
		tl := generic.NewRandomFailTasklet("seeded", generic.WithRand(rand.New(rand.NewPCG(7, 11))))
		var out []bool
		for i := 0; i < 16; i++ {
			_, _, err := execute(t, tl)
			out = append(out, err == nil)
		}
		return out
	}
	assert.Equal(t, outcomes(), outcomes())
}
