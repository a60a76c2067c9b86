package flow_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/flow"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

type goExecutor struct{}

func (goExecutor) Execute(task func()) error {
	go task()
	return nil
}

// limitedExecutor runs the first accept tasks inline and rejects the rest.
type limitedExecutor struct {
	accept   int32
	accepted atomic.Int32
}

func (e *limitedExecutor) Execute(task func()) error {
	if e.accepted.Add(1) > e.accept {
		return exception.NewBatchError("test", "executor is full", exception.ErrTaskRejected, false, false)
	}
	task()
	return nil
}

func branch(t *testing.T, name, code string) flow.Flow {
	t.Helper()
	f, err := flow.NewBuilder(name).Start(flow.NewStepState(step(name+"Step", code))).Build()
	require.NoError(t, err)
	return f
}

func TestSplitState_AggregatesMostSevereStatus(t *testing.T) {
	split := flow.NewSplitState("split", goExecutor{},
		branch(t, "a", "COMPLETED"),
		branch(t, "b", "FAILED"),
		branch(t, "c", "COMPLETED"),
	)

	exec := newExecutor(false)
	status, err := split.Handle(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusFailed, status)
	assert.ElementsMatch(t, []string{"aStep", "bStep", "cStep"}, exec.journal.ranSteps())
	assert.Equal(t, 3, exec.journal.forks)
	assert.Nil(t, exec.StepExecution(), "branches must not touch the parent scope")
}

func TestSplitState_InsideFlow(t *testing.T) {
	split := flow.NewSplitState("split", goExecutor{}, branch(t, "a", "COMPLETED"), branch(t, "b", "COMPLETED"))
	after := flow.NewStepState(step("after", "COMPLETED"))

	f, err := flow.NewBuilder("job").Start(split).Next(after).Build()
	require.NoError(t, err)

	exec := newExecutor(false)
	result, err := f.Start(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusCompleted, result.Status)
	ran := exec.journal.ranSteps()
	require.Len(t, ran, 3)
	assert.Equal(t, "after", ran[2])
}

func TestSplitState_RejectedSubmissionFails(t *testing.T) {
	split := flow.NewSplitState("split", &limitedExecutor{accept: 1},
		branch(t, "a", "COMPLETED"),
		branch(t, "b", "COMPLETED"),
		branch(t, "c", "COMPLETED"),
	)

	exec := newExecutor(false)
	_, err := split.Handle(context.Background(), exec)
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrTaskRejected)
	assert.Equal(t, []string{"aStep"}, exec.journal.ranSteps())
}

type panickingFlow struct{}

func (panickingFlow) Name() string { return "panicky" }
func (panickingFlow) Start(context.Context, flow.FlowExecutor) (*flow.FlowExecution, error) {
	panic("boom")
}
func (panickingFlow) Resume(context.Context, string, flow.FlowExecutor) (*flow.FlowExecution, error) {
	panic("boom")
}
func (panickingFlow) State(string) flow.State { return nil }

func TestSplitState_PanicBecomesError(t *testing.T) {
	split := flow.NewSplitState("split", goExecutor{}, branch(t, "a", "COMPLETED"), panickingFlow{})

	_, err := split.Handle(context.Background(), newExecutor(false))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMaxStatusAggregator(t *testing.T) {
	agg := flow.MaxStatusAggregator{}
	assert.Equal(t, model.FlowStatusUnknown, agg.Aggregate(nil))
	assert.Equal(t, model.FlowStatusStopped, agg.Aggregate([]*flow.FlowExecution{
		{Name: "a", Status: model.FlowStatusCompleted},
		{Name: "b", Status: model.FlowStatusStopped},
	}))
	assert.Equal(t, model.FlowStatusFailed, agg.Aggregate([]*flow.FlowExecution{
		{Name: "a", Status: model.FlowStatusFailed},
		{Name: "b", Status: model.FlowStatusStopped},
		{Name: "c", Status: model.FlowStatusCompleted},
	}))
}
