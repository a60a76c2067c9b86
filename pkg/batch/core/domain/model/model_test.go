package model_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

func TestBatchStatus_Ordering(t *testing.T) {
	ordered := []model.BatchStatus{
		model.BatchStatusCompleted,
		model.BatchStatusStarting,
		model.BatchStatusStarted,
		model.BatchStatusStopping,
		model.BatchStatusStopped,
		model.BatchStatusFailed,
		model.BatchStatusAbandoned,
		model.BatchStatusUnknown,
	}
	for i := 1; i < len(ordered); i++ {
		assert.True(t, ordered[i].IsGreaterThan(ordered[i-1]), "%s > %s", ordered[i], ordered[i-1])
		assert.Equal(t, ordered[i], model.MaxStatus(ordered[i-1], ordered[i]))
		assert.Equal(t, ordered[i], model.MaxStatus(ordered[i], ordered[i-1]))
	}
	assert.True(t, model.BatchStatusFailed.IsUnsuccessful())
	assert.True(t, model.BatchStatusUnknown.IsUnsuccessful())
	assert.False(t, model.BatchStatusStopped.IsUnsuccessful())
	assert.True(t, model.BatchStatusStopping.IsRunning())
	assert.False(t, model.BatchStatusStopped.IsRunning())
}

func TestBatchStatus_Upgrade(t *testing.T) {
	assert.Equal(t, model.BatchStatusCompleted, model.BatchStatusStarted.Upgrade(model.BatchStatusCompleted))
	assert.Equal(t, model.BatchStatusCompleted, model.BatchStatusCompleted.Upgrade(model.BatchStatusStarting))
	assert.Equal(t, model.BatchStatusFailed, model.BatchStatusFailed.Upgrade(model.BatchStatusCompleted))
	assert.Equal(t, model.BatchStatusStopped, model.BatchStatusStopped.Upgrade(model.BatchStatusCompleted))
	assert.Equal(t, model.BatchStatusStarted, model.BatchStatusStarting.Upgrade(model.BatchStatusStarted))
	assert.Equal(t, model.BatchStatusUnknown, model.BatchStatusStarted.Upgrade(model.BatchStatusUnknown))
}

func TestBatchStatusMatch(t *testing.T) {
	assert.Equal(t, model.BatchStatusCompleted, model.BatchStatusMatch("COMPLETED_WITH_SKIPS"))
	assert.Equal(t, model.BatchStatusStopped, model.BatchStatusMatch("STOPPED"))
	assert.Equal(t, model.BatchStatusFailed, model.BatchStatusMatch("FAILED"))
	assert.Equal(t, model.BatchStatusUnknown, model.BatchStatusMatch("CUSTOM"))
}

func TestExitStatus_AndKeepsMostSevere(t *testing.T) {
	got := model.ExitStatusCompleted.And(model.ExitStatusFailed)
	assert.Equal(t, model.ExitCodeFailed, got.ExitCode)

	got = model.ExitStatusStopped.And(model.ExitStatusCompleted)
	assert.Equal(t, model.ExitCodeStopped, got.ExitCode)

	got = model.ExitStatusFailed.And(model.NewExitStatus("CUSTOM", ""))
	assert.Equal(t, "CUSTOM", got.ExitCode)

	got = model.NewExitStatus(model.ExitCodeCompleted, "a").And(model.NewExitStatus(model.ExitCodeCompleted, "b"))
	assert.Equal(t, "a; b", got.ExitDescription)
}

func TestExitStatus_AndIsAssociativeAndMonotonic(t *testing.T) {
	statuses := []model.ExitStatus{
		model.ExitStatusExecuting,
		model.NewExitStatus(model.ExitCodeCompleted, "x"),
		model.ExitStatusNoOp,
		model.NewExitStatus(model.ExitCodeStopped, "y"),
		model.NewExitStatus(model.ExitCodeFailed, "x"),
		model.ExitStatusUnknown,
		model.NewExitStatus("CUSTOM_A", "z"),
		model.NewExitStatus("CUSTOM_B", ""),
	}
	for _, a := range statuses {
		for _, b := range statuses {
			ab := a.And(b)
			assert.GreaterOrEqual(t, ab.Compare(a), 0)
			assert.GreaterOrEqual(t, ab.Compare(b), 0)
			assert.Equal(t, a.And(b).ExitCode, b.And(a).ExitCode, "code must not depend on operand order")
			for _, c := range statuses {
				assert.Equal(t, a.And(b.And(c)), a.And(b).And(c))
			}
		}
	}
}

func TestExecutionContext_DirtyTracking(t *testing.T) {
	ec := model.NewExecutionContext()
	assert.False(t, ec.IsDirty())

	ec.Put("k", "v")
	assert.True(t, ec.IsDirty())

	ec.ClearDirty()
	ec.Put("k", "v")
	assert.False(t, ec.IsDirty(), "writing the same value must not dirty the context")

	ec.Put("k", "w")
	assert.True(t, ec.IsDirty())

	ec.ClearDirty()
	ec.Put("k", nil)
	assert.True(t, ec.IsDirty())
	assert.False(t, ec.ContainsKey("k"))

	ec.ClearDirty()
	ec.Put("absent", nil)
	assert.False(t, ec.IsDirty())

	ec.Put("list", []int{1, 2})
	ec.ClearDirty()
	ec.Put("list", []int{1, 2})
	assert.False(t, ec.IsDirty())
}

func TestExecutionContext_TypedGettersAndJSON(t *testing.T) {
	ec := model.NewExecutionContext()
	ec.Put("count", 11)
	ec.Put("ratio", 0.5)
	ec.Put("flag", true)
	ec.Put("name", "reader")

	data, err := json.Marshal(ec)
	require.NoError(t, err)

	restored := model.NewExecutionContext()
	require.NoError(t, json.Unmarshal(data, restored))
	assert.False(t, restored.IsDirty())
	assert.Equal(t, 11, restored.GetInt("count", 0))
	assert.Equal(t, int64(11), restored.GetInt64("count", 0))
	assert.Equal(t, 0.5, restored.GetFloat64("ratio", 0))
	assert.True(t, restored.GetBool("flag", false))
	assert.Equal(t, "reader", restored.GetString("name", ""))
	assert.Equal(t, 7, restored.GetInt("missing", 7))
	assert.Equal(t, []string{"count", "flag", "name", "ratio"}, restored.Keys())

	cp := ec.Copy()
	assert.False(t, cp.IsDirty())
	cp.Put("count", 12)
	assert.Equal(t, 11, ec.GetInt("count", 0))
}

func TestExecutionContext_ScanValue(t *testing.T) {
	ec := model.NewExecutionContext()
	ec.Put("a", "b")
	v, err := ec.Value()
	require.NoError(t, err)

	scanned := model.NewExecutionContext()
	require.NoError(t, scanned.Scan(v))
	assert.Equal(t, "b", scanned.GetString("a", ""))
	require.NoError(t, scanned.Scan(nil))
	assert.True(t, scanned.IsEmpty())
	assert.Error(t, scanned.Scan(42))
}

func TestJobParameters_HashAndRoundTrip(t *testing.T) {
	date := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	params := model.NewJobParametersBuilder().
		AddString("input", "orders.csv").
		AddLong("run.id", 3).
		AddDouble("threshold", 0.75).
		AddDate("date", date).
		AddBool("dryRun", false).
		AddParameter("trace", model.JobParameter{Type: model.ParameterTypeString, Value: "abc"}).
		ToJobParameters()

	assert.Equal(t, []string{"date", "dryRun", "input", "run.id", "threshold", "trace"}, params.Keys())
	assert.Equal(t, int64(3), params.GetLong("run.id", 0))
	assert.Equal(t, date, params.GetDate("date"))

	data, err := json.Marshal(params)
	require.NoError(t, err)
	var restored model.JobParameters
	require.NoError(t, json.Unmarshal(data, &restored))
	assert.True(t, params.Equal(restored))

	h1, err := params.Hash()
	require.NoError(t, err)
	h2, err := restored.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	other := model.NewJobParametersBuilderFrom(params).
		AddParameter("trace", model.JobParameter{Type: model.ParameterTypeString, Value: "different"}).
		ToJobParameters()
	h3, err := other.Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h3, "non-identifying parameters do not change the identity")

	identifying := model.NewJobParametersBuilderFrom(params).AddString("trace", "different").ToJobParameters()
	h5, err := identifying.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h5)

	changed := model.NewJobParametersBuilderFrom(params).AddLong("run.id", 4).ToJobParameters()
	h4, err := changed.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, h4)

	assert.True(t, model.NewJobParameters().IsEmpty())
}

func TestJobParameters_UnmarshalRejectsMismatchedType(t *testing.T) {
	var jp model.JobParameters
	err := json.Unmarshal([]byte(`{"n":{"type":"LONG","value":"abc","identifying":true}}`), &jp)
	assert.Error(t, err)
}

func TestJobExecution_StopFlagsSteps(t *testing.T) {
	je := model.NewJobExecution(model.NewJobInstance("job", model.NewJobParameters()), model.NewJobParameters())
	je.SetStatus(model.BatchStatusStarted)
	se := je.CreateStepExecution("step1")

	assert.True(t, je.IsRunning())
	je.Stop()
	assert.True(t, je.IsStopping())
	assert.True(t, se.IsTerminateOnly())
	assert.Equal(t, je.ID, se.JobExecutionID)
	assert.Len(t, je.GetStepExecutions(), 1)
}

func TestJobExecution_FailuresAndSnapshot(t *testing.T) {
	je := model.NewJobExecution(model.NewJobInstance("job", model.NewJobParameters()), model.NewJobParameters())
	je.AddFailure(errors.New("job boom"))
	se := je.CreateStepExecution("s")
	se.AddFailure(errors.New("step boom"))

	assert.Equal(t, []string{"job boom", "step boom"}, je.AllFailures())

	snap := je.Snapshot()
	snap.AddFailure(errors.New("only in snapshot"))
	assert.Len(t, je.Failures, 1)
	assert.Empty(t, snap.StepExecutions)
}

func TestStepExecution_ApplyContribution(t *testing.T) {
	se := model.NewStepExecution("s", nil)
	c := se.CreateStepContribution()
	c.IncrementReadCount(10)
	c.IncrementWriteCount(8)
	c.IncrementFilterCount(2)
	c.IncrementProcessSkipCount(1)
	c.SetExitStatus(model.NewExitStatus(model.ExitCodeCompleted, "partial"))
	se.Apply(c)

	assert.Equal(t, int64(10), se.ReadCount)
	assert.Equal(t, int64(8), se.WriteCount)
	assert.Equal(t, int64(2), se.FilterCount)
	assert.Equal(t, int64(1), se.SkipCount())
	assert.Equal(t, model.ExitCodeCompleted, se.ExitStatus.ExitCode)
	assert.Equal(t, "partial", se.ExitStatus.ExitDescription)
}

func TestChunkContext_Attributes(t *testing.T) {
	cc := model.NewChunkContext(nil)
	cc.SetAttribute("k", 1)
	v, ok := cc.GetAttribute("k")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	cc.RemoveAttribute("k")
	assert.False(t, cc.HasAttribute("k"))
	assert.False(t, cc.IsComplete())
	cc.SetComplete()
	assert.True(t, cc.IsComplete())
}
