package step_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

func lastExecution(status model.BatchStatus, jobExecutionID string) *model.StepExecution {
	se := model.NewStepExecution("load", nil)
	se.JobExecutionID = jobExecutionID
	se.Status = status
	return se
}

func TestIsStartable(t *testing.T) {
	je := &model.JobExecution{ID: "current"}

	tests := []struct {
		name                 string
		last                 *model.StepExecution
		allowStartIfComplete bool
		want                 bool
		wantErr              bool
	}{
		{name: "never ran", last: nil, want: true},
		{name: "completed earlier", last: lastExecution(model.BatchStatusCompleted, "previous"), want: false},
		{name: "completed earlier, allowed", last: lastExecution(model.BatchStatusCompleted, "previous"), allowStartIfComplete: true, want: true},
		{name: "completed in this execution", last: lastExecution(model.BatchStatusCompleted, "current"), want: true},
		{name: "failed", last: lastExecution(model.BatchStatusFailed, "previous"), want: true},
		{name: "stopped", last: lastExecution(model.BatchStatusStopped, "previous"), want: true},
		{name: "abandoned", last: lastExecution(model.BatchStatusAbandoned, "previous"), want: false},
		{name: "started", last: lastExecution(model.BatchStatusStarted, "previous"), wantErr: true},
		{name: "starting", last: lastExecution(model.BatchStatusStarting, "previous"), wantErr: true},
		{name: "stopping", last: lastExecution(model.BatchStatusStopping, "previous"), wantErr: true},
		{name: "unknown", last: lastExecution(model.BatchStatusUnknown, "previous"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := step.IsStartable(tt.last, je, tt.allowStartIfComplete)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, exception.ErrJobRestart)
				assert.False(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdoptContext(t *testing.T) {
	last := lastExecution(model.BatchStatusFailed, "previous")
	last.ExecutionContext.Put("reader.offset", 20)
	last.ExecutionContext.Put(model.ContextKeyExecuted, true)

	se := model.NewStepExecution("load", nil)
	step.AdoptContext(se, last)

	assert.Equal(t, 20, se.ExecutionContext.GetInt("reader.offset", 0))
	assert.True(t, se.ExecutionContext.GetBool(model.ContextKeyRestart, false))
	assert.False(t, se.ExecutionContext.ContainsKey(model.ContextKeyExecuted))

	se.ExecutionContext.Put("reader.offset", 30)
	assert.Equal(t, 20, last.ExecutionContext.GetInt("reader.offset", 0), "the adopted context is a copy")
}

func TestIsRestartOf(t *testing.T) {
	assert.False(t, step.IsRestartOf(nil))
	assert.False(t, step.IsRestartOf(lastExecution(model.BatchStatusCompleted, "x")))
	assert.True(t, step.IsRestartOf(lastExecution(model.BatchStatusFailed, "x")))
}

func TestParseIsolationLevel(t *testing.T) {
	assert.Equal(t, "Serializable", step.ParseIsolationLevel("SERIALIZABLE").String())
	assert.Equal(t, "Read Committed", step.ParseIsolationLevel("READ_COMMITTED").String())
	assert.Equal(t, "Default", step.ParseIsolationLevel("bogus").String())
}
