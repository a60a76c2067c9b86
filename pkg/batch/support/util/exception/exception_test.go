package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

type customError struct {
	Msg string
}

func (e *customError) Error() string {
	return fmt.Sprintf("customError: %s", e.Msg)
}

func TestNewBatchError(t *testing.T) {
	originalErr := errors.New("db connection refused")
	be := exception.NewBatchError("db", "failed to connect", originalErr, false, true)

	assert.Equal(t, "db", be.Module)
	assert.Equal(t, "failed to connect", be.Message)
	assert.Equal(t, originalErr, be.Unwrap())
	assert.True(t, be.IsRetryable())
	assert.False(t, be.IsSkippable())
	assert.Equal(t, "[db] failed to connect: db connection refused", be.Error())
}

func TestNewBatchErrorf(t *testing.T) {
	be1 := exception.NewBatchErrorf("reader", "item %d not found", 10)
	assert.False(t, be1.IsRetryable())
	assert.False(t, be1.IsSkippable())
	assert.Nil(t, be1.Unwrap())
	assert.Equal(t, "[reader] item 10 not found", be1.Error())

	be2 := exception.NewBatchErrorf("net", "timeout occurred", true)
	assert.True(t, be2.IsRetryable())
	assert.False(t, be2.IsSkippable())

	be3 := exception.NewBatchErrorf("item", "data error in item %d", 5, true, false)
	assert.False(t, be3.IsRetryable())
	assert.True(t, be3.IsSkippable())
	assert.Equal(t, "[item] data error in item 5", be3.Error())

	cause := errors.New("io error")
	be4 := exception.NewBatchErrorf("io", "read failed", cause)
	assert.ErrorIs(t, be4, cause)
}

func TestOptimisticLockingFailure(t *testing.T) {
	cause := errors.New("0 rows affected")
	err := exception.NewOptimisticLockingFailureException("repository", "stale version", cause)

	assert.True(t, exception.IsOptimisticLockingFailure(err))
	assert.ErrorIs(t, err, cause)
	assert.True(t, exception.IsErrorOfType(err, exception.OptimisticLockingFailureException))
	assert.False(t, exception.IsOptimisticLockingFailure(errors.New("other")))
}

func TestJobExecutionError(t *testing.T) {
	cause := errors.New("boom")
	err := exception.NewJobExecutionError(exception.ErrJobRestart, "cannot restart step", cause)

	assert.ErrorIs(t, err, exception.ErrJobRestart)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, exception.ErrJobInterrupted)
	assert.Equal(t, "JobRestartException: cannot restart step: boom", err.Error())

	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, exception.IsJobExecutionError(wrapped))

	var je *exception.JobExecutionError
	require.ErrorAs(t, wrapped, &je)
	assert.Equal(t, exception.ErrJobRestart, je.Kind)
}

func TestIsJobInterrupted(t *testing.T) {
	assert.True(t, exception.IsJobInterrupted(exception.NewJobInterruptedError("step %s stopped", "s1")))
	assert.False(t, exception.IsJobInterrupted(nil))
	assert.False(t, exception.IsJobInterrupted(errors.New("JobInterruptedException")))
}

func TestIsErrorOfType(t *testing.T) {
	custom := &customError{Msg: "bad row"}
	wrapped := exception.NewBatchError("writer", "write failed", custom, false, false)

	assert.True(t, exception.IsErrorOfType(wrapped, "exception_test.customError"))
	assert.True(t, exception.IsErrorOfType(wrapped, "bad row"))
	assert.True(t, exception.IsErrorOfType(exception.ErrTaskRejected, "TaskRejectedException"))
	assert.False(t, exception.IsErrorOfType(wrapped, "nothing-like-this"))
	assert.False(t, exception.IsErrorOfType(nil, "anything"))
}

func TestRegisterErrorTypePanics(t *testing.T) {
	assert.Panics(t, func() { exception.RegisterErrorType("", errors.New("x")) })
	assert.Panics(t, func() { exception.RegisterErrorType("nil", nil) })

	exception.RegisterErrorType("test.registered", errors.New("registered"))
	assert.True(t, exception.IsErrorTypeRegistered("test.registered"))
}

func TestExtractErrorMessage(t *testing.T) {
	assert.Equal(t, "", exception.ExtractErrorMessage(nil))
	assert.Equal(t, "clean", exception.ExtractErrorMessage(exception.NewBatchError("m", "clean", errors.New("x"), false, false)))
	assert.Equal(t, "plain", exception.ExtractErrorMessage(errors.New("plain")))
}
