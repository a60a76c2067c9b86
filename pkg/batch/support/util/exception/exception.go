// Package exception provides the error types shared by the tidebatch engine.
// BatchError carries module and skip/retry classification for component faults;
// JobExecutionError carries the job-level failure kinds that decide restart and
// stop behavior.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// errorRegistry maps configuration-level error names to prototype errors.
var errorRegistry = make(map[string]error)

// registryMutex protects access to errorRegistry.
var registryMutex sync.RWMutex

// RegisterErrorType registers a prototype error under name so that IsErrorOfType
// can match it with errors.Is. It panics when name is empty or prototype is nil.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether name is present in the registry.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// BatchError is an error raised by a batch component.
type BatchError struct {
	// Module indicates where the error occurred (e.g. "reader", "repository", "partition").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error
	isRetryable bool
	isSkippable bool
}

// NewBatchError creates a new BatchError.
//
// Parameters:
//
//	module: The module where the error occurred.
//	message: The error message.
//	originalErr: The cause to wrap, may be nil.
//	isSkippable: Whether the failing item may be skipped.
//	isRetryable: Whether the operation may be retried.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
	}
}

// NewBatchErrorf creates a BatchError from a format string. Trailing optional
// arguments are consumed from the end in the order [isSkippable bool],
// [isRetryable bool], [originalErr error]; the rest feed fmt.Sprintf.
//
//	NewBatchErrorf("writer", "DB error on %s", "orders", false, sql.ErrNoRows)
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	isRetryable := false
	isSkippable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isSkippable = b
			args = args[:len(args)-1]
		}
	}
	return NewBatchError(module, fmt.Sprintf(format, args...), originalErr, isSkippable, isRetryable)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable returns whether this error is retryable.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable returns whether this error is skippable.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsBatchError reports whether err is, or wraps, a BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// OptimisticLockingFailureException is the registered name of ErrOptimisticLockingFailure.
const OptimisticLockingFailureException = "OptimisticLockingFailureException"

// ErrOptimisticLockingFailure signals that a versioned record changed underneath the caller.
var ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailureException)

// NewOptimisticLockingFailureException creates a non-retryable, non-skippable
// BatchError wrapping ErrOptimisticLockingFailure and the optional cause.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *BatchError {
	errToWrap := ErrOptimisticLockingFailure
	if originalErr != nil {
		errToWrap = errors.Join(ErrOptimisticLockingFailure, originalErr)
	}
	return NewBatchError(module, message, errToWrap, false, false)
}

// IsOptimisticLockingFailure reports whether err indicates an optimistic locking failure.
func IsOptimisticLockingFailure(err error) bool {
	return err != nil && errors.Is(err, ErrOptimisticLockingFailure)
}

// Job-level failure kinds. A JobExecutionError wraps exactly one of them.
var (
	ErrJobExecutionAlreadyRunning = errors.New("JobExecutionAlreadyRunningException")
	ErrJobInstanceAlreadyComplete = errors.New("JobInstanceAlreadyCompleteException")
	ErrJobInterrupted             = errors.New("JobInterruptedException")
	ErrStartLimitExceeded         = errors.New("StartLimitExceededException")
	ErrJobRestart                 = errors.New("JobRestartException")
	ErrStepExecutionUnsuccessful  = errors.New("StepExecutionUnsuccessfulException")
	ErrJobExecutionNotFound       = errors.New("NoSuchJobExecutionException")
	ErrJobExecutionNotRunning     = errors.New("JobExecutionNotRunningException")
)

// ErrTaskRejected is returned by a task executor that refuses a submission.
var ErrTaskRejected = errors.New("TaskRejectedException")

// JobExecutionError is a job-level failure. Kind is one of the Err* sentinels
// above and is matched with errors.Is; Cause is the optional underlying error.
type JobExecutionError struct {
	Kind    error
	Message string
	Cause   error
}

// NewJobExecutionError creates a JobExecutionError of the given kind.
func NewJobExecutionError(kind error, message string, cause error) *JobExecutionError {
	return &JobExecutionError{Kind: kind, Message: message, Cause: cause}
}

// NewJobExecutionErrorf creates a JobExecutionError with a formatted message and no cause.
func NewJobExecutionErrorf(kind error, format string, a ...interface{}) *JobExecutionError {
	return &JobExecutionError{Kind: kind, Message: fmt.Sprintf(format, a...)}
}

// Error implements the error interface.
func (e *JobExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *JobExecutionError) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// IsJobExecutionError reports whether err is, or wraps, a JobExecutionError.
func IsJobExecutionError(err error) bool {
	var je *JobExecutionError
	return errors.As(err, &je)
}

// IsJobInterrupted reports whether err signals a cooperative stop.
func IsJobInterrupted(err error) bool {
	return err != nil && errors.Is(err, ErrJobInterrupted)
}

// NewJobInterruptedError creates an interruption error for the named step or job.
func NewJobInterruptedError(format string, a ...interface{}) *JobExecutionError {
	return NewJobExecutionErrorf(ErrJobInterrupted, format, a...)
}

// IsErrorOfType reports whether err matches errorTypeName. The registry is
// consulted first with errors.Is, then each error in the chain is compared by
// message substring and by type name.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	targetError, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, targetError) {
		return true
	}

	for currentErr := err; currentErr != nil; currentErr = errors.Unwrap(currentErr) {
		if strings.Contains(currentErr.Error(), errorTypeName) {
			return true
		}
		if errType := reflect.TypeOf(currentErr); errType != nil {
			if errType.String() == errorTypeName || (errType.Kind() == reflect.Ptr && errType.Elem().String() == errorTypeName) {
				return true
			}
		}
	}
	return false
}

// ExtractErrorMessage returns the Message of a BatchError, or err.Error() otherwise.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if be, ok := err.(*BatchError); ok {
		return be.Message
	}
	return err.Error()
}

func init() {
	RegisterErrorType(OptimisticLockingFailureException, ErrOptimisticLockingFailure)
	for _, sentinel := range []error{
		ErrJobExecutionAlreadyRunning,
		ErrJobInstanceAlreadyComplete,
		ErrJobInterrupted,
		ErrStartLimitExceeded,
		ErrJobRestart,
		ErrStepExecutionUnsuccessful,
		ErrJobExecutionNotFound,
		ErrJobExecutionNotRunning,
		ErrTaskRejected,
	} {
		RegisterErrorType(sentinel.Error(), sentinel)
	}
	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}
