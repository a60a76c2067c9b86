package model

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// JobInstance is the logical run of a job, identified by its name and the
// hash of its identifying parameters.
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

// NewJobInstance creates a JobInstance with a fresh ID.
func NewJobInstance(jobName string, params JobParameters) *JobInstance {
	hash, err := params.Hash()
	if err != nil {
		logger.Errorf("Failed to calculate JobParameters hash: %v", err)
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Parameters:     params,
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}
}

// JobExecution is a single attempt to run a JobInstance.
//
// Status, ExitStatus, Failures and StepExecutions may be touched by parallel
// flows of the same job, so they are accessed through methods guarded by mu.
// The exported fields remain for mapping by the repositories.
type JobExecution struct {
	ID               string
	JobInstanceID    string
	JobInstance      *JobInstance
	JobName          string
	Parameters       JobParameters
	Status           BatchStatus
	ExitStatus       ExitStatus
	StartTime        time.Time
	EndTime          *time.Time
	CreateTime       time.Time
	LastUpdated      time.Time
	Failures         []string
	StepExecutions   []*StepExecution
	ExecutionContext *ExecutionContext
	Version          int

	mu sync.Mutex
}

// NewJobExecution creates a STARTING JobExecution for instance.
func NewJobExecution(instance *JobInstance, params JobParameters) *JobExecution {
	now := time.Now()
	return &JobExecution{
		ID:               NewID(),
		JobInstanceID:    instance.ID,
		JobInstance:      instance,
		JobName:          instance.JobName,
		Parameters:       params,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		Failures:         []string{},
		StepExecutions:   []*StepExecution{},
		ExecutionContext: NewExecutionContext(),
	}
}

// GetStatus returns the current status.
func (je *JobExecution) GetStatus() BatchStatus {
	je.mu.Lock()
	defer je.mu.Unlock()
	return je.Status
}

// SetStatus replaces the status.
func (je *JobExecution) SetStatus(status BatchStatus) {
	je.mu.Lock()
	je.Status = status
	je.mu.Unlock()
}

// UpgradeStatus moves the status towards status using BatchStatus.Upgrade.
func (je *JobExecution) UpgradeStatus(status BatchStatus) {
	je.mu.Lock()
	je.Status = je.Status.Upgrade(status)
	je.mu.Unlock()
}

// SyncStatus adopts a status and version read back from storage when the
// stored version differs from the in-memory one. The stored status is merged
// with UpgradeStatus, so a stop requested elsewhere is never lost and a
// terminal status is never downgraded. It reports whether anything changed.
func (je *JobExecution) SyncStatus(stored BatchStatus, storedVersion int) bool {
	je.mu.Lock()
	defer je.mu.Unlock()
	if storedVersion == je.Version {
		return false
	}
	je.Status = je.Status.Upgrade(stored)
	je.Version = storedVersion
	return true
}

// GetExitStatus returns the current exit status.
func (je *JobExecution) GetExitStatus() ExitStatus {
	je.mu.Lock()
	defer je.mu.Unlock()
	return je.ExitStatus
}

// SetExitStatus replaces the exit status.
func (je *JobExecution) SetExitStatus(status ExitStatus) {
	je.mu.Lock()
	je.ExitStatus = status
	je.mu.Unlock()
}

// AndExitStatus combines the current exit status with status.
func (je *JobExecution) AndExitStatus(status ExitStatus) {
	je.mu.Lock()
	je.ExitStatus = je.ExitStatus.And(status)
	je.mu.Unlock()
}

// IsRunning reports whether the execution has started and not yet ended.
func (je *JobExecution) IsRunning() bool {
	je.mu.Lock()
	defer je.mu.Unlock()
	return je.EndTime == nil && je.Status.IsRunning()
}

// IsStopping reports whether a stop has been requested.
func (je *JobExecution) IsStopping() bool {
	return je.GetStatus() == BatchStatusStopping
}

// Stop requests a cooperative stop. Running steps observe it at their next
// persistence boundary through StepExecution.TerminateOnly.
func (je *JobExecution) Stop() {
	je.mu.Lock()
	defer je.mu.Unlock()
	for _, se := range je.StepExecutions {
		se.SetTerminateOnly()
	}
	je.Status = BatchStatusStopping
}

// AddFailure records err on the execution.
func (je *JobExecution) AddFailure(err error) {
	if err == nil {
		return
	}
	je.mu.Lock()
	je.Failures = append(je.Failures, exception.ExtractErrorMessage(err))
	je.mu.Unlock()
}

// AllFailures returns the failures of the job and of every step.
func (je *JobExecution) AllFailures() []string {
	je.mu.Lock()
	defer je.mu.Unlock()
	out := append([]string{}, je.Failures...)
	for _, se := range je.StepExecutions {
		out = append(out, se.Failures...)
	}
	return out
}

// CreateStepExecution creates a StepExecution named stepName, registers it
// with the job execution and returns it.
func (je *JobExecution) CreateStepExecution(stepName string) *StepExecution {
	se := NewStepExecution(stepName, je)
	je.AddStepExecution(se)
	return se
}

// AddStepExecution registers se with the job execution.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	je.mu.Lock()
	je.StepExecutions = append(je.StepExecutions, se)
	je.mu.Unlock()
}

// GetStepExecutions returns a snapshot of the registered step executions.
func (je *JobExecution) GetStepExecutions() []*StepExecution {
	je.mu.Lock()
	defer je.mu.Unlock()
	return append([]*StepExecution(nil), je.StepExecutions...)
}

// Snapshot returns a detached copy suitable for storing in a repository.
// Step executions are not copied; the execution context is.
func (je *JobExecution) Snapshot() *JobExecution {
	je.mu.Lock()
	defer je.mu.Unlock()
	cp := &JobExecution{
		ID:               je.ID,
		JobInstanceID:    je.JobInstanceID,
		JobInstance:      je.JobInstance,
		JobName:          je.JobName,
		Parameters:       je.Parameters,
		Status:           je.Status,
		ExitStatus:       je.ExitStatus,
		StartTime:        je.StartTime,
		CreateTime:       je.CreateTime,
		LastUpdated:      je.LastUpdated,
		Failures:         append([]string{}, je.Failures...),
		StepExecutions:   []*StepExecution{},
		ExecutionContext: je.ExecutionContext.Copy(),
		Version:          je.Version,
	}
	if je.EndTime != nil {
		end := *je.EndTime
		cp.EndTime = &end
	}
	return cp
}
