package model

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

// StepExecution is a single attempt to run a step within a JobExecution.
// Partitions of a step are StepExecutions named "<step>:<partition>".
type StepExecution struct {
	ID               string
	StepName         string
	JobExecution     *JobExecution
	JobExecutionID   string
	Status           BatchStatus
	ExitStatus       ExitStatus
	ReadCount        int64
	WriteCount       int64
	FilterCount      int64
	ReadSkipCount    int64
	ProcessSkipCount int64
	WriteSkipCount   int64
	CommitCount      int64
	RollbackCount    int64
	StartTime        time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	Failures         []string
	ExecutionContext *ExecutionContext
	Version          int

	terminateOnly atomic.Bool
}

// NewStepExecution creates a STARTING StepExecution belonging to je.
// It does not register itself with je; see JobExecution.CreateStepExecution.
func NewStepExecution(stepName string, je *JobExecution) *StepExecution {
	se := &StepExecution{
		ID:               NewID(),
		StepName:         stepName,
		JobExecution:     je,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusExecuting,
		StartTime:        time.Now(),
		Failures:         []string{},
		ExecutionContext: NewExecutionContext(),
	}
	if je != nil {
		se.JobExecutionID = je.ID
	}
	return se
}

// SetTerminateOnly flags the execution for a cooperative stop.
func (se *StepExecution) SetTerminateOnly() {
	se.terminateOnly.Store(true)
}

// IsTerminateOnly reports whether a stop was requested.
func (se *StepExecution) IsTerminateOnly() bool {
	return se.terminateOnly.Load()
}

// UpgradeStatus moves the status towards status using BatchStatus.Upgrade.
func (se *StepExecution) UpgradeStatus(status BatchStatus) {
	se.Status = se.Status.Upgrade(status)
}

// AddFailure records err on the execution.
func (se *StepExecution) AddFailure(err error) {
	if err != nil {
		se.Failures = append(se.Failures, exception.ExtractErrorMessage(err))
	}
}

// SkipCount returns the total of read, process and write skips.
func (se *StepExecution) SkipCount() int64 {
	return se.ReadSkipCount + se.ProcessSkipCount + se.WriteSkipCount
}

// Apply adds the deltas of a contribution to the counters.
func (se *StepExecution) Apply(c *StepContribution) {
	se.ReadCount += c.ReadCount
	se.WriteCount += c.WriteCount
	se.FilterCount += c.FilterCount
	se.ReadSkipCount += c.ReadSkipCount
	se.ProcessSkipCount += c.ProcessSkipCount
	se.WriteSkipCount += c.WriteSkipCount
	if c.ExitStatus != nil {
		se.ExitStatus = se.ExitStatus.And(*c.ExitStatus)
	}
}

// CreateStepContribution returns an empty contribution bound to se.
func (se *StepExecution) CreateStepContribution() *StepContribution {
	return &StepContribution{StepExecution: se}
}

// Snapshot returns a detached copy suitable for storing in a repository.
func (se *StepExecution) Snapshot() *StepExecution {
	cp := &StepExecution{
		ID:               se.ID,
		StepName:         se.StepName,
		JobExecution:     se.JobExecution,
		JobExecutionID:   se.JobExecutionID,
		Status:           se.Status,
		ExitStatus:       se.ExitStatus,
		ReadCount:        se.ReadCount,
		WriteCount:       se.WriteCount,
		FilterCount:      se.FilterCount,
		ReadSkipCount:    se.ReadSkipCount,
		ProcessSkipCount: se.ProcessSkipCount,
		WriteSkipCount:   se.WriteSkipCount,
		CommitCount:      se.CommitCount,
		RollbackCount:    se.RollbackCount,
		StartTime:        se.StartTime,
		LastUpdated:      se.LastUpdated,
		Failures:         append([]string{}, se.Failures...),
		ExecutionContext: se.ExecutionContext.Copy(),
		Version:          se.Version,
	}
	if se.EndTime != nil {
		end := *se.EndTime
		cp.EndTime = &end
	}
	if se.IsTerminateOnly() {
		cp.SetTerminateOnly()
	}
	return cp
}

// String returns a one-line summary without the execution context.
func (se *StepExecution) String() string {
	return fmt.Sprintf("StepExecution{id=%s, name=%s, status=%s, exitStatus=%s, read=%d, write=%d, filter=%d, commit=%d, rollback=%d}",
		se.ID, se.StepName, se.Status, se.ExitStatus.ExitCode,
		se.ReadCount, se.WriteCount, se.FilterCount, se.CommitCount, se.RollbackCount)
}

// StepContribution collects counter deltas produced by one tasklet invocation.
// The deltas are applied to the StepExecution when the invocation commits.
type StepContribution struct {
	StepExecution    *StepExecution
	ReadCount        int64
	WriteCount       int64
	FilterCount      int64
	ReadSkipCount    int64
	ProcessSkipCount int64
	WriteSkipCount   int64
	// ExitStatus, when set, is combined into the step's exit status on apply.
	ExitStatus *ExitStatus
}

// IncrementReadCount adds n to the read count.
func (c *StepContribution) IncrementReadCount(n int64) { c.ReadCount += n }

// IncrementWriteCount adds n to the write count.
func (c *StepContribution) IncrementWriteCount(n int64) { c.WriteCount += n }

// IncrementFilterCount adds n to the filter count.
func (c *StepContribution) IncrementFilterCount(n int64) { c.FilterCount += n }

// IncrementReadSkipCount adds n to the read skip count.
func (c *StepContribution) IncrementReadSkipCount(n int64) { c.ReadSkipCount += n }

// IncrementProcessSkipCount adds n to the process skip count.
func (c *StepContribution) IncrementProcessSkipCount(n int64) { c.ProcessSkipCount += n }

// IncrementWriteSkipCount adds n to the write skip count.
func (c *StepContribution) IncrementWriteSkipCount(n int64) { c.WriteSkipCount += n }

// SetExitStatus records an exit status to combine into the step on apply.
func (c *StepContribution) SetExitStatus(status ExitStatus) { c.ExitStatus = &status }

// ChunkContext is a transient attribute bag that survives across invocations
// of a tasklet within one StepExecution. It is never persisted.
type ChunkContext struct {
	StepExecution *StepExecution
	attributes    map[string]interface{}
	complete      bool
}

// NewChunkContext creates a ChunkContext for se.
func NewChunkContext(se *StepExecution) *ChunkContext {
	return &ChunkContext{StepExecution: se, attributes: map[string]interface{}{}}
}

// SetAttribute stores value under key.
func (c *ChunkContext) SetAttribute(key string, value interface{}) {
	c.attributes[key] = value
}

// GetAttribute returns the value under key.
func (c *ChunkContext) GetAttribute(key string) (interface{}, bool) {
	v, ok := c.attributes[key]
	return v, ok
}

// RemoveAttribute deletes key.
func (c *ChunkContext) RemoveAttribute(key string) {
	delete(c.attributes, key)
}

// HasAttribute reports whether key is present.
func (c *ChunkContext) HasAttribute(key string) bool {
	_, ok := c.attributes[key]
	return ok
}

// SetComplete marks the chunk cycle complete.
func (c *ChunkContext) SetComplete() { c.complete = true }

// IsComplete reports whether the chunk cycle is complete.
func (c *ChunkContext) IsComplete() bool { return c.complete }
