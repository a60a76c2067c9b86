package listener

import (
	"context"
	"sync"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// JobCompletionSignaler is a JobExecutionListener that signals when a job
// execution finishes. Done is closed after the first finished execution; the
// executions themselves are kept for inspection.
type JobCompletionSignaler struct {
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.Mutex
	finished []*model.JobExecution
}

// NewJobCompletionSignaler creates a new instance of JobCompletionSignaler.
func NewJobCompletionSignaler() *JobCompletionSignaler {
	return &JobCompletionSignaler{done: make(chan struct{})}
}

// Done returns a channel closed once any job execution has finished.
func (l *JobCompletionSignaler) Done() <-chan struct{} {
	return l.done
}

// Finished returns snapshots of the executions finished so far, in completion order.
func (l *JobCompletionSignaler) Finished() []*model.JobExecution {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*model.JobExecution(nil), l.finished...)
}

// Wait blocks until a job execution has finished or ctx is done.
func (l *JobCompletionSignaler) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BeforeJob does nothing.
func (l *JobCompletionSignaler) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

// AfterJob records jobExecution and closes Done.
func (l *JobCompletionSignaler) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.mu.Lock()
	l.finished = append(l.finished, jobExecution.Snapshot())
	l.mu.Unlock()

	l.closeOnce.Do(func() {
		logger.Infof("JobCompletionSignaler: Job '%s' (ID: %s) finished with %s.", jobExecution.JobName, jobExecution.ID, jobExecution.GetStatus())
		close(l.done)
	})
}

var _ port.JobExecutionListener = (*JobCompletionSignaler)(nil)
