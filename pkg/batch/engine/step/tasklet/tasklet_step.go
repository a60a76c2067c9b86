package tasklet

import (
	"context"
	"database/sql"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// TaskletStep invokes its Tasklet until it returns Finished. Every invocation
// runs in a transaction that also covers the update of the item streams, the
// step context and the StepExecution, so a committed invocation is always
// reflected in the repository and a rolled back one never is.
type TaskletStep struct {
	*step.Base
	tasklet Tasklet
}

// NewTaskletStep creates a TaskletStep.
func NewTaskletStep(name string, tasklet Tasklet, repo repository.JobRepository, opts ...step.Option) *TaskletStep {
	s := &TaskletStep{
		Base:    step.NewBase(name, repo, opts...),
		tasklet: tasklet,
	}
	if stream, ok := tasklet.(port.ItemStream); ok {
		s.RegisterStream(stream)
	}
	return s
}

// Tasklet returns the wrapped tasklet.
func (s *TaskletStep) Tasklet() Tasklet { return s.tasklet }

// Execute implements port.Step.
func (s *TaskletStep) Execute(ctx context.Context, se *model.StepExecution) error {
	return s.Run(ctx, se, s.doExecute)
}

func (s *TaskletStep) doExecute(ctx context.Context, se *model.StepExecution) error {
	if err := s.updateStreams(ctx, se); err != nil {
		return err
	}
	if err := s.JobRepository().UpdateStepExecutionContext(ctx, se); err != nil {
		return err
	}

	cc := model.NewChunkContext(se)
	for {
		if err := checkInterrupted(ctx, se); err != nil {
			return err
		}
		status, err := s.executeChunk(ctx, se, cc)
		if err != nil {
			return err
		}
		if err := checkInterrupted(ctx, se); err != nil {
			return err
		}
		if cc.IsComplete() {
			cc = model.NewChunkContext(se)
		}
		if !status.IsContinuable() {
			logger.Debugf("Step '%s': tasklet finished after %d commits.", se.StepName, se.CommitCount)
			return nil
		}
	}
}

// executeChunk runs one tasklet invocation in its own transaction.
func (s *TaskletStep) executeChunk(ctx context.Context, se *model.StepExecution, cc *model.ChunkContext) (RepeatStatus, error) {
	contribution := se.CreateStepContribution()
	s.notifyBeforeChunk(ctx, cc)

	saved := takeCheckpoint(se)
	var opts []*sql.TxOptions
	if o := s.TransactionOptions(); o != nil {
		opts = append(opts, o)
	}
	txCtx, t, err := s.TransactionManager().Begin(ctx, opts...)
	if err != nil {
		s.notifyChunkError(ctx, cc, err)
		return Failed, exception.NewBatchError(s.Name(), "failed to begin chunk transaction", err, false, true)
	}

	var status RepeatStatus
	err = func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = exception.NewBatchErrorf(s.Name(), "tasklet of step '%s' panicked: %v", se.StepName, r)
			}
		}()
		status, err = s.tasklet.Execute(txCtx, contribution, cc)
		if err != nil {
			return err
		}
		if status == Failed {
			return exception.NewBatchErrorf(s.Name(), "tasklet of step '%s' reported FAILED", se.StepName)
		}
		se.Apply(contribution)
		if err := s.updateStreams(txCtx, se); err != nil {
			return err
		}
		repo := s.JobRepository()
		if err := repo.UpdateStepExecutionContext(txCtx, se); err != nil {
			return err
		}
		se.CommitCount++
		return repo.UpdateStepExecution(txCtx, se)
	}()
	if err == nil {
		err = t.Commit()
	} else if rbErr := t.Rollback(); rbErr != nil {
		logger.Errorf("Step '%s': rollback failed: %v", se.StepName, rbErr)
	}
	if err != nil {
		saved.restore(se)
		se.RollbackCount++
		s.notifyChunkError(ctx, cc, err)
		return Failed, err
	}

	s.notifyAfterChunk(ctx, cc)
	return status, nil
}

func (s *TaskletStep) updateStreams(ctx context.Context, se *model.StepExecution) error {
	for _, stream := range s.Streams() {
		if err := stream.Update(ctx, se.ExecutionContext); err != nil {
			return exception.NewBatchError(s.Name(), "failed to update item stream", err, false, false)
		}
	}
	return nil
}

func (s *TaskletStep) notifyBeforeChunk(ctx context.Context, cc *model.ChunkContext) {
	for _, l := range s.ChunkListeners() {
		l.BeforeChunk(ctx, cc)
	}
}

func (s *TaskletStep) notifyAfterChunk(ctx context.Context, cc *model.ChunkContext) {
	for _, l := range s.ChunkListeners() {
		l.AfterChunk(ctx, cc)
	}
}

func (s *TaskletStep) notifyChunkError(ctx context.Context, cc *model.ChunkContext, err error) {
	for _, l := range s.ChunkListeners() {
		l.AfterChunkError(ctx, cc, err)
	}
}

// checkInterrupted turns a requested stop or a cancelled context into an
// interruption error.
func checkInterrupted(ctx context.Context, se *model.StepExecution) error {
	if se.IsTerminateOnly() {
		return exception.NewJobInterruptedError("step '%s' interrupted: job execution is stopping", se.StepName)
	}
	if err := ctx.Err(); err != nil {
		return exception.NewJobExecutionError(exception.ErrJobInterrupted, "step '"+se.StepName+"' interrupted", err)
	}
	return nil
}

// checkpoint holds the StepExecution state a failed commit must roll back.
type checkpoint struct {
	counters model.StepContribution
	commit   int64
	version  int
	exit     model.ExitStatus
	ec       *model.ExecutionContext
}

func takeCheckpoint(se *model.StepExecution) checkpoint {
	return checkpoint{
		counters: model.StepContribution{
			ReadCount:        se.ReadCount,
			WriteCount:       se.WriteCount,
			FilterCount:      se.FilterCount,
			ReadSkipCount:    se.ReadSkipCount,
			ProcessSkipCount: se.ProcessSkipCount,
			WriteSkipCount:   se.WriteSkipCount,
		},
		commit:  se.CommitCount,
		version: se.Version,
		exit:    se.ExitStatus,
		ec:      se.ExecutionContext.Copy(),
	}
}

func (c checkpoint) restore(se *model.StepExecution) {
	se.ReadCount = c.counters.ReadCount
	se.WriteCount = c.counters.WriteCount
	se.FilterCount = c.counters.FilterCount
	se.ReadSkipCount = c.counters.ReadSkipCount
	se.ProcessSkipCount = c.counters.ProcessSkipCount
	se.WriteSkipCount = c.counters.WriteSkipCount
	se.CommitCount = c.commit
	se.Version = c.version
	se.ExitStatus = c.exit
	se.ExecutionContext = c.ec
}

var _ port.Step = (*TaskletStep)(nil)
