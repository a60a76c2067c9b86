package tasklet_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/tidebatch/pkg/batch/infrastructure/repository/inmemory"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	batchtest "github.com/tigerroll/tidebatch/pkg/batch/test"
)

func newStepExecution(t *testing.T, repo repository.JobRepository, stepName string) (*model.JobExecution, *model.StepExecution) {
	t.Helper()
	ctx := context.Background()
	params := model.NewJobParametersBuilder().AddString("case", t.Name()).ToJobParameters()
	je, err := repo.CreateJobExecution(ctx, "job", params)
	require.NoError(t, err)
	se := je.CreateStepExecution(stepName)
	require.NoError(t, repo.AddStepExecution(ctx, se))
	return je, se
}

// countdown reads one item per invocation and finishes after n invocations.
func countdown(n int) tasklet.Func {
	calls := 0
	return func(_ context.Context, c *model.StepContribution, _ *model.ChunkContext) (tasklet.RepeatStatus, error) {
		calls++
		c.IncrementReadCount(1)
		if calls >= n {
			return tasklet.Finished, nil
		}
		return tasklet.Continuable, nil
	}
}

func TestTaskletStep_CompletesAndCommitsEveryInvocation(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewJobRepository()
	je, se := newStepExecution(t, repo, "count")

	s := tasklet.NewTaskletStep("count", countdown(3), repo)
	require.NoError(t, s.Execute(ctx, se))

	assert.Equal(t, model.BatchStatusCompleted, se.Status)
	assert.Equal(t, model.ExitCodeCompleted, se.ExitStatus.ExitCode)
	assert.Equal(t, int64(3), se.ReadCount)
	assert.Equal(t, int64(3), se.CommitCount)
	assert.Zero(t, se.RollbackCount)
	assert.NotNil(t, se.EndTime)

	stored, err := repo.GetStepExecution(ctx, je, se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.Status)
	assert.Equal(t, int64(3), stored.ReadCount)
}

func TestTaskletStep_FailureRollsBackInvocation(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewJobRepository()
	je, se := newStepExecution(t, repo, "flaky")

	boom := errors.New("boom")
	calls := 0
	s := tasklet.NewTaskletStep("flaky", tasklet.Func(
		func(_ context.Context, c *model.StepContribution, _ *model.ChunkContext) (tasklet.RepeatStatus, error) {
			calls++
			c.IncrementReadCount(1)
			if calls == 2 {
				return tasklet.Failed, boom
			}
			return tasklet.Continuable, nil
		}), repo)

	err := s.Execute(ctx, se)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, model.ExitCodeFailed, se.ExitStatus.ExitCode)
	assert.Contains(t, se.ExitStatus.ExitDescription, "boom")
	assert.Equal(t, int64(1), se.ReadCount, "the failed invocation must not count")
	assert.Equal(t, int64(1), se.CommitCount)
	assert.Equal(t, int64(1), se.RollbackCount)
	assert.NotEmpty(t, se.Failures)

	stored, err := repo.GetStepExecution(ctx, je, se.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, stored.Status)
	assert.Equal(t, int64(1), stored.RollbackCount)
}

func TestTaskletStep_FailedStatusWithoutError(t *testing.T) {
	repo := inmemory.NewJobRepository()
	_, se := newStepExecution(t, repo, "refuse")

	s := tasklet.NewTaskletStep("refuse", tasklet.Func(
		func(context.Context, *model.StepContribution, *model.ChunkContext) (tasklet.RepeatStatus, error) {
			return tasklet.Failed, nil
		}), repo)

	require.Error(t, s.Execute(context.Background(), se))
	assert.Equal(t, model.BatchStatusFailed, se.Status)
}

func TestTaskletStep_PanicFailsStep(t *testing.T) {
	repo := inmemory.NewJobRepository()
	_, se := newStepExecution(t, repo, "panicky")

	s := tasklet.NewTaskletStep("panicky", tasklet.Func(
		func(context.Context, *model.StepContribution, *model.ChunkContext) (tasklet.RepeatStatus, error) {
			panic("kaboom")
		}), repo)

	err := s.Execute(context.Background(), se)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, int64(1), se.RollbackCount)
}

func TestTaskletStep_StopsWhenJobIsStopping(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewJobRepository()
	je, se := newStepExecution(t, repo, "long")

	calls := 0
	s := tasklet.NewTaskletStep("long", tasklet.Func(
		func(ctx context.Context, c *model.StepContribution, _ *model.ChunkContext) (tasklet.RepeatStatus, error) {
			calls++
			if calls == 1 {
				// An operator stops the job from another process.
				other, err := repo.GetJobExecution(ctx, je.ID)
				require.NoError(t, err)
				other.SetStatus(model.BatchStatusStopping)
				require.NoError(t, repo.UpdateJobExecution(ctx, other))
			}
			c.IncrementReadCount(1)
			return tasklet.Continuable, nil
		}), repo)

	err := s.Execute(ctx, se)
	require.Error(t, err)
	assert.True(t, exception.IsJobInterrupted(err))
	assert.Equal(t, 1, calls)
	assert.Equal(t, model.BatchStatusStopped, se.Status)
	assert.Equal(t, model.ExitCodeStopped, se.ExitStatus.ExitCode)
	assert.Equal(t, int64(1), se.CommitCount, "the running invocation still commits")
	assert.True(t, je.IsStopping())
}

func TestTaskletStep_CancelledContextStops(t *testing.T) {
	repo := inmemory.NewJobRepository()
	_, se := newStepExecution(t, repo, "cancel")

	ctx, cancel := context.WithCancel(context.Background())
	s := tasklet.NewTaskletStep("cancel", tasklet.Func(
		func(context.Context, *model.StepContribution, *model.ChunkContext) (tasklet.RepeatStatus, error) {
			cancel()
			return tasklet.Continuable, nil
		}), repo)

	err := s.Execute(ctx, se)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, model.BatchStatusStopped, se.Status)
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) BeforeStep(context.Context, *model.StepExecution) { r.add("beforeStep") }
func (r *recorder) AfterStep(context.Context, *model.StepExecution) { r.add("afterStep") }
func (r *recorder) BeforeChunk(context.Context, *model.ChunkContext) { r.add("beforeChunk") }
func (r *recorder) AfterChunk(context.Context, *model.ChunkContext) { r.add("afterChunk") }
func (r *recorder) AfterChunkError(context.Context, *model.ChunkContext, error) {
	r.add("afterChunkError")
}
func (r *recorder) Open(context.Context, *model.ExecutionContext) error { r.add("open"); return nil }
func (r *recorder) Update(_ context.Context, ec *model.ExecutionContext) error {
	r.add("update")
	ec.Put("position", len(r.events))
	return nil
}
func (r *recorder) Close(context.Context) error { r.add("close"); return nil }

func TestTaskletStep_CallbackOrder(t *testing.T) {
	repo := inmemory.NewJobRepository()
	_, se := newStepExecution(t, repo, "ordered")

	rec := &recorder{}
	s := tasklet.NewTaskletStep("ordered", countdown(1), repo,
		step.WithListeners(rec),
		step.WithChunkListeners(rec),
		step.WithStreams(rec),
	)
	require.NoError(t, s.Execute(context.Background(), se))

	assert.Equal(t, []string{
		"beforeStep", "open", "update",
		"beforeChunk", "update", "afterChunk",
		"afterStep", "close",
	}, rec.events)
	assert.True(t, se.ExecutionContext.ContainsKey("position"))
}

func TestTaskletStep_PromotesContextKeys(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewJobRepository()
	je, se := newStepExecution(t, repo, "promote")

	promotion := step.NewExecutionContextPromotion("total", "ignored")
	promotion.JobLevelKeys["total"] = "job.total"

	s := tasklet.NewTaskletStep("promote", tasklet.Func(
		func(_ context.Context, _ *model.StepContribution, cc *model.ChunkContext) (tasklet.RepeatStatus, error) {
			cc.StepExecution.ExecutionContext.Put("total", 42)
			return tasklet.Finished, nil
		}), repo, step.WithPromotion(promotion))
	require.NoError(t, s.Execute(ctx, se))

	assert.Equal(t, 42, je.ExecutionContext.GetInt("job.total", 0))
	assert.False(t, je.ExecutionContext.ContainsKey("ignored"))

	stored, err := repo.GetJobExecution(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, 42, stored.ExecutionContext.GetInt("job.total", 0))
}

func TestTaskletStep_OptionsAreExposed(t *testing.T) {
	repo := inmemory.NewJobRepository()
	s := tasklet.NewTaskletStep("opts", countdown(1), repo,
		step.WithAllowStartIfComplete(true),
		step.WithStartLimit(3),
	)
	assert.Equal(t, "opts", s.Name())
	assert.True(t, s.IsAllowStartIfComplete())
	assert.Equal(t, 3, s.StartLimit())
	assert.NotNil(t, s.TransactionManager())
}

func TestTaskletStep_CommitsAndRollsBackThroughTransactionManager(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewJobRepository()
	_, se := newStepExecution(t, repo, "tx")

	committed := &batchtest.MockTx{}
	committed.On("Commit").Return(nil).Twice()
	rolledBack := &batchtest.MockTx{}
	rolledBack.On("Rollback").Return(nil).Once()

	tm := &batchtest.MockTxManager{}
	tm.On("Begin", mock.Anything, mock.Anything).Return(committed, nil).Twice()
	tm.On("Begin", mock.Anything, mock.Anything).Return(rolledBack, nil).Once()

	calls := 0
	s := tasklet.NewTaskletStep("tx", tasklet.Func(
		func(context.Context, *model.StepContribution, *model.ChunkContext) (tasklet.RepeatStatus, error) {
			calls++
			if calls == 3 {
				return tasklet.Failed, errors.New("third invocation fails")
			}
			return tasklet.Continuable, nil
		}), repo, step.WithTransactionManager(tm))

	require.Error(t, s.Execute(ctx, se))
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Equal(t, int64(2), se.CommitCount)
	assert.Equal(t, int64(1), se.RollbackCount)
	tm.AssertExpectations(t)
	committed.AssertExpectations(t)
	rolledBack.AssertExpectations(t)
	rolledBack.AssertNotCalled(t, "Commit")
}

func TestTaskletStep_BeginFailure(t *testing.T) {
	repo := inmemory.NewJobRepository()
	_, se := newStepExecution(t, repo, "nobegin")

	tm := &batchtest.MockTxManager{}
	tm.On("Begin", mock.Anything, mock.Anything).Return(nil, errors.New("pool exhausted"))

	s := tasklet.NewTaskletStep("nobegin", countdown(1), repo, step.WithTransactionManager(tm))
	err := s.Execute(context.Background(), se)
	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, se.Status)
	assert.Zero(t, se.ReadCount)
}
