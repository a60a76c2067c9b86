package listener_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/core/flow"
	"github.com/tigerroll/tidebatch/pkg/batch/core/job/runner"
	"github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
	"github.com/tigerroll/tidebatch/pkg/batch/core/ports"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	"github.com/tigerroll/tidebatch/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/tidebatch/pkg/batch/listener"
)

type countingRecorder struct {
	metrics.NoOpMetricRecorder
	mu        sync.Mutex
	commits   map[string]int
	rollbacks map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{commits: map[string]int{}, rollbacks: map[string]int{}}
}

func (r *countingRecorder) RecordChunkCommit(_ context.Context, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commits[step]++
}

func (r *countingRecorder) RecordChunkRollback(_ context.Context, step string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rollbacks[step]++
}

type recordingNotifier struct {
	mu       sync.Mutex
	statuses []model.BatchStatus
}

func (n *recordingNotifier) NotifyJobCompletion(_ context.Context, je *model.JobExecution) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.statuses = append(n.statuses, je.GetStatus())
}

func TestModule_ListenersReachJobFactory(t *testing.T) {
	recorder := newCountingRecorder()
	notifier := &recordingNotifier{}
	var factory *runner.JobFactory

	app := fxtest.New(t,
		fx.Supply(config.NewConfig()),
		fx.Provide(func() repository.JobRepository { return inmemory.NewJobRepository() }),
		fx.Provide(func() metrics.MetricRecorder { return recorder }),
		fx.Provide(metrics.NewNoOpTracer),
		runner.Module,
		listener.Module,
		fx.Decorate(func(ports.Notifier) ports.Notifier { return notifier }),
		fx.Populate(&factory),
	)
	app.RequireStart()
	defer app.RequireStop()

	calls := 0
	step := tasklet.NewTaskletStep("count", tasklet.Func(
		func(context.Context, *model.StepContribution, *model.ChunkContext) (tasklet.RepeatStatus, error) {
			calls++
			if calls == 2 {
				return tasklet.Failed, errors.New("second chunk fails")
			}
			if calls < 3 {
				return tasklet.Continuable, nil
			}
			return tasklet.Finished, nil
		}), factory.JobRepository(), factory.StepOptions()...)

	f, err := flow.NewBuilder("countJob").Start(flow.NewStepState(step)).Build()
	require.NoError(t, err)

	signaler := listener.NewJobCompletionSignaler()
	job := factory.NewFlowJob("countJob", f, runner.WithJobListeners(signaler))

	ctx := context.Background()
	je, err := factory.JobRepository().CreateJobExecution(ctx, job.Name(), model.NewJobParameters())
	require.NoError(t, err)
	_ = job.Execute(ctx, je)
	assert.Equal(t, model.BatchStatusFailed, je.GetStatus())

	waitCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	require.NoError(t, signaler.Wait(waitCtx))
	require.Len(t, signaler.Finished(), 1)
	assert.Equal(t, model.BatchStatusFailed, signaler.Finished()[0].GetStatus())

	assert.Equal(t, 1, recorder.commits["count"])
	assert.Equal(t, 1, recorder.rollbacks["count"])
	assert.Equal(t, []model.BatchStatus{model.BatchStatusFailed}, notifier.statuses)
}

func TestJobCompletionSignaler(t *testing.T) {
	s := listener.NewJobCompletionSignaler()
	params := model.NewJobParameters()
	je := model.NewJobExecution(model.NewJobInstance("job", params), params)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.Canceled)

	je.SetStatus(model.BatchStatusCompleted)
	s.AfterJob(context.Background(), je)
	s.AfterJob(context.Background(), je)

	select {
	case <-s.Done():
	default:
		t.Fatal("Done must be closed after AfterJob")
	}
	assert.NoError(t, s.Wait(context.Background()))
	assert.Len(t, s.Finished(), 2)
}
