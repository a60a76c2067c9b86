// Package step holds the lifecycle shared by every step implementation:
// status bookkeeping, listeners, item streams, persistence of the outcome and
// the restart rules. Concrete steps (tasklet, chunk, partition, flow) embed
// *Base and hand it their body.
package step

import (
	"context"
	"database/sql"
	"time"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
	"github.com/tigerroll/tidebatch/pkg/batch/core/tx"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// Body is the work of a concrete step, run between opening and closing the
// registered streams.
type Body func(ctx context.Context, se *model.StepExecution) error

// Base implements the parts of port.Step common to all steps.
type Base struct {
	name                 string
	repo                 repository.JobRepository
	allowStartIfComplete bool
	startLimit           int
	listeners            []port.StepExecutionListener
	chunkListeners       []port.ChunkListener
	streams              []port.ItemStream
	promotion            *ExecutionContextPromotion
	tracer               metrics.Tracer
	txManager            tx.TransactionManager
	txOptions            *sql.TxOptions
}

// NewBase creates a Base for the step named name.
func NewBase(name string, repo repository.JobRepository, opts ...Option) *Base {
	b := &Base{
		name:   name,
		repo:   repo,
		tracer: metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.txManager == nil {
		if owner, ok := repo.(interface{ TransactionManager() tx.TransactionManager }); ok {
			b.txManager = owner.TransactionManager()
		} else {
			b.txManager = tx.NewNoOpTransactionManager()
		}
	}
	return b
}

// Name implements port.Step.
func (b *Base) Name() string { return b.name }

// IsAllowStartIfComplete implements port.Step.
func (b *Base) IsAllowStartIfComplete() bool { return b.allowStartIfComplete }

// StartLimit implements port.Step.
func (b *Base) StartLimit() int { return b.startLimit }

// JobRepository returns the repository the step persists through.
func (b *Base) JobRepository() repository.JobRepository { return b.repo }

// TransactionManager returns the manager chunk transactions are started from.
func (b *Base) TransactionManager() tx.TransactionManager { return b.txManager }

// TransactionOptions returns the options chunk transactions are started with, or nil.
func (b *Base) TransactionOptions() *sql.TxOptions { return b.txOptions }

// ChunkListeners returns the registered chunk listeners.
func (b *Base) ChunkListeners() []port.ChunkListener { return b.chunkListeners }

// Streams returns the registered item streams.
func (b *Base) Streams() []port.ItemStream { return b.streams }

// Tracer returns the tracer spans are reported to.
func (b *Base) Tracer() metrics.Tracer { return b.tracer }

// RegisterStream adds streams that are opened before and closed after the body.
func (b *Base) RegisterStream(streams ...port.ItemStream) {
	b.streams = append(b.streams, streams...)
}

// RegisterListener adds step execution listeners.
func (b *Base) RegisterListener(listeners ...port.StepExecutionListener) {
	b.listeners = append(b.listeners, listeners...)
}

// RegisterChunkListener adds chunk listeners.
func (b *Base) RegisterChunkListener(listeners ...port.ChunkListener) {
	b.chunkListeners = append(b.chunkListeners, listeners...)
}

// Run executes body for se with the full step lifecycle:
//
//  1. se is marked STARTED and persisted;
//  2. listeners are notified and streams opened;
//  3. body runs; on success se is upgraded to COMPLETED, unless a stop was
//     requested, in which case it ends STOPPED;
//  4. a failure marks se FAILED (STOPPED for an interruption) and is added to
//     its failures;
//  5. listeners are notified, the context is promoted and persisted and se is
//     persisted. A persistence failure leaves se UNKNOWN.
//
// The returned error is the failure of the body, or of the final
// persistence; it has already been recorded on se.
func (b *Base) Run(ctx context.Context, se *model.StepExecution, body Body) error {
	ctx, end := b.tracer.StartStepSpan(ctx, se)
	defer end()
	ctx = port.WithStepExecution(ctx, se)

	logger.Infof("Executing step '%s' (StepExecution ID: %s).", se.StepName, se.ID)
	se.StartTime = time.Now()
	se.Status = model.BatchStatusStarted
	if err := b.repo.UpdateStepExecution(ctx, se); err != nil {
		logger.Errorf("Step '%s': failed to mark StepExecution %s STARTED: %v", se.StepName, se.ID, err)
		return exception.NewBatchError(b.name, "failed to persist STARTED step execution", err, false, false)
	}

	exitStatus := model.ExitStatusExecuting
	runErr := b.runBody(ctx, se, body)
	if runErr == nil {
		exitStatus = model.ExitStatusCompleted.And(se.ExitStatus)
		if se.IsTerminateOnly() {
			runErr = exception.NewJobInterruptedError("step '%s' interrupted", se.StepName)
		} else {
			se.UpgradeStatus(model.BatchStatusCompleted)
		}
	}
	if runErr != nil {
		status, exit := failureStatus(runErr)
		se.UpgradeStatus(status)
		exitStatus = exitStatus.And(exit)
		se.AddFailure(runErr)
		b.tracer.RecordError(ctx, "step", runErr)
		if exception.IsJobInterrupted(runErr) {
			logger.Warnf("Step '%s' stopped: %v", se.StepName, runErr)
		} else {
			logger.Errorf("Step '%s' failed: %v", se.StepName, runErr)
		}
	}

	se.ExitStatus = exitStatus.And(se.ExitStatus)
	b.notifyAfter(ctx, se)

	if se.Status == model.BatchStatusCompleted && b.promotion != nil {
		if err := b.promotion.promote(ctx, b.repo, se); err != nil {
			logger.Errorf("Step '%s': failed to promote execution context: %v", se.StepName, err)
			se.UpgradeStatus(model.BatchStatusFailed)
			se.ExitStatus = se.ExitStatus.And(model.ExitStatusFailed.AddExitError(err))
			se.AddFailure(err)
			runErr = err
		}
	}

	if err := b.repo.UpdateStepExecutionContext(ctx, se); err != nil {
		logger.Errorf("Step '%s': failed to persist execution context: %v", se.StepName, err)
		se.Status = model.BatchStatusUnknown
		se.ExitStatus = se.ExitStatus.And(model.ExitStatusUnknown)
		se.AddFailure(err)
		if runErr == nil {
			runErr = err
		}
	}

	now := time.Now()
	se.EndTime = &now
	if err := b.repo.UpdateStepExecution(ctx, se); err != nil {
		logger.Errorf("Step '%s': failed to persist final StepExecution: %v", se.StepName, err)
		se.Status = model.BatchStatusUnknown
		se.ExitStatus = se.ExitStatus.And(model.ExitStatusUnknown)
		se.AddFailure(err)
		if runErr == nil {
			runErr = err
		}
	}

	b.closeStreams(ctx, se)
	logger.Infof("Step '%s' finished. Status: %s, ExitStatus: %s", se.StepName, se.Status, se.ExitStatus)
	return runErr
}

func (b *Base) runBody(ctx context.Context, se *model.StepExecution, body Body) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewBatchErrorf(b.name, "step '%s' panicked: %v", se.StepName, r)
		}
	}()
	b.notifyBefore(ctx, se)
	for _, s := range b.streams {
		if err := s.Open(ctx, se.ExecutionContext); err != nil {
			return exception.NewBatchError(b.name, "failed to open item stream", err, false, false)
		}
	}
	return body(ctx, se)
}

func (b *Base) closeStreams(ctx context.Context, se *model.StepExecution) {
	for _, s := range b.streams {
		if err := s.Close(ctx); err != nil {
			logger.Warnf("Step '%s': failed to close item stream: %v", se.StepName, err)
			se.AddFailure(err)
		}
	}
}

func (b *Base) notifyBefore(ctx context.Context, se *model.StepExecution) {
	for _, l := range b.listeners {
		l.BeforeStep(ctx, se)
	}
}

func (b *Base) notifyAfter(ctx context.Context, se *model.StepExecution) {
	for _, l := range b.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Step '%s': AfterStep listener panicked: %v", se.StepName, r)
				}
			}()
			l.AfterStep(ctx, se)
		}()
	}
}

// failureStatus maps a step failure to the status and exit status it leaves.
func failureStatus(err error) (model.BatchStatus, model.ExitStatus) {
	if exception.IsJobInterrupted(err) {
		return model.BatchStatusStopped, model.ExitStatusStopped.AddExitDescription(exception.ErrJobInterrupted.Error())
	}
	return model.BatchStatusFailed, model.ExitStatusFailed.AddExitError(err)
}
