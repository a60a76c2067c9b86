// Package runner executes jobs: FlowJob drives a flow.Flow over a
// JobExecution through a JobFlowExecutor, and FlowStep runs a nested flow as
// a single step.
package runner

import (
	"context"
	"errors"
	"time"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	"github.com/tigerroll/tidebatch/pkg/batch/core/flow"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/tidebatch/pkg/batch/core/metrics"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// NoOpExitDescription is added to the exit status of an execution that ran no step.
const NoOpExitDescription = "All steps already completed or no steps configured for this job."

// FlowJob is a port.Job whose steps are sequenced by a flow.
type FlowJob struct {
	name           string
	flow           flow.Flow
	repo           repository.JobRepository
	restartable    bool
	incrementer    port.JobParametersIncrementer
	validator      func(model.JobParameters) error
	listeners      []port.JobExecutionListener
	metricRecorder metrics.MetricRecorder
	tracer         metrics.Tracer
}

// JobOption configures a FlowJob.
type JobOption func(*FlowJob)

// WithRestartable sets whether a failed or stopped instance may run again.
// Jobs are restartable by default.
func WithRestartable(restartable bool) JobOption {
	return func(j *FlowJob) { j.restartable = restartable }
}

// WithIncrementer sets the incrementer used by the launcher to derive the
// parameters of the next run.
func WithIncrementer(incrementer port.JobParametersIncrementer) JobOption {
	return func(j *FlowJob) { j.incrementer = incrementer }
}

// WithParametersValidator rejects parameters before an execution starts.
func WithParametersValidator(validator func(model.JobParameters) error) JobOption {
	return func(j *FlowJob) { j.validator = validator }
}

// WithJobListeners registers job execution listeners.
func WithJobListeners(listeners ...port.JobExecutionListener) JobOption {
	return func(j *FlowJob) { j.listeners = append(j.listeners, listeners...) }
}

// WithMetricRecorder reports job and step metrics to recorder.
func WithMetricRecorder(recorder metrics.MetricRecorder) JobOption {
	return func(j *FlowJob) {
		if recorder != nil {
			j.metricRecorder = recorder
		}
	}
}

// WithJobTracer reports job spans to tracer.
func WithJobTracer(tracer metrics.Tracer) JobOption {
	return func(j *FlowJob) {
		if tracer != nil {
			j.tracer = tracer
		}
	}
}

// NewFlowJob creates a FlowJob named name running f.
func NewFlowJob(name string, f flow.Flow, repo repository.JobRepository, opts ...JobOption) *FlowJob {
	j := &FlowJob{
		name:           name,
		flow:           f,
		repo:           repo,
		restartable:    true,
		metricRecorder: metrics.NewNoOpMetricRecorder(),
		tracer:         metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Name implements port.Job.
func (j *FlowJob) Name() string { return j.name }

// Flow returns the flow of the job.
func (j *FlowJob) Flow() flow.Flow { return j.flow }

// IsRestartable implements port.Job.
func (j *FlowJob) IsRestartable() bool { return j.restartable }

// JobParametersIncrementer implements port.Job.
func (j *FlowJob) JobParametersIncrementer() port.JobParametersIncrementer { return j.incrementer }

// ValidateParameters implements port.Job.
func (j *FlowJob) ValidateParameters(params model.JobParameters) error {
	logger.Debugf("Job '%s': validating parameters %s", j.name, params.String())
	if j.validator == nil {
		return nil
	}
	if err := j.validator(params); err != nil {
		return exception.NewBatchError(j.name, "invalid job parameters", err, false, false)
	}
	return nil
}

// Execute implements port.Job. The outcome is recorded on je and persisted
// before Execute returns; the returned error is the failure that ended the
// job, if any.
func (j *FlowJob) Execute(ctx context.Context, je *model.JobExecution) (err error) {
	ctx, end := j.tracer.StartJobSpan(ctx, je)
	defer end()
	logger.Infof("Starting Job '%s' (Execution ID: %s).", j.name, je.ID)

	je.SetExitStatus(model.ExitStatusExecuting)
	exitStatus := model.ExitStatusCompleted
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewBatchErrorf(j.name, "job '%s' panicked: %v", j.name, r)
			exitStatus = model.ExitStatusFailed.AddExitError(err)
			je.SetStatus(model.BatchStatusFailed)
			je.AddFailure(err)
		}
		j.finish(ctx, je, exitStatus)
	}()

	if err = j.ValidateParameters(je.Parameters); err != nil {
		exitStatus = model.ExitStatusFailed.AddExitError(err)
		je.SetStatus(model.BatchStatusFailed)
		je.AddFailure(err)
		return err
	}

	if je.IsStopping() {
		logger.Infof("Job '%s' was stopped before it started.", j.name)
		je.SetStatus(model.BatchStatusStopped)
		exitStatus = model.ExitStatusStopped
		return nil
	}

	je.StartTime = time.Now()
	je.SetStatus(model.BatchStatusStarted)
	if err = j.repo.UpdateJobExecution(ctx, je); err != nil {
		exitStatus = model.ExitStatusFailed.AddExitError(err)
		je.SetStatus(model.BatchStatusFailed)
		je.AddFailure(err)
		return err
	}
	j.metricRecorder.RecordJobStart(ctx, je)
	for _, l := range j.listeners {
		l.BeforeJob(ctx, je)
	}

	if err = j.doExecute(ctx, je); err != nil {
		j.tracer.RecordError(ctx, "job", err)
		je.AddFailure(err)
		if exception.IsJobInterrupted(err) || errors.Is(err, context.Canceled) {
			logger.Warnf("Job '%s' was stopped: %v", j.name, err)
			exitStatus = model.ExitStatusStopped.AddExitError(err)
			je.SetStatus(model.MaxStatus(model.BatchStatusStopped, je.GetStatus()))
		} else {
			logger.Errorf("Job '%s' failed: %v", j.name, err)
			exitStatus = model.ExitStatusFailed.AddExitError(err)
			je.SetStatus(model.BatchStatusFailed)
		}
	}
	return err
}

// doExecute runs the flow and records its final status on je.
func (j *FlowJob) doExecute(ctx context.Context, je *model.JobExecution) error {
	executor := NewJobFlowExecutor(j.repo, NewSimpleStepHandler(j.repo, j.metricRecorder), je)
	result, err := j.flow.Start(ctx, executor)
	if err != nil {
		var jobErr *exception.JobExecutionError
		if errors.As(err, &jobErr) {
			return jobErr
		}
		return exception.NewBatchError(j.name, "flow execution ended unexpectedly", err, false, false)
	}
	executor.UpdateJobExecutionStatus(result.Status)
	return nil
}

// finish combines exitStatus into je, notifies the listeners and persists
// the final state.
func (j *FlowJob) finish(ctx context.Context, je *model.JobExecution, exitStatus model.ExitStatus) {
	if je.GetStatus().IsLessThanOrEqualTo(model.BatchStatusStopped) && len(je.GetStepExecutions()) == 0 {
		exitStatus = exitStatus.And(model.ExitStatusNoOp).AddExitDescription(NoOpExitDescription)
	}
	je.AndExitStatus(exitStatus)

	for _, l := range j.listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Errorf("Job '%s': AfterJob listener panicked: %v", j.name, r)
				}
			}()
			l.AfterJob(ctx, je)
		}()
	}

	now := time.Now()
	je.EndTime = &now
	if err := j.repo.UpdateJobExecution(ctx, je); err != nil {
		logger.Errorf("Job '%s': failed to persist final JobExecution %s: %v", j.name, je.ID, err)
	}
	j.metricRecorder.RecordJobEnd(ctx, je)
	logger.Infof("Job '%s' (Execution ID: %s) finished. Status: %s, ExitStatus: %s",
		j.name, je.ID, je.GetStatus(), je.GetExitStatus())
}

var _ port.Job = (*FlowJob)(nil)
