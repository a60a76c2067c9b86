package flow_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/flow"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
)

type fakeStep struct {
	name string
	code string
	err  error
}

func (s *fakeStep) Name() string { return s.name }
func (s *fakeStep) Execute(context.Context, *model.StepExecution) error { return nil }
func (s *fakeStep) IsAllowStartIfComplete() bool { return false }
func (s *fakeStep) StartLimit() int { return 0 }

func step(name, code string) *fakeStep { return &fakeStep{name: name, code: code} }

// journal is shared by an executor and all of its forks.
type journal struct {
	mu        sync.Mutex
	ran       []string
	exits     []string
	abandoned []string
	forks     int
}

func (j *journal) ranSteps() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.ran...)
}

type fakeExecutor struct {
	journal *journal
	je      *model.JobExecution
	last    *model.StepExecution
	restart bool
}

func newExecutor(restart bool) *fakeExecutor {
	instance := model.NewJobInstance("job", model.NewJobParameters())
	return &fakeExecutor{
		journal: &journal{},
		je:      model.NewJobExecution(instance, instance.Parameters),
		restart: restart,
	}
}

func (e *fakeExecutor) ExecuteStep(_ context.Context, s port.Step) (string, error) {
	fs := s.(*fakeStep)
	if fs.err != nil {
		return "", fs.err
	}
	se := model.NewStepExecution(fs.name, e.je)
	se.ExitStatus = model.NewExitStatus(fs.code, "")
	switch {
	case strings.HasPrefix(fs.code, "FAILED"):
		se.Status = model.BatchStatusFailed
	case fs.code == "UNKNOWN":
		se.Status = model.BatchStatusUnknown
	default:
		se.Status = model.BatchStatusCompleted
	}
	e.last = se
	e.journal.mu.Lock()
	e.journal.ran = append(e.journal.ran, fs.name)
	e.journal.mu.Unlock()
	return fs.code, nil
}

func (e *fakeExecutor) JobExecution() *model.JobExecution { return e.je }
func (e *fakeExecutor) StepExecution() *model.StepExecution { return e.last }
func (e *fakeExecutor) IsRestart() bool { return e.restart }

func (e *fakeExecutor) AbandonStepExecution(context.Context) error {
	if e.last != nil && e.last.Status.IsGreaterThan(model.BatchStatusStopping) {
		e.last.Status = model.BatchStatusAbandoned
		e.journal.mu.Lock()
		e.journal.abandoned = append(e.journal.abandoned, e.last.StepName)
		e.journal.mu.Unlock()
	}
	return nil
}

func (e *fakeExecutor) UpdateJobExecutionStatus(model.FlowExecutionStatus) {}

func (e *fakeExecutor) AddExitStatus(code string) {
	e.journal.mu.Lock()
	e.journal.exits = append(e.journal.exits, code)
	e.journal.mu.Unlock()
}

func (e *fakeExecutor) Close(*flow.FlowExecution) {}

func (e *fakeExecutor) Fork() flow.FlowExecutor {
	e.journal.mu.Lock()
	e.journal.forks++
	e.journal.mu.Unlock()
	return &fakeExecutor{journal: e.journal, je: e.je, restart: e.restart}
}

func TestSimpleFlow_FollowsMostSpecificTransition(t *testing.T) {
	s1 := flow.NewStepState(step("step1", "COMPLETED_WITH_SKIPS"))
	s2 := flow.NewStepState(step("step2", "COMPLETED"))
	s3 := flow.NewStepState(step("step3", "COMPLETED"))

	f, err := flow.NewBuilder("job").
		Start(s1).On("COMPLETED*").To(s2).
		From(s1).On("COMPLETED_WITH_SKIPS").To(s3).
		Build()
	require.NoError(t, err)

	exec := newExecutor(false)
	result, err := f.Start(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, []string{"step1", "step3"}, exec.journal.ranSteps())
	assert.Equal(t, model.FlowStatusCompleted, result.Status)
	assert.Equal(t, []string{"COMPLETED"}, exec.journal.exits)
}

func TestSimpleFlow_FailedStepEndsFlowFailed(t *testing.T) {
	f, err := flow.NewBuilder("job").
		Start(flow.NewStepState(step("step1", "FAILED"))).
		Next(flow.NewStepState(step("step2", "COMPLETED"))).
		Build()
	require.NoError(t, err)

	exec := newExecutor(false)
	result, err := f.Start(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, []string{"step1"}, exec.journal.ranSteps())
	assert.Equal(t, model.FlowStatusFailed, result.Status)
	assert.Equal(t, []string{"FAILED"}, exec.journal.exits)
}

func TestSimpleFlow_FailureBranchAbandonsFailedStep(t *testing.T) {
	s1 := flow.NewStepState(step("step1", "FAILED"))
	recovery := flow.NewStepState(step("recovery", "COMPLETED"))

	f, err := flow.NewBuilder("job").
		Start(s1).On("FAILED").To(recovery).
		Build()
	require.NoError(t, err)

	exec := newExecutor(false)
	result, err := f.Start(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusCompleted, result.Status)
	assert.Equal(t, []string{"step1", "recovery"}, exec.journal.ranSteps())
	assert.Equal(t, []string{"step1"}, exec.journal.abandoned)
}

func TestSimpleFlow_EndsWhenNoTransitionMatches(t *testing.T) {
	f := flow.NewSimpleFlow("job")
	require.NoError(t, f.AddState(flow.NewStepState(step("step1", "NOOP"))))
	require.NoError(t, f.AddState(flow.NewStepState(step("step2", "COMPLETED"))))
	require.NoError(t, f.AddTransition("step1", "COMPLETED", "step2"))
	require.NoError(t, f.Validate())

	exec := newExecutor(false)
	result, err := f.Start(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, "step1", result.Name)
	assert.Equal(t, model.FlowExecutionStatus("NOOP"), result.Status)
	assert.Equal(t, []string{"step1"}, exec.journal.ranSteps())
}

func TestSimpleFlow_StateErrorIsWrapped(t *testing.T) {
	broken := &fakeStep{name: "step1", err: exception.NewJobInterruptedError("step '%s' interrupted", "step1")}
	f, err := flow.NewBuilder("job").Start(flow.NewStepState(broken)).Build()
	require.NoError(t, err)

	_, err = f.Start(context.Background(), newExecutor(false))
	require.Error(t, err)

	var flowErr *flow.FlowExecutionError
	require.True(t, errors.As(err, &flowErr))
	assert.Equal(t, "job", flowErr.Flow)
	assert.Equal(t, "step1", flowErr.State)
	assert.True(t, exception.IsJobInterrupted(err))
}

func TestSimpleFlow_ResumeAtState(t *testing.T) {
	f, err := flow.NewBuilder("job").
		Start(flow.NewStepState(step("step1", "COMPLETED"))).
		Next(flow.NewStepState(step("step2", "COMPLETED"))).
		Build()
	require.NoError(t, err)

	exec := newExecutor(false)
	result, err := f.Resume(context.Background(), "step2", exec)
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusCompleted, result.Status)
	assert.Equal(t, []string{"step2"}, exec.journal.ranSteps())

	_, err = f.Resume(context.Background(), "missing", exec)
	assert.Error(t, err)
}

func TestSimpleFlow_ValidateRejectsDanglingTarget(t *testing.T) {
	f := flow.NewSimpleFlow("job")
	require.NoError(t, f.AddState(flow.NewStepState(step("step1", "COMPLETED"))))
	require.NoError(t, f.AddTransition("step1", "*", "nowhere"))
	assert.Error(t, f.Validate())

	assert.Error(t, f.AddTransition("step1", "*", "elsewhere"), "duplicate pattern")
	assert.Error(t, f.AddState(flow.NewStepState(step("step1", "FAILED"))), "duplicate name")
}

func TestEndState_StopAndRestart(t *testing.T) {
	s1 := flow.NewStepState(step("step1", "COMPLETED"))
	s2 := flow.NewStepState(step("step2", "COMPLETED"))

	f, err := flow.NewBuilder("job").
		Start(s1).On("COMPLETED").StopAndRestart(s2).
		Build()
	require.NoError(t, err)

	first := newExecutor(false)
	result, err := f.Start(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusStopped, result.Status)
	assert.Equal(t, []string{"step1"}, first.journal.ranSteps())
	assert.Equal(t, []string{"STOPPED"}, first.journal.exits)

	restart := newExecutor(true)
	result, err = f.Start(context.Background(), restart)
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusCompleted, result.Status)
	assert.Equal(t, []string{"step1", "step2"}, restart.journal.ranSteps())
}

func TestEndState_UnknownStepIsUnrecoverable(t *testing.T) {
	f, err := flow.NewBuilder("job").
		Start(flow.NewStepState(step("step1", "UNKNOWN"))).
		Next(flow.NewStepState(step("step2", "COMPLETED"))).
		Build()
	require.NoError(t, err)

	result, err := f.Start(context.Background(), newExecutor(false))
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusUnknown, result.Status)
}

func TestEndState_CustomExitCode(t *testing.T) {
	s1 := flow.NewStepState(step("step1", "COMPLETED"))
	f, err := flow.NewBuilder("job").
		Start(s1).On("COMPLETED").End("DONE_EARLY").
		Build()
	require.NoError(t, err)

	exec := newExecutor(false)
	result, err := f.Start(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusCompleted, result.Status)
	assert.Equal(t, []string{"DONE_EARLY"}, exec.journal.exits)
}

func TestDecisionState_RoutesOnDecision(t *testing.T) {
	s1 := flow.NewStepState(step("step1", "COMPLETED"))
	even := flow.NewStepState(step("even", "COMPLETED"))
	odd := flow.NewStepState(step("odd", "COMPLETED"))
	decision := flow.NewDecisionState("parity", flow.DeciderFunc(
		func(_ context.Context, _ *model.JobExecution, se *model.StepExecution) (model.FlowExecutionStatus, error) {
			if se != nil && se.StepName == "step1" {
				return "EVEN", nil
			}
			return "ODD", nil
		}))

	f, err := flow.NewBuilder("job").
		Start(s1).Next(decision).
		From(decision).On("EVEN").To(even).
		From(decision).On("*").To(odd).
		Build()
	require.NoError(t, err)

	exec := newExecutor(false)
	result, err := f.Start(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusCompleted, result.Status)
	assert.Equal(t, []string{"step1", "even"}, exec.journal.ranSteps())
}

func TestFlowState_RunsNestedFlow(t *testing.T) {
	inner, err := flow.NewBuilder("inner").
		Start(flow.NewStepState(step("a", "COMPLETED"))).
		Next(flow.NewStepState(step("b", "COMPLETED"))).
		Build()
	require.NoError(t, err)

	outer, err := flow.NewBuilder("outer").
		Start(flow.NewFlowState(inner)).
		Next(flow.NewStepState(step("c", "COMPLETED"))).
		Build()
	require.NoError(t, err)

	exec := newExecutor(false)
	result, err := outer.Start(context.Background(), exec)
	require.NoError(t, err)
	assert.Equal(t, model.FlowStatusCompleted, result.Status)
	assert.Equal(t, []string{"a", "b", "c"}, exec.journal.ranSteps())
}

func TestFlow_TransitionPrecedence(t *testing.T) {
	f := flow.NewSimpleFlow("job")
	require.NoError(t, f.AddState(flow.NewStepState(step("s", "COMPLETED"))))
	for _, p := range []string{"*", "C*", "?OMPLETED", "COMPLETED*", "COMPLETED", "B*"} {
		require.NoError(t, f.AddTransition("s", p, "s"))
	}

	var got []string
	for _, tr := range f.Transitions("s") {
		got = append(got, tr.On)
	}
	assert.Equal(t, []string{"COMPLETED", "COMPLETED*", "?OMPLETED", "B*", "C*", "*"}, got)
}

func TestTransition_Matches(t *testing.T) {
	cases := []struct {
		pattern string
		status  string
		want    bool
	}{
		{"*", "", true},
		{"*", "ANYTHING", true},
		{"COMPLETED", "COMPLETED", true},
		{"COMPLETED", "COMPLETED_WITH_SKIPS", false},
		{"COMPLETED*", "COMPLETED_WITH_SKIPS", true},
		{"C?MPLETED", "COMPLETED", true},
		{"C?MPLETED", "CMPLETED", false},
		{"*ED", "FAILED", true},
		{"*ED", "FAILED_HARD", false},
		{"F*L*D", "FAILED", true},
		{"?", "", false},
	}
	for _, c := range cases {
		tr := flow.Transition{On: c.pattern}
		assert.Equal(t, c.want, tr.Matches(c.status), "%q vs %q", c.pattern, c.status)
	}
}
