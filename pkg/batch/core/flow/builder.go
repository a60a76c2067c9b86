package flow

import (
	"fmt"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// Builder assembles a SimpleFlow fluently:
//
//	f, err := flow.NewBuilder("job").
//		Start(flow.NewStepState(load)).
//		Next(flow.NewStepState(sum)).
//		From(load).On("FAILED").To(flow.NewStepState(report)).
//		Build()
//
// Build closes every open route: a state without transitions ends the flow
// COMPLETED on a COMPLETED status and FAILED otherwise, and a state with
// transitions but no catch-all fails the flow on any status it does not route.
type Builder struct {
	flow    *SimpleFlow
	current State
	counter int
	err     error
}

// NewBuilder creates a Builder for a flow named name.
func NewBuilder(name string) *Builder {
	return &Builder{flow: NewSimpleFlow(name)}
}

// Start makes state the start state and the current state.
func (b *Builder) Start(state State) *Builder {
	b.add(state)
	if b.err == nil {
		b.err = b.flow.SetStartState(state.Name())
	}
	b.current = state
	return b
}

// From makes state, or the state registered under the name of a step, the
// current state.
func (b *Builder) From(state interface{ Name() string }) *Builder {
	if s, ok := state.(State); ok {
		if _, known := b.flow.states[s.Name()]; !known {
			b.add(s)
		}
	}
	current, ok := b.flow.states[state.Name()]
	if !ok {
		b.fail(fmt.Errorf("flow '%s': state '%s' is not defined", b.flow.name, state.Name()))
		return b
	}
	b.current = current
	return b
}

// Next routes the current state to state on COMPLETED and makes state current.
func (b *Builder) Next(state State) *Builder {
	return b.On(string(model.FlowStatusCompleted)).To(state)
}

// On starts a transition from the current state for statuses matching pattern.
func (b *Builder) On(pattern string) *TransitionBuilder {
	return &TransitionBuilder{parent: b, from: b.current, pattern: pattern}
}

// Build validates and returns the flow.
func (b *Builder) Build() (*SimpleFlow, error) {
	if b.err != nil {
		return nil, b.err
	}
	b.closeOpenRoutes()
	if b.err != nil {
		return nil, b.err
	}
	if err := b.flow.Validate(); err != nil {
		return nil, err
	}
	return b.flow, nil
}

func (b *Builder) closeOpenRoutes() {
	var completed, failed State
	completedEnd := func() State {
		if completed == nil {
			completed = b.endState("end", model.FlowStatusCompleted, "")
		}
		return completed
	}
	failedEnd := func() State {
		if failed == nil {
			failed = b.endState("fail", model.FlowStatusFailed, "")
		}
		return failed
	}

	for _, name := range b.flow.StateNames() {
		state := b.flow.states[name]
		if state.IsEndState() {
			continue
		}
		ts := b.flow.transitions[name]
		routesCompleted, routesAll := false, false
		for _, t := range ts {
			routesCompleted = routesCompleted || t.Matches(string(model.FlowStatusCompleted))
			routesAll = routesAll || t.On == "*"
		}
		if !routesCompleted {
			b.transition(state, string(model.FlowStatusCompleted), completedEnd())
		}
		if !routesAll {
			b.transition(state, "*", failedEnd())
		}
	}
}

func (b *Builder) endState(kind string, status model.FlowExecutionStatus, code string) *EndState {
	b.counter++
	return NewEndState(fmt.Sprintf("%s.%s%d", b.flow.name, kind, b.counter), status, code)
}

func (b *Builder) add(state State) {
	if b.err != nil {
		return
	}
	b.err = b.flow.AddState(state)
}

func (b *Builder) transition(from State, pattern string, to State) {
	if b.err != nil {
		return
	}
	if from == nil {
		b.fail(fmt.Errorf("flow '%s': transition on '%s' has no source state; call Start first", b.flow.name, pattern))
		return
	}
	b.add(to)
	if b.err == nil {
		b.err = b.flow.AddTransition(from.Name(), pattern, to.Name())
	}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

// TransitionBuilder completes a transition started with Builder.On.
type TransitionBuilder struct {
	parent  *Builder
	from    State
	pattern string
}

// To routes to state and makes it the current state.
func (t *TransitionBuilder) To(state State) *Builder {
	t.parent.transition(t.from, t.pattern, state)
	t.parent.current = state
	return t.parent
}

// End ends the flow COMPLETED. An optional exit code replaces "COMPLETED".
func (t *TransitionBuilder) End(code ...string) *Builder {
	return t.endWith("end", model.FlowStatusCompleted, code)
}

// Fail ends the flow FAILED. An optional exit code replaces "FAILED".
func (t *TransitionBuilder) Fail(code ...string) *Builder {
	return t.endWith("fail", model.FlowStatusFailed, code)
}

// Stop ends the flow STOPPED. A restart of the job runs the whole flow again.
func (t *TransitionBuilder) Stop() *Builder {
	return t.endWith("stop", model.FlowStatusStopped, nil)
}

// StopAndRestart ends the flow STOPPED; when the job is restarted the flow
// continues at restart instead of at the stopped state.
func (t *TransitionBuilder) StopAndRestart(restart State) *Builder {
	b := t.parent
	b.counter++
	stop := NewStopState(fmt.Sprintf("%s.stop%d", b.flow.name, b.counter), false)
	b.transition(t.from, t.pattern, stop)
	b.transition(stop, "*", restart)
	b.current = t.from
	return b
}

func (t *TransitionBuilder) endWith(kind string, status model.FlowExecutionStatus, code []string) *Builder {
	b := t.parent
	exit := ""
	if len(code) > 0 {
		exit = code[0]
	}
	b.transition(t.from, t.pattern, b.endState(kind, status, exit))
	b.current = t.from
	return b
}
