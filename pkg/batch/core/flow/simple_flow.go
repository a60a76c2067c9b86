package flow

import (
	"context"
	"errors"
	"fmt"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// SimpleFlow runs its states one at a time, following the most specific
// matching transition after each state.
type SimpleFlow struct {
	name        string
	startState  string
	states      map[string]State
	order       []string
	transitions map[string][]Transition
}

// NewSimpleFlow creates an empty flow. The first state added becomes the
// start state.
func NewSimpleFlow(name string) *SimpleFlow {
	return &SimpleFlow{
		name:        name,
		states:      make(map[string]State),
		transitions: make(map[string][]Transition),
	}
}

// Name implements Flow.
func (f *SimpleFlow) Name() string {
	return f.name
}

// State implements Flow.
func (f *SimpleFlow) State(name string) State {
	return f.states[name]
}

// StateNames returns the state names in the order they were added.
func (f *SimpleFlow) StateNames() []string {
	return append([]string(nil), f.order...)
}

// Transitions returns the transitions leaving the state named from, most
// specific first.
func (f *SimpleFlow) Transitions(from string) []Transition {
	return append([]Transition(nil), f.transitions[from]...)
}

// AddState registers state. Adding the same state twice is a no-op; adding a
// different state under a taken name is an error.
func (f *SimpleFlow) AddState(state State) error {
	if state == nil {
		return exception.NewBatchErrorf("flow", "flow '%s': state must not be nil", f.name)
	}
	name := state.Name()
	if existing, ok := f.states[name]; ok {
		if existing == state {
			return nil
		}
		return exception.NewBatchErrorf("flow", "flow '%s': state '%s' is already defined", f.name, name)
	}
	f.states[name] = state
	f.order = append(f.order, name)
	if f.startState == "" {
		f.startState = name
	}
	return nil
}

// SetStartState makes the state named name the start state.
func (f *SimpleFlow) SetStartState(name string) error {
	if _, ok := f.states[name]; !ok {
		return exception.NewBatchErrorf("flow", "flow '%s': start state '%s' is not defined", f.name, name)
	}
	f.startState = name
	return nil
}

// AddTransition routes from the state named from to the state named to when
// the status of from matches on.
func (f *SimpleFlow) AddTransition(from, on, to string) error {
	if on == "" {
		return exception.NewBatchErrorf("flow", "flow '%s': transition from '%s' needs a pattern", f.name, from)
	}
	for _, t := range f.transitions[from] {
		if t.On == on {
			return exception.NewBatchErrorf("flow", "flow '%s': state '%s' already has a transition on '%s'", f.name, from, on)
		}
	}
	ts := append(f.transitions[from], Transition{From: from, On: on, To: to})
	sortTransitions(ts)
	f.transitions[from] = ts
	return nil
}

// Validate checks that the flow has a start state and that every transition
// connects defined states.
func (f *SimpleFlow) Validate() error {
	if f.startState == "" {
		return exception.NewBatchErrorf("flow", "flow '%s' has no states", f.name)
	}
	for from, ts := range f.transitions {
		if _, ok := f.states[from]; !ok {
			return exception.NewBatchErrorf("flow", "flow '%s': transition source '%s' is not defined", f.name, from)
		}
		for _, t := range ts {
			if _, ok := f.states[t.To]; !ok {
				return exception.NewBatchErrorf("flow", "flow '%s': transition target '%s' (from '%s' on '%s') is not defined", f.name, t.To, from, t.On)
			}
		}
	}
	return nil
}

// Start implements Flow.
func (f *SimpleFlow) Start(ctx context.Context, executor FlowExecutor) (*FlowExecution, error) {
	if f.startState == "" {
		return nil, &FlowExecutionError{Flow: f.name, Err: exception.NewBatchErrorf("flow", "flow '%s' has no states", f.name)}
	}
	return f.Resume(ctx, f.startState, executor)
}

// Resume implements Flow.
func (f *SimpleFlow) Resume(ctx context.Context, stateName string, executor FlowExecutor) (*FlowExecution, error) {
	state, ok := f.states[stateName]
	if !ok {
		return nil, &FlowExecutionError{Flow: f.name, State: stateName,
			Err: exception.NewBatchErrorf("flow", "state '%s' is not defined in flow '%s'", stateName, f.name)}
	}

	status := model.FlowStatusUnknown
	var se *model.StepExecution
	for f.isContinued(state, status, se) {
		stateName = state.Name()
		logger.Debugf("Flow '%s': handling state '%s'.", f.name, stateName)

		var err error
		status, err = state.Handle(ctx, executor)
		if err != nil {
			executor.Close(&FlowExecution{Name: stateName, Status: status})
			var flowErr *FlowExecutionError
			if errors.As(err, &flowErr) {
				return nil, err
			}
			return nil, &FlowExecutionError{Flow: f.name, State: stateName, Err: err}
		}
		se = executor.StepExecution()
		state = f.nextState(stateName, status)
	}

	result := &FlowExecution{Name: stateName, Status: status}
	logger.Debugf("Flow '%s' ended: %s", f.name, result)
	executor.Close(result)
	return result, nil
}

// nextState returns the target of the most specific transition matching
// status, or nil when the flow ends at from.
func (f *SimpleFlow) nextState(from string, status model.FlowExecutionStatus) State {
	for _, t := range f.transitions[from] {
		if t.Matches(string(status)) {
			return f.states[t.To]
		}
	}
	if state := f.states[from]; state != nil && !state.IsEndState() {
		logger.Warnf("Flow '%s': no transition from state '%s' matches status %s; ending flow.", f.name, from, status)
	}
	return nil
}

// isContinued decides whether the loop goes on to state. A STOPPED status
// ends the flow, except when a restarted step context shows that the stop was
// already honoured by a previous execution.
func (f *SimpleFlow) isContinued(state State, status model.FlowExecutionStatus, se *model.StepExecution) bool {
	if state == nil {
		return false
	}
	if !status.IsStop() {
		return true
	}
	if se == nil || se.ExecutionContext == nil {
		return false
	}
	restarted := se.ExecutionContext.GetBool(model.ContextKeyRestart, false)
	executed := se.ExecutionContext.GetBool(model.ContextKeyExecuted, false)
	return restarted && !executed && state.Name() != se.StepName
}

var _ Flow = (*SimpleFlow)(nil)

// String returns the flow name and its states.
func (f *SimpleFlow) String() string {
	return fmt.Sprintf("SimpleFlow{name=%s, start=%s, states=%v}", f.name, f.startState, f.order)
}
