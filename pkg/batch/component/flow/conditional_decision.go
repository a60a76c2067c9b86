// Package flow holds reusable flow deciders.
package flow

import (
	"context"
	"fmt"

	coreflow "github.com/tigerroll/tidebatch/pkg/batch/core/flow"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// ConditionalDecision routes on a single value. The value under Key is looked
// up in the execution context of the last step, then in the job execution
// context, then in the job parameters. A value equal to Expected yields
// MatchStatus; a different or missing value yields DefaultStatus.
type ConditionalDecision struct {
	name          string
	key           string
	expected      string
	matchStatus   model.FlowExecutionStatus
	defaultStatus model.FlowExecutionStatus
}

// NewConditionalDecision creates a decision comparing key with expected. It
// returns COMPLETED on a match and FAILED otherwise until changed with
// WithStatuses.
func NewConditionalDecision(name, key, expected string) *ConditionalDecision {
	return &ConditionalDecision{
		name:          name,
		key:           key,
		expected:      expected,
		matchStatus:   model.FlowStatusCompleted,
		defaultStatus: model.FlowStatusFailed,
	}
}

// WithStatuses sets the statuses returned on a match and otherwise.
func (d *ConditionalDecision) WithStatuses(match, otherwise model.FlowExecutionStatus) *ConditionalDecision {
	d.matchStatus = match
	d.defaultStatus = otherwise
	return d
}

// Name returns the name of the decision.
func (d *ConditionalDecision) Name() string { return d.name }

// Decide implements coreflow.JobExecutionDecider.
func (d *ConditionalDecision) Decide(_ context.Context, je *model.JobExecution, se *model.StepExecution) (model.FlowExecutionStatus, error) {
	if d.key == "" {
		return model.FlowStatusUnknown, fmt.Errorf("decision '%s' has no condition key", d.name)
	}
	actual, source, ok := d.lookup(je, se)
	if !ok {
		logger.Warnf("ConditionalDecision '%s': Key '%s' not found. Returning default status '%s'.", d.name, d.key, d.defaultStatus)
		return d.defaultStatus, nil
	}
	if actual == d.expected {
		logger.Infof("ConditionalDecision '%s': Condition matched in %s ('%s' == '%s'). Returning '%s'.", d.name, source, actual, d.expected, d.matchStatus)
		return d.matchStatus, nil
	}
	logger.Infof("ConditionalDecision '%s': Condition did not match in %s ('%s' != '%s'). Returning '%s'.", d.name, source, actual, d.expected, d.defaultStatus)
	return d.defaultStatus, nil
}

func (d *ConditionalDecision) lookup(je *model.JobExecution, se *model.StepExecution) (string, string, bool) {
	if se != nil && se.ExecutionContext != nil {
		if v, ok := se.ExecutionContext.Get(d.key); ok {
			return fmt.Sprint(v), "step context", true
		}
	}
	if je == nil {
		return "", "", false
	}
	if je.ExecutionContext != nil {
		if v, ok := je.ExecutionContext.Get(d.key); ok {
			return fmt.Sprint(v), "job context", true
		}
	}
	if p, ok := je.Parameters.Get(d.key); ok {
		return fmt.Sprint(p.Value), "job parameters", true
	}
	return "", "", false
}

var _ coreflow.JobExecutionDecider = (*ConditionalDecision)(nil)
