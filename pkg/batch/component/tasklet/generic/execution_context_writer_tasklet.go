// Package generic provides reusable tasklets for assembling and testing jobs.
package generic

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/tasklet"
	exception "github.com/tigerroll/tidebatch/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// ExecutionContextWriterTasklet writes typed values into an ExecutionContext.
// Property keys have the form "key.type", where type is one of string, int,
// int64, float, float64 or bool; the part before the last dot is the key.
// Unknown types are written as strings.
//
//	"sum.expected.int": "5050" puts int64(5050) under "sum.expected"
type ExecutionContextWriterTasklet struct {
	id         string
	properties map[string]string
	jobScope   bool
}

// NewExecutionContextWriterTasklet creates a tasklet writing properties into
// the step ExecutionContext.
func NewExecutionContextWriterTasklet(id string, properties map[string]string) *ExecutionContextWriterTasklet {
	return &ExecutionContextWriterTasklet{id: id, properties: properties}
}

// InJobScope makes the tasklet write into the job ExecutionContext instead,
// where later steps and decisions can read the values.
func (t *ExecutionContextWriterTasklet) InJobScope() *ExecutionContextWriterTasklet {
	t.jobScope = true
	return t
}

// Execute implements tasklet.Tasklet.
func (t *ExecutionContextWriterTasklet) Execute(_ context.Context, _ *model.StepContribution, cc *model.ChunkContext) (tasklet.RepeatStatus, error) {
	target := cc.StepExecution.ExecutionContext
	if t.jobScope {
		if cc.StepExecution.JobExecution == nil {
			return tasklet.Failed, exception.NewBatchErrorf(t.id, "step '%s' has no job execution", cc.StepExecution.StepName)
		}
		target = cc.StepExecution.JobExecution.ExecutionContext
	}
	logger.Infof("ExecutionContextWriterTasklet '%s' executing. Writing %d properties to ExecutionContext.", t.id, len(t.properties))

	keys := make([]string, 0, len(t.properties))
	for k := range t.properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, keyWithType := range keys {
		key, value, err := convert(keyWithType, t.properties[keyWithType])
		if err != nil {
			return tasklet.Failed, exception.NewBatchError(t.id, "failed to convert property", err, false, false)
		}
		target.Put(key, value)
		logger.Debugf("Wrote to EC: %s = %v", key, value)
	}
	return tasklet.Finished, nil
}

func convert(keyWithType, raw string) (string, interface{}, error) {
	idx := strings.LastIndex(keyWithType, ".")
	if idx <= 0 || idx == len(keyWithType)-1 {
		return "", nil, fmt.Errorf("property key '%s' is not in 'key.type' format", keyWithType)
	}
	key, typ := keyWithType[:idx], strings.ToLower(keyWithType[idx+1:])

	var (
		value interface{}
		err   error
	)
	switch typ {
	case "string":
		value = raw
	case "int", "int64":
		value, err = strconv.ParseInt(raw, 10, 64)
	case "float", "float64":
		value, err = strconv.ParseFloat(raw, 64)
	case "bool":
		value, err = strconv.ParseBool(raw)
	default:
		logger.Warnf("Unknown type '%s' for key '%s'. Treating as string.", typ, key)
		value = raw
	}
	if err != nil {
		return "", nil, fmt.Errorf("value '%s' of key '%s' is not a valid %s: %w", raw, key, typ, err)
	}
	return key, value, nil
}

var _ tasklet.Tasklet = (*ExecutionContextWriterTasklet)(nil)
