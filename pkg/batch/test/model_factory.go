// Package test holds fixtures shared by the tests of the batch packages.
package test

import (
	"fmt"
	"time"

	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
)

// NewTestJobParameters creates identifying JobParameters from params. string,
// int, int64, float64, bool and time.Time values keep their type; other values
// are stored as strings.
func NewTestJobParameters(params map[string]interface{}) model.JobParameters {
	b := model.NewJobParametersBuilder()
	for k, v := range params {
		switch val := v.(type) {
		case string:
			b.AddString(k, val)
		case int:
			b.AddLong(k, int64(val))
		case int64:
			b.AddLong(k, val)
		case float64:
			b.AddDouble(k, val)
		case bool:
			b.AddBool(k, val)
		case time.Time:
			b.AddDate(k, val)
		default:
			b.AddString(k, fmt.Sprint(val))
		}
	}
	return b.ToJobParameters()
}

// NewTestJobExecution creates a JobExecution of a new instance of jobName.
func NewTestJobExecution(jobName string, params model.JobParameters) *model.JobExecution {
	return model.NewJobExecution(model.NewJobInstance(jobName, params), params)
}

// NewTestChunkContext creates a ChunkContext for a new step execution named
// stepName, attached to a fresh execution of jobName.
func NewTestChunkContext(jobName, stepName string) *model.ChunkContext {
	je := NewTestJobExecution(jobName, model.NewJobParameters())
	return model.NewChunkContext(model.NewStepExecution(stepName, je))
}

// NewTestExecutionContext creates an ExecutionContext holding data.
func NewTestExecutionContext(data map[string]interface{}) *model.ExecutionContext {
	return model.NewExecutionContextFrom(data)
}
