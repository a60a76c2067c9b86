package incrementer

import (
	"fmt"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// DefaultRunIDKey is the parameter RunIDIncrementer maintains unless told otherwise.
const DefaultRunIDKey = "run.id"

// RunIDIncrementer sets an identifying LONG parameter to 1, or increments it
// when it is already present.
type RunIDIncrementer struct {
	name string
}

// NewRunIDIncrementer creates a RunIDIncrementer for the parameter name.
// An empty name selects DefaultRunIDKey.
func NewRunIDIncrementer(name string) *RunIDIncrementer {
	if name == "" {
		name = DefaultRunIDKey
	}
	return &RunIDIncrementer{name: name}
}

// GetNext returns a copy of params with the run id incremented.
func (i *RunIDIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	current := params.GetLong(i.name, 0)
	next := current + 1
	logger.Debugf("JobParametersIncrementer '%s': %d -> %d.", i.name, current, next)
	return model.NewJobParametersBuilderFrom(params).AddLong(i.name, next).ToJobParameters()
}

// String returns the string representation of RunIDIncrementer.
func (i *RunIDIncrementer) String() string {
	return fmt.Sprintf("RunIDIncrementer[name=%s]", i.name)
}

var _ port.JobParametersIncrementer = (*RunIDIncrementer)(nil)
