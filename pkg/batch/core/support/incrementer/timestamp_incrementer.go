package incrementer

import (
	"fmt"
	"time"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// DefaultTimestampKey is the parameter TimestampIncrementer maintains unless told otherwise.
const DefaultTimestampKey = "timestamp"

// TimestampIncrementer stores the current Unix time in milliseconds as an
// identifying LONG parameter. A value that does not move forward is bumped by
// one so that two calls within the same millisecond still differ.
type TimestampIncrementer struct {
	name string
	now  func() time.Time
}

// NewTimestampIncrementer creates a TimestampIncrementer for the parameter name.
// An empty name selects DefaultTimestampKey.
func NewTimestampIncrementer(name string) *TimestampIncrementer {
	if name == "" {
		name = DefaultTimestampKey
	}
	return &TimestampIncrementer{name: name, now: time.Now}
}

// GetNext returns a copy of params with the timestamp set.
func (i *TimestampIncrementer) GetNext(params model.JobParameters) model.JobParameters {
	next := i.now().UnixMilli()
	if previous := params.GetLong(i.name, 0); next <= previous {
		next = previous + 1
	}
	logger.Debugf("JobParametersIncrementer '%s': setting %d.", i.name, next)
	return model.NewJobParametersBuilderFrom(params).AddLong(i.name, next).ToJobParameters()
}

// String returns the string representation of TimestampIncrementer.
func (i *TimestampIncrementer) String() string {
	return fmt.Sprintf("TimestampIncrementer[name=%s]", i.name)
}

var _ port.JobParametersIncrementer = (*TimestampIncrementer)(nil)
