// Package incrementer provides JobParametersIncrementers that derive the
// parameters of the next job instance.
package incrementer

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
)

// Module provides both incrementers under the names "runIdIncrementer" and
// "timestampIncrementer".
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			func() port.JobParametersIncrementer { return NewRunIDIncrementer(DefaultRunIDKey) },
			fx.ResultTags(`name:"runIdIncrementer"`),
		),
		fx.Annotate(
			func() port.JobParametersIncrementer { return NewTimestampIncrementer(DefaultTimestampKey) },
			fx.ResultTags(`name:"timestampIncrementer"`),
		),
	),
)
