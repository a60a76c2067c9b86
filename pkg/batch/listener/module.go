// Package listener aggregates the job, step and chunk listeners shipped with
// the engine.
package listener

import (
	"go.uber.org/fx"

	"github.com/tigerroll/tidebatch/pkg/batch/listener/logging"
	"github.com/tigerroll/tidebatch/pkg/batch/listener/metrics"
	"github.com/tigerroll/tidebatch/pkg/batch/listener/notification"
	"github.com/tigerroll/tidebatch/pkg/batch/listener/tracing"
)

// Module aggregates all listener modules of the batch framework.
var Module = fx.Options(
	logging.Module,
	metrics.Module,
	tracing.Module,
	notification.Module,
)
