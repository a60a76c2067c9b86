package notification

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	"github.com/tigerroll/tidebatch/pkg/batch/core/ports"
)

// Module provides the LogNotifier as ports.Notifier and registers the
// notification listener. Applications replace the notifier with fx.Decorate.
var Module = fx.Options(
	fx.Provide(fx.Annotate(NewLogNotifier, fx.As(new(ports.Notifier)))),
	fx.Provide(fx.Annotate(NewNotificationJobListener,
		fx.As(new(port.JobExecutionListener)), fx.ResultTags(`group:"jobListeners"`))),
)
