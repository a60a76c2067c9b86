package logger

import (
	"strings"

	"go.uber.org/fx/fxevent"
)

// FxEventLogger routes fx container events through the logging facade.
type FxEventLogger struct{}

// NewFxLoggerAdapter creates the fx event logger.
func NewFxLoggerAdapter() fxevent.Logger {
	return &FxEventLogger{}
}

// LogEvent implements fxevent.Logger.
func (l *FxEventLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuted:
		logHook("OnStart", e.FunctionName, e.Err)
	case *fxevent.OnStopExecuted:
		logHook("OnStop", e.FunctionName, e.Err)
	case *fxevent.Provided:
		if e.Err != nil {
			Errorf("fx provide failed: %v", e.Err)
			return
		}
		Debugf("fx provided: %s", strings.Join(e.OutputTypeNames, ", "))
	case *fxevent.Invoked:
		if e.Err != nil {
			Errorf("fx invoke failed: %s: %v", trimFuncName(e.FunctionName), e.Err)
		}
	case *fxevent.Stopping:
		Debugf("fx stopping on signal %s", e.Signal)
	case *fxevent.RollingBack:
		Errorf("fx start failed, rolling back: %v", e.StartErr)
	case *fxevent.Started:
		if e.Err != nil {
			Errorf("fx start failed: %v", e.Err)
		} else {
			Infof("Application started.")
		}
	case *fxevent.LoggerInitialized:
		if e.Err != nil {
			Errorf("fx logger initialization failed: %v", e.Err)
		}
	}
}

func logHook(kind, fn string, err error) {
	if err != nil {
		Errorf("%s hook failed: %s: %v", kind, trimFuncName(fn), err)
		return
	}
	Debugf("%s hook executed: %s", kind, trimFuncName(fn))
}

// trimFuncName strips closure suffixes such as ".func1" from fx function names.
func trimFuncName(fn string) string {
	if idx := strings.LastIndex(fn, ".func"); idx != -1 {
		return fn[:idx]
	}
	return fn
}
