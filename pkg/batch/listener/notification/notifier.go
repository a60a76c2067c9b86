package notification

import (
	"context"
	"fmt"
	"time"

	port "github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/core/ports"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// LogNotifier is a Notifier that writes a one-line summary to the log.
type LogNotifier struct{}

// NewLogNotifier creates a new instance of LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyJobCompletion logs the outcome of execution. Unsuccessful outcomes
// are logged as warnings.
func (n *LogNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) {
	status := execution.GetStatus()
	message := Summarize(execution)
	if status == model.BatchStatusCompleted {
		logger.Infof("%s", message)
	} else {
		logger.Warnf("%s", message)
	}
}

var _ ports.Notifier = (*LogNotifier)(nil)

// Summarize renders the notification text for execution.
func Summarize(execution *model.JobExecution) string {
	duration := time.Duration(0)
	if execution.EndTime != nil && !execution.StartTime.IsZero() {
		duration = execution.EndTime.Sub(execution.StartTime)
	}
	return fmt.Sprintf(
		"Job Notification: Job '%s' (ID: %s) finished with Status: %s, ExitStatus: %s. Duration: %s, Failures: %d",
		execution.JobName,
		execution.ID,
		execution.GetStatus(),
		execution.GetExitStatus().ExitCode,
		duration,
		len(execution.AllFailures()),
	)
}

// NotificationJobListener forwards finished job executions to a Notifier.
type NotificationJobListener struct {
	notifier ports.Notifier
}

// NewNotificationJobListener creates a listener notifying notifier.
func NewNotificationJobListener(notifier ports.Notifier) *NotificationJobListener {
	return &NotificationJobListener{notifier: notifier}
}

// BeforeJob does nothing.
func (l *NotificationJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

// AfterJob calls the Notifier.
func (l *NotificationJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.notifier.NotifyJobCompletion(ctx, jobExecution)
}

var _ port.JobExecutionListener = (*NotificationJobListener)(nil)
