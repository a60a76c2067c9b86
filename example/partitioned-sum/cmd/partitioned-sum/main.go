// Command partitioned-sum adds the integers 1..SUM_MAX twice, once with a
// chunk step and once split over partitions, verifies both totals agree and
// publishes a report. Job metadata is kept in SQLite, so a failed run can be
// restarted where it stopped.
package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	_ "embed"

	"go.uber.org/fx"

	usecase "github.com/tigerroll/tidebatch/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	model "github.com/tigerroll/tidebatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

const defaultSumMax = 1000

// startJobExecution launches the configured job once the application has
// started and shuts the application down when the job ends.
func startJobExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	launcher usecase.JobLauncher,
	cfg *config.Config,
	appCtx context.Context,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go runJob(appCtx, launcher, cfg.Tidebatch.Batch.JobName, shutdowner)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}

func runJob(ctx context.Context, launcher usecase.JobLauncher, jobName string, shutdowner fx.Shutdowner) {
	exitCode := 0
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("Panic recovered in job execution: %v", r)
			exitCode = 1
		}
		if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
			logger.Errorf("Failed to shutdown application: %v", err)
		}
	}()

	logger.Infof("Starting job '%s'...", jobName)
	je, err := launcher.Launch(ctx, jobName, model.NewJobParameters())
	if err != nil {
		logger.Errorf("Failed to launch job '%s': %v", jobName, err)
		exitCode = 1
		return
	}
	logger.Infof("Job '%s' (Execution ID: %s) finished with status: %s, ExitStatus: %s",
		jobName, je.ID, je.GetStatus(), je.GetExitStatus().ExitCode)
	if je.GetStatus().IsUnsuccessful() {
		exitCode = 1
	}
}

func sumMaxFromEnv() int64 {
	raw := os.Getenv("SUM_MAX")
	if raw == "" {
		return defaultSumMax
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 1 {
		logger.Warnf("Ignoring invalid SUM_MAX '%s'; using %d.", raw, defaultSumMax)
		return defaultSumMax
	}
	return v
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Attempting to stop the job...", sig)
		cancel()
	}()

	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app := fx.New(GetApplicationOptions(ctx, envFilePath, embeddedConfig, sumMaxFromEnv())...)
	app.Run()
	if err := app.Err(); err != nil {
		logger.Fatalf("Application run failed: %v", err)
	}
}
