package main

import (
	"context"

	"go.uber.org/fx"

	sumjob "github.com/tigerroll/tidebatch/example/partitioned-sum/internal/job"
	gormadapter "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/storage"
	"github.com/tigerroll/tidebatch/pkg/batch/adapter/storage/local"
	usecase "github.com/tigerroll/tidebatch/pkg/batch/core/application/usecase"
	config "github.com/tigerroll/tidebatch/pkg/batch/core/config"
	"github.com/tigerroll/tidebatch/pkg/batch/core/job/runner"
	"github.com/tigerroll/tidebatch/pkg/batch/core/support/incrementer"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/step/partition"
	"github.com/tigerroll/tidebatch/pkg/batch/engine/task"
	inframetrics "github.com/tigerroll/tidebatch/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/tidebatch/pkg/batch/infrastructure/repository"
	batchlistener "github.com/tigerroll/tidebatch/pkg/batch/listener"
	logger "github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// GetApplicationOptions returns the fx options of the application.
func GetApplicationOptions(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, sumMax int64) []fx.Option {
	return []fx.Option{
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
			fx.Annotate(sumMax, fx.ResultTags(`name:"sumMax"`)),
		),
		logger.Module,
		config.Module,
		gormadapter.Module,
		sqlite.Module,
		mysql.Module,
		postgres.Module,
		repository.Module,
		storage.Module,
		local.Module,
		task.Module,
		inframetrics.Module,
		runner.Module,
		partition.Module,
		batchlistener.Module,
		incrementer.Module,
		usecase.Module,
		sumjob.Module,
		fx.Invoke(fx.Annotate(startJobExecution, fx.ParamTags("", "", "", "", `name:"appCtx"`))),
	}
}
