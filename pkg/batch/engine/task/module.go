package task

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/tidebatch/pkg/batch/core/application/port"
	"github.com/tigerroll/tidebatch/pkg/batch/core/config"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// NewTaskExecutor builds the executor named by tidebatch.batch.task_executor.
// A pool executor is released when the application stops.
func NewTaskExecutor(lc fx.Lifecycle, cfg *config.Config) (port.TaskExecutor, error) {
	execCfg := cfg.Tidebatch.Batch.TaskExecutor
	switch execCfg.Type {
	case config.TaskExecutorSync:
		logger.Infof("Using synchronous task executor.")
		return NewSyncTaskExecutor(), nil
	case "", config.TaskExecutorPool:
		size := execCfg.PoolSize
		if size <= 0 {
			size = cfg.Tidebatch.Batch.GridSize
		}
		executor, err := NewPoolTaskExecutor(size)
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				executor.Release()
				return nil
			},
		})
		logger.Infof("Using pool task executor (size %d).", size)
		return executor, nil
	default:
		return nil, fmt.Errorf("unknown task executor type '%s'", execCfg.Type)
	}
}

// Module provides port.TaskExecutor.
var Module = fx.Options(
	fx.Provide(NewTaskExecutor),
)
