// Package repository selects and wires the job repository backend named by
// tidebatch.infrastructure.job_repository.
package repository

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	"github.com/tigerroll/tidebatch/pkg/batch/core/config"
	core "github.com/tigerroll/tidebatch/pkg/batch/core/domain/repository"
	"github.com/tigerroll/tidebatch/pkg/batch/core/tx"
	"github.com/tigerroll/tidebatch/pkg/batch/infrastructure/repository/inmemory"
	reposql "github.com/tigerroll/tidebatch/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// Params are the dependencies of NewJobRepository. Resolver is only required
// by the sql backend.
type Params struct {
	fx.In
	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Resolver  database.DBConnectionResolver `optional:"true"`
}

// Result exports the repository and the transaction manager steps commit
// their chunks with. Both operate on the same store.
type Result struct {
	fx.Out
	JobRepository      core.JobRepository
	TransactionManager tx.TransactionManager
}

// NewJobRepository builds the configured repository backend.
func NewJobRepository(p Params) (Result, error) {
	repoCfg := p.Cfg.Tidebatch.Infrastructure.JobRepository
	switch repoCfg.Type {
	case "", config.JobRepositoryInMemory:
		logger.Infof("Using in-memory job repository.")
		return result(p.Lifecycle, inmemory.NewJobRepository()), nil

	case config.JobRepositorySQL:
		if p.Resolver == nil {
			return Result{}, fmt.Errorf("job repository type 'sql' requires a database module")
		}
		conn, err := p.Resolver.ResolveDBConnection(context.Background(), repoCfg.DBRef)
		if err != nil {
			return Result{}, fmt.Errorf("failed to resolve job repository database '%s': %w", repoCfg.DBRef, err)
		}
		if repoCfg.AutoMigrate {
			migrator := reposql.NewMigrator(conn)
			p.Lifecycle.Append(fx.Hook{
				OnStart: func(ctx context.Context) error { return migrator.Up(ctx) },
			})
		}
		logger.Infof("Using SQL job repository on '%s' (%s).", repoCfg.DBRef, conn.Type())
		return result(p.Lifecycle, reposql.NewJobRepository(conn)), nil

	default:
		return Result{}, fmt.Errorf("unknown job repository type '%s'", repoCfg.Type)
	}
}

func result(lc fx.Lifecycle, repo *core.SimpleJobRepository) Result {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error { return repo.Close() },
	})
	return Result{JobRepository: repo, TransactionManager: repo.TransactionManager()}
}

// Module provides core.JobRepository and tx.TransactionManager.
var Module = fx.Options(
	fx.Provide(NewJobRepository),
)
