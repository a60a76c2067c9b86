package gorm

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
)

// Module provides the connection resolver and closes every connection on stop.
// Dialect modules (sqlite, mysql, postgres) contribute the providers.
var Module = fx.Options(
	fx.Provide(
		NewGormDBConnectionResolver,
		func(r *GormDBConnectionResolver) database.DBConnectionResolver { return r },
	),
	fx.Invoke(func(lc fx.Lifecycle, r *GormDBConnectionResolver) {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error { return r.CloseAll() },
		})
	}),
)
