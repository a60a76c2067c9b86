package mysql

import (
	"go.uber.org/fx"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/database"
	gormadapter "github.com/tigerroll/tidebatch/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/tidebatch/pkg/batch/core/config"
)

// NewProvider creates the MySQL DBProvider.
func NewProvider(cfg *config.Config) database.DBProvider {
	return gormadapter.NewBaseProvider(cfg, Dialect{})
}

// Module exports the MySQL DBProvider for dependency injection.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewProvider,
			fx.ResultTags(`group:"`+database.DBProviderGroup+`"`),
		),
	),
)
