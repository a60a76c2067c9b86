package local

import (
	"go.uber.org/fx"

	"github.com/tigerroll/tidebatch/pkg/batch/adapter/storage"
)

// Module contributes the local Provider to the storage provider group.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewProvider,
		fx.As(new(storage.Provider)),
		fx.ResultTags(`group:"`+storage.ProviderGroup+`"`),
	)),
)
