package storage

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	storageconfig "github.com/tigerroll/tidebatch/pkg/batch/adapter/storage/config"
	"github.com/tigerroll/tidebatch/pkg/batch/core/config"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/tidebatch/pkg/batch/support/util/logger"
)

// LookupStorageConfig decodes the named entry of the "storage" section.
func LookupStorageConfig(cfg *config.Config, name string) (storageconfig.StorageConfig, error) {
	var sc storageconfig.StorageConfig
	raw, ok := cfg.Tidebatch.Storage[name]
	if !ok {
		return sc, fmt.Errorf("storage configuration '%s' not found", name)
	}
	props, ok := raw.(map[string]interface{})
	if !ok {
		return sc, fmt.Errorf("storage configuration '%s' must be a mapping, got %T", name, raw)
	}
	if err := configbinder.BindProperties(props, &sc); err != nil {
		return sc, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	return sc, nil
}

// ResolverParams defines the dependencies of NewConnectionResolver.
type ResolverParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Providers []Provider `group:"storageProviders"`
}

// DefaultConnectionResolver dispatches a connection name to the provider
// registered for its configured type.
type DefaultConnectionResolver struct {
	cfg       *config.Config
	providers map[string]Provider
}

// NewConnectionResolver creates a DefaultConnectionResolver and closes the
// connections of every provider when the application stops.
func NewConnectionResolver(p ResolverParams) *DefaultConnectionResolver {
	r := &DefaultConnectionResolver{cfg: p.Cfg, providers: make(map[string]Provider, len(p.Providers))}
	for _, provider := range p.Providers {
		r.providers[provider.Type()] = provider
	}
	if p.Lifecycle != nil {
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(ctx context.Context) error { return r.CloseAll() },
		})
	}
	return r
}

// ResolveStorageConnection implements ConnectionResolver.
func (r *DefaultConnectionResolver) ResolveStorageConnection(ctx context.Context, name string) (Connection, error) {
	sc, err := LookupStorageConfig(r.cfg, name)
	if err != nil {
		return nil, err
	}
	provider, ok := r.providers[sc.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider registered for type '%s' (connection '%s')", sc.Type, name)
	}
	return provider.GetConnection(name)
}

// CloseAll closes the connections of every provider.
func (r *DefaultConnectionResolver) CloseAll() error {
	var firstErr error
	for t, provider := range r.providers {
		if err := provider.CloseAll(); err != nil {
			logger.Warnf("Failed to close storage connections of type '%s': %v", t, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

var _ ConnectionResolver = (*DefaultConnectionResolver)(nil)

// Module provides the ConnectionResolver. Backend modules such as local
// contribute providers to the "storageProviders" group.
var Module = fx.Options(
	fx.Provide(
		NewConnectionResolver,
		func(r *DefaultConnectionResolver) ConnectionResolver { return r },
	),
)
