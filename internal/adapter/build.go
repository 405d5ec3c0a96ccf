package adapter

import (
	"context"
	"errors"

	"github.com/ejmockler/indra-cogex-mcp/internal/backend"
	"github.com/ejmockler/indra-cogex-mcp/internal/catalog"
	"github.com/ejmockler/indra-cogex-mcp/internal/config"
	"github.com/ejmockler/indra-cogex-mcp/internal/types"
)

// ConfigFrom extracts the router settings from the root configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		Breaker:        cfg.Breaker,
		Retry:          cfg.Retry,
		Cache:          cfg.Cache,
		Health:         cfg.Health,
		DefaultTimeout: cfg.Adapter.DefaultTimeout,
	}
}

// Build wires an adapter from the root configuration: it loads the catalog,
// creates the enabled backend clients (Neo4j first) and calls New. On error
// every client created so far is closed.
func Build(ctx context.Context, cfg *config.Config, opts ...Option) (*Adapter, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, types.NewConfigError(types.CONFIG_LOAD_FAILED, "failed to load query catalog", err)
	}

	var clients []backend.Client
	closeAll := func() error {
		var errs []error
		for _, c := range clients {
			errs = append(errs, c.Close(ctx))
		}
		return errors.Join(errs...)
	}

	if cfg.Neo4j.Enabled {
		primary, err := backend.NewNeo4jClient(cfg.Neo4j, cfg.Pool)
		if err != nil {
			return nil, types.NewConfigError(types.CONFIG_VALIDATION_FAILED, "failed to create neo4j client", err)
		}
		clients = append(clients, primary)
	}
	if cfg.Fallback.Enabled {
		fallback, err := backend.NewHTTPClient(cfg.Fallback)
		if err != nil {
			_ = closeAll()
			return nil, types.NewConfigError(types.CONFIG_VALIDATION_FAILED, "failed to create fallback client", err)
		}
		clients = append(clients, fallback)
	}

	a, err := New(ConfigFrom(cfg), cat, clients, opts...)
	if err != nil {
		_ = closeAll()
		return nil, err
	}
	return a, nil
}
