package config

import (
	"time"

	"github.com/ejmockler/indra-cogex-mcp/internal/backend"
	"github.com/ejmockler/indra-cogex-mcp/internal/breaker"
	"github.com/ejmockler/indra-cogex-mcp/internal/cache"
	"github.com/ejmockler/indra-cogex-mcp/internal/health"
	"github.com/ejmockler/indra-cogex-mcp/internal/observability"
	"github.com/ejmockler/indra-cogex-mcp/internal/pool"
	"github.com/ejmockler/indra-cogex-mcp/internal/retry"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Neo4j:    backend.DefaultNeo4jConfig(),
		Fallback: backend.DefaultHTTPConfig(),
		Pool:     pool.DefaultConfig(),
		Breaker:  breaker.DefaultConfig(),
		Retry:    retry.DefaultConfig(),
		Cache:    cache.DefaultConfig(),
		Health:   health.DefaultConfig(),
		Adapter: AdapterConfig{
			DefaultTimeout: 60 * time.Second,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    90 * time.Second,
			ShutdownTimeout: 20 * time.Second,
		},
		Logging: observability.LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: observability.TracingConfig{
			Enabled:     false,
			Provider:    "otlp",
			ServiceName: "cogex-adapter",
			SampleRate:  1.0,
		},
		Metrics: observability.MetricsConfig{
			Enabled:   true,
			Namespace: observability.DefaultNamespace,
		},
	}
}
