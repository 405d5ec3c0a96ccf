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

// Config is the root configuration for the CoGEx adapter. It is read once at
// startup and never mutated afterwards.
type Config struct {
	Neo4j    backend.Neo4jConfig         `mapstructure:"neo4j" yaml:"neo4j"`
	Fallback backend.HTTPConfig          `mapstructure:"fallback" yaml:"fallback"`
	Pool     pool.Config                 `mapstructure:"pool" yaml:"pool"`
	Breaker  breaker.Config              `mapstructure:"breaker" yaml:"breaker"`
	Retry    retry.Config                `mapstructure:"retry" yaml:"retry"`
	Cache    cache.Config                `mapstructure:"cache" yaml:"cache"`
	Health   health.Config               `mapstructure:"health" yaml:"health"`
	Catalog  CatalogConfig               `mapstructure:"catalog" yaml:"catalog"`
	Adapter  AdapterConfig               `mapstructure:"adapter" yaml:"adapter"`
	Server   ServerConfig                `mapstructure:"server" yaml:"server"`
	Logging  observability.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing  observability.TracingConfig `mapstructure:"tracing" yaml:"tracing"`
	Metrics  observability.MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// CatalogConfig selects the named-query catalog.
type CatalogConfig struct {
	// Path is a YAML catalog file. Empty means the embedded default catalog.
	Path string `mapstructure:"path" yaml:"path"`
}

// AdapterConfig contains router-level settings.
type AdapterConfig struct {
	// DefaultTimeout bounds a query whose request carries no timeout.
	// Zero leaves the caller's context as the only bound.
	DefaultTimeout time.Duration `mapstructure:"default_timeout" yaml:"default_timeout" validate:"min=0"`
}

// ServerConfig contains the HTTP listener settings used by `serve`.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"min=0"`
}

// Redacted returns a copy safe for printing, with secrets masked.
func (c Config) Redacted() Config {
	if c.Neo4j.Password != "" {
		c.Neo4j.Password = redactedValue
	}
	if c.Fallback.APIKey != "" {
		c.Fallback.APIKey = redactedValue
	}
	return c
}

const redactedValue = "********"
