package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cogex-adapter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, cfg.Neo4j.Enabled)
	assert.Equal(t, "neo4j://localhost:7687", cfg.Neo4j.URI)
	assert.True(t, cfg.Fallback.Enabled)
	assert.Equal(t, 10, cfg.Pool.MaxSize)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 30*time.Second, cfg.Breaker.RecoveryTimeout)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 1000, cfg.Cache.Capacity)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.False(t, cfg.Cache.CacheEmptyResults)
	assert.Equal(t, 30*time.Second, cfg.Health.Interval)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.False(t, cfg.Tracing.Enabled)
	assert.Empty(t, cfg.Catalog.Path)

	assert.NoError(t, NewValidator().Validate(cfg), "defaults must validate")
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
neo4j:
  uri: bolt://graph.internal:7687
  username: reader
  password: secret
  query_timeout: 45s
fallback:
  base_url: https://cogex.example.org
  timeout: 10s
pool:
  max_size: 4
  acquire_timeout: 2s
breaker:
  failure_threshold: 3
  recovery_timeout: 1m
cache:
  capacity: 50
  ttl: 10m
  cache_empty_results: true
health:
  interval: 15s
logging:
  level: debug
  format: text
`)

	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph.internal:7687", cfg.Neo4j.URI)
	assert.Equal(t, "reader", cfg.Neo4j.Username)
	assert.Equal(t, 45*time.Second, cfg.Neo4j.QueryTimeout)
	assert.Equal(t, "https://cogex.example.org", cfg.Fallback.BaseURL)
	assert.Equal(t, 4, cfg.Pool.MaxSize)
	assert.Equal(t, 2*time.Second, cfg.Pool.AcquireTimeout)
	assert.Equal(t, 3, cfg.Breaker.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.Breaker.RecoveryTimeout)
	assert.Equal(t, 50, cfg.Cache.Capacity)
	assert.True(t, cfg.Cache.CacheEmptyResults)
	assert.Equal(t, 15*time.Second, cfg.Health.Interval)
	assert.Equal(t, "text", cfg.Logging.Format)

	// Untouched keys keep their defaults.
	assert.True(t, cfg.Neo4j.Enabled)
	assert.Equal(t, 2, cfg.Breaker.SuccessThreshold)
	assert.Equal(t, "/health", cfg.Fallback.HealthPath)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
}

func TestLoad_EnvInterpolation(t *testing.T) {
	t.Setenv("TEST_NEO4J_PASSWORD", "from-env")
	path := writeConfig(t, `
neo4j:
  password: ${TEST_NEO4J_PASSWORD}
fallback:
  api_key: ${TEST_UNSET_VARIABLE}
`)

	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Neo4j.Password)
	assert.Equal(t, "${TEST_UNSET_VARIABLE}", cfg.Fallback.APIKey, "unset variables are left as-is")
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COGEX_NEO4J_PASSWORD", "override")
	t.Setenv("COGEX_POOL_MAX_SIZE", "7")
	t.Setenv("COGEX_FALLBACK_ENABLED", "false")
	path := writeConfig(t, `
neo4j:
  password: file-value
pool:
  max_size: 3
`)

	cfg, err := NewConfigLoader(NewValidator()).Load(path)
	require.NoError(t, err)

	assert.Equal(t, "override", cfg.Neo4j.Password)
	assert.Equal(t, 7, cfg.Pool.MaxSize)
	assert.False(t, cfg.Fallback.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := NewConfigLoader(NewValidator()).Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestLoadWithDefaults_MissingFile(t *testing.T) {
	t.Setenv("COGEX_LOGGING_LEVEL", "warn")

	cfg, err := NewConfigLoader(NewValidator()).LoadWithDefaults(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig().Neo4j, cfg.Neo4j)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadWithDefaults_EmptyPath(t *testing.T) {
	cfg, err := NewConfigLoader(NewValidator()).LoadWithDefaults("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Cache, cfg.Cache)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "neo4j: [unterminated")

	_, err := NewConfigLoader(NewValidator()).LoadWithDefaults(path)
	assert.Error(t, err, "a present but broken file is never ignored")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "pool too small",
			mutate:  func(c *Config) { c.Pool.MaxSize = 0 },
			wantErr: "pool.max_size must be at least 1",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "chatty" },
			wantErr: "logging.level must be one of",
		},
		{
			name:    "bad fallback url",
			mutate:  func(c *Config) { c.Fallback.BaseURL = "not a url" },
			wantErr: "fallback.base_url must be a valid URL",
		},
		{
			name: "no backend",
			mutate: func(c *Config) {
				c.Neo4j.Enabled = false
				c.Fallback.Enabled = false
			},
			wantErr: "at least one of neo4j.enabled or fallback.enabled",
		},
		{
			name:    "primary without uri",
			mutate:  func(c *Config) { c.Neo4j.URI = "" },
			wantErr: "neo4j.uri is required",
		},
		{
			name:    "disabled primary needs no uri",
			mutate:  func(c *Config) { c.Neo4j.Enabled, c.Neo4j.URI = false, "" },
			wantErr: "",
		},
		{
			name:    "retry backoff inverted",
			mutate:  func(c *Config) { c.Retry.MaxBackoff = time.Millisecond },
			wantErr: "retry.max_backoff failed validation 'gtefield'",
		},
		{
			name:    "min recovery above recovery",
			mutate:  func(c *Config) { c.Breaker.MinRecoveryTimeout = time.Hour },
			wantErr: "breaker.min_recovery_timeout must not exceed",
		},
		{
			name:    "tracing without endpoint",
			mutate:  func(c *Config) { c.Tracing.Enabled = true },
			wantErr: "tracing: tracing endpoint is required",
		},
		{
			name:    "bad server addr",
			mutate:  func(c *Config) { c.Server.Addr = "localhost" },
			wantErr: "server.addr must be host:port",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)

			err := NewValidator().Validate(cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_Nil(t *testing.T) {
	assert.Error(t, NewValidator().Validate(nil))
}

func TestConfig_Redacted(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Neo4j.Password = "hunter2"
	cfg.Fallback.APIKey = "key"

	red := cfg.Redacted()
	assert.Equal(t, redactedValue, red.Neo4j.Password)
	assert.Equal(t, redactedValue, red.Fallback.APIKey)
	assert.Equal(t, "hunter2", cfg.Neo4j.Password, "original untouched")
}

func TestCamelToSnake(t *testing.T) {
	tests := map[string]string{
		"MaxSize":             "max_size",
		"BaseURL":             "base_url",
		"URI":                 "uri",
		"Neo4j":               "neo4j",
		"HalfOpenMaxRequests": "half_open_max_requests",
	}
	for in, want := range tests {
		assert.Equal(t, want, camelToSnake(in), in)
	}
}
