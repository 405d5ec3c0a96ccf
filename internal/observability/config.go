package observability

import (
	"fmt"
	"strings"
)

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Format string `yaml:"format" mapstructure:"format" validate:"omitempty,oneof=json text"`
}

// TracingConfig configures distributed tracing.
type TracingConfig struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
	// Provider is "otlp" (gRPC exporter) or "noop".
	Provider    string  `yaml:"provider" mapstructure:"provider" validate:"omitempty,oneof=otlp noop"`
	Endpoint    string  `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure    bool    `yaml:"insecure" mapstructure:"insecure"`
	ServiceName string  `yaml:"service_name" mapstructure:"service_name"`
	SampleRate  float64 `yaml:"sample_rate" mapstructure:"sample_rate" validate:"gte=0,lte=1"`
}

// Validate validates the TracingConfig fields.
// Returns an error if tracing is enabled with the otlp provider but no endpoint,
// or if SampleRate is out of range (must be between 0.0 and 1.0).
func (c *TracingConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.SampleRate < 0.0 || c.SampleRate > 1.0 {
		return fmt.Errorf("invalid sample rate: %f (must be between 0.0 and 1.0)", c.SampleRate)
	}
	provider := strings.ToLower(c.Provider)
	if provider != "noop" && c.Endpoint == "" {
		return fmt.Errorf("tracing endpoint is required for provider %q", c.Provider)
	}
	return nil
}

// MetricsConfig configures the prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}
