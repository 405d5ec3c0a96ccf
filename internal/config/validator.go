package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ConfigValidator validates configuration values.
type ConfigValidator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements ConfigValidator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a new ConfigValidator instance.
func NewValidator() ConfigValidator {
	return &validatorImpl{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Validate validates the configuration and returns detailed error messages.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	var errorMessages []string

	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validation error: %w", err)
		}
		for _, e := range validationErrs {
			errorMessages = append(errorMessages, formatValidationError(e))
		}
	}

	errorMessages = append(errorMessages, crossFieldErrors(cfg)...)

	if len(errorMessages) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}
	return nil
}

// crossFieldErrors checks constraints that span fields or sections.
func crossFieldErrors(cfg *Config) []string {
	var msgs []string

	if !cfg.Neo4j.Enabled && !cfg.Fallback.Enabled {
		msgs = append(msgs, "at least one of neo4j.enabled or fallback.enabled must be true")
	}
	if cfg.Neo4j.Enabled && cfg.Neo4j.URI == "" {
		msgs = append(msgs, "neo4j.uri is required when neo4j.enabled is true")
	}
	if cfg.Fallback.Enabled && cfg.Fallback.BaseURL == "" {
		msgs = append(msgs, "fallback.base_url is required when fallback.enabled is true")
	}
	if cfg.Breaker.MinRecoveryTimeout > cfg.Breaker.RecoveryTimeout {
		msgs = append(msgs, fmt.Sprintf("breaker.min_recovery_timeout must not exceed breaker.recovery_timeout (got: %s > %s)",
			cfg.Breaker.MinRecoveryTimeout, cfg.Breaker.RecoveryTimeout))
	}
	if err := cfg.Tracing.Validate(); err != nil {
		msgs = append(msgs, "tracing: "+err.Error())
	}
	return msgs
}

// formatValidationError formats a single validation error with field path and details.
func formatValidationError(e validator.FieldError) string {
	fieldPath := formatFieldPath(e.Namespace())

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldPath)
	case "min":
		return fmt.Sprintf("%s must be at least %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "max":
		return fmt.Sprintf("%s must be at most %s (got: %v)", fieldPath, e.Param(), e.Value())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s] (got: %v)", fieldPath, e.Param(), e.Value())
	case "url":
		return fmt.Sprintf("%s must be a valid URL (got: %v)", fieldPath, e.Value())
	case "hostname_port":
		return fmt.Sprintf("%s must be host:port (got: %v)", fieldPath, e.Value())
	default:
		return fmt.Sprintf("%s failed validation '%s' (got: %v)", fieldPath, e.Tag(), e.Value())
	}
}

// formatFieldPath converts validator namespace to a more readable field path.
// Example: "Config.Pool.MaxSize" -> "pool.max_size"
func formatFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) <= 1 {
		return namespace
	}

	result := make([]string, 0, len(parts)-1)
	for i := 1; i < len(parts); i++ {
		result = append(result, camelToSnake(parts[i]))
	}

	return strings.Join(result, ".")
}

// camelToSnake converts CamelCase to snake_case. Runs of capitals such as
// "URI" or "HTTP" stay together.
func camelToSnake(s string) string {
	runes := []rune(s)
	var result strings.Builder
	for i, r := range runes {
		if i > 0 && isUpper(r) {
			prevLower := !isUpper(runes[i-1])
			nextLower := i+1 < len(runes) && !isUpper(runes[i+1])
			if prevLower || nextLower {
				result.WriteRune('_')
			}
		}
		result.WriteRune(r)
	}
	return strings.ToLower(result.String())
}

func isUpper(r rune) bool {
	return r >= 'A' && r <= 'Z'
}
