package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// ConfigLoader handles loading configuration from files.
type ConfigLoader interface {
	Load(path string) (*Config, error)
	LoadWithDefaults(path string) (*Config, error)
}

// viperConfigLoader implements ConfigLoader using Viper.
type viperConfigLoader struct {
	validator ConfigValidator
	lookupEnv func(string) (string, bool)
}

// NewConfigLoader creates a new ConfigLoader instance.
func NewConfigLoader(validator ConfigValidator) ConfigLoader {
	return &viperConfigLoader{
		validator: validator,
		lookupEnv: os.LookupEnv,
	}
}

// Load loads configuration from the specified file path layered over
// DefaultConfig, applies ${VAR} interpolation and COGEX_* overrides, and
// validates the result. Returns an error if the file doesn't exist.
func (l *viperConfigLoader) Load(path string) (*Config, error) {
	return l.load(path, true)
}

// LoadWithDefaults behaves like Load but falls back to DefaultConfig (still
// subject to environment overrides) when path is empty or missing.
func (l *viperConfigLoader) LoadWithDefaults(path string) (*Config, error) {
	return l.load(path, false)
}

func (l *viperConfigLoader) load(path string, requireFile bool) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Every key needs a default so AutomaticEnv can see it.
	if err := setDefaults(v, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to register defaults: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if requireFile || !missing {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	} else if requireFile {
		return nil, fmt.Errorf("failed to read config file: no path given")
	}

	// Interpolate ${VAR_NAME} in string settings before unmarshalling.
	for _, key := range v.AllKeys() {
		if s, ok := v.Get(key).(string); ok && strings.Contains(s, "${") {
			v.Set(key, l.interpolateString(s))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.validator.Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults registers every leaf of cfg as a viper default, keyed by its
// yaml path (e.g. "neo4j.uri").
func setDefaults(v *viper.Viper, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return err
	}
	flatten("", tree, v.SetDefault)
	return nil
}

func flatten(prefix string, m map[string]any, set func(string, any)) {
	for k, val := range m {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok && len(nested) > 0 {
			flatten(key, nested, set)
			continue
		}
		set(key, val)
	}
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// interpolateString replaces ${VAR_NAME} with environment variable values.
// Unset variables are left as-is.
func (l *viperConfigLoader) interpolateString(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		if envValue, ok := l.lookupEnv(varName); ok && envValue != "" {
			return envValue
		}
		return match
	})
}
