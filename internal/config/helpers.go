package config

// DefaultConfigFile is looked up in the working directory when --config is not given.
const DefaultConfigFile = "cogex-adapter.yaml"

// EnvPrefix prefixes environment overrides, e.g. COGEX_NEO4J_PASSWORD.
const EnvPrefix = "COGEX"
