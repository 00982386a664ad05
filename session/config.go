package session

import "github.com/hazyhaar/fibre/internal/config"

// Config is the session configuration, see LoadConfig.
type Config = config.Config

// LoadConfig reads a YAML configuration file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes YAML configuration and applies defaults.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}

// DefaultConfig returns the configuration of an empty file: in-memory host,
// no store, no sinks.
func DefaultConfig() *Config {
	return config.Default()
}
