// Package config handles fibre session configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level session configuration.
type Config struct {
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Host      HostConfig      `yaml:"host"`
	Store     StoreConfig     `yaml:"store"`
	Snapshot  SnapshotConfig  `yaml:"snapshot"`
	Compress  *bool           `yaml:"compress"`
	HTTP      HTTPConfig      `yaml:"http"`
	MCP       MCPConfig       `yaml:"mcp"`
	Sinks     []SinkConfig    `yaml:"sinks"`
}

// SchedulerConfig controls the idle-time driver.
type SchedulerConfig struct {
	Slice    time.Duration `yaml:"slice"`     // budget of one tick
	Interval time.Duration `yaml:"interval"`  // pause between ticks while work is pending
	MinSlice time.Duration `yaml:"min_slice"` // remaining budget below which a tick yields
}

// HostConfig selects the host platform.
type HostConfig struct {
	Kind   string       `yaml:"kind"` // memory | chrome
	Chrome ChromeConfig `yaml:"chrome"`
}

// ChromeConfig controls the Chrome host lifecycle.
type ChromeConfig struct {
	Remote  string        `yaml:"remote"`  // ws:// of an existing browser; empty launches one
	Stealth string        `yaml:"stealth"` // headless | headful | off
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig locates the commit log database. An empty path disables it.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// SnapshotConfig controls full-tree snapshots.
type SnapshotConfig struct {
	Every int `yaml:"every"` // commits between snapshots
}

// HTTPConfig controls the inspector server.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// MCPConfig controls the MCP tools.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type    string `yaml:"type"` // stdout | webhook
	URL     string `yaml:"url"`  // for webhook
	Retries int    `yaml:"retries"`
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration of an empty file.
func Default() *Config {
	var cfg Config
	cfg.ApplyDefaults()
	return &cfg
}

// CompressEnabled reports whether batches are compressed.
func (c *Config) CompressEnabled() bool {
	return c.Compress == nil || *c.Compress
}

// ApplyDefaults fills every unset field with its default value.
func (c *Config) ApplyDefaults() {
	if c.Scheduler.Slice <= 0 {
		c.Scheduler.Slice = 8 * time.Millisecond
	}
	if c.Scheduler.Interval <= 0 {
		c.Scheduler.Interval = 16 * time.Millisecond
	}
	if c.Scheduler.MinSlice <= 0 {
		c.Scheduler.MinSlice = time.Millisecond
	}
	if c.Host.Kind == "" {
		c.Host.Kind = "memory"
	}
	if c.Host.Chrome.Stealth == "" {
		c.Host.Chrome.Stealth = "headless"
	}
	if c.Host.Chrome.URL == "" {
		c.Host.Chrome.URL = "about:blank"
	}
	if c.Host.Chrome.Timeout <= 0 {
		c.Host.Chrome.Timeout = 30 * time.Second
	}
	if c.Snapshot.Every <= 0 {
		c.Snapshot.Every = 10
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8095"
	}
	for i := range c.Sinks {
		if c.Sinks[i].Type == "webhook" && c.Sinks[i].Retries <= 0 {
			c.Sinks[i].Retries = 3
		}
	}
}

func (c *Config) validate() error {
	switch c.Host.Kind {
	case "memory", "chrome":
	default:
		return fmt.Errorf("config: host.kind %q: want memory or chrome", c.Host.Kind)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook without url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}
