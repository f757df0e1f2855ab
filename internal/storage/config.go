// Manages the engine configuration stored in a YAML file.

// Package storage holds the configuration and value types shared by the wiki
// storage layers.
package storage

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the wikistore configuration.
// Loaded from a YAML file, defaults are used when the file is missing.
type Config struct {
	// StoreDir is the directory holding the pages.
	StoreDir string `yaml:"store_dir"`

	// Watch enables watching StoreDir for changes made outside the engine.
	Watch bool `yaml:"watch"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// Search tunes content and title search.
	Search SearchConfig `yaml:"search"`
}

// SearchConfig tunes search.
type SearchConfig struct {
	// Workers is the number of pages read concurrently during content search
	// and page enumeration.
	Workers int `yaml:"workers"`

	// RatePerSec limits content searches per second. 0 means unlimited.
	RatePerSec float64 `yaml:"rate_per_sec"`

	// Burst is the token bucket size when RatePerSec is set.
	Burst int `yaml:"burst"`
}

// Validate checks that search values are usable.
func (s *SearchConfig) Validate() error {
	if s.Workers < 1 {
		return errors.New("workers must be positive")
	}
	if s.RatePerSec < 0 {
		return errors.New("rate_per_sec must be non-negative")
	}
	if s.RatePerSec > 0 && s.Burst < 1 {
		return errors.New("burst must be positive when rate_per_sec is set")
	}
	return nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		StoreDir: "./wiki",
		LogLevel: "info",
		Search: SearchConfig{
			Workers: 8,
			Burst:   1,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.StoreDir == "" {
		return errors.New("store_dir is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level: %q", c.LogLevel)
	}
	if err := c.Search.Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return nil
}

// LoadConfig loads configuration from path.
// Fields absent from the file keep their default value. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is provided by the CLI user
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // G306: config holds no secrets
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
