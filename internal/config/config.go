// Package config holds server configuration resolved from defaults,
// environment variables and flags, in that order.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// VIGIL_HTTP_ADDR
const EnvPrefix = "VIGIL"

// Config holds server configuration
type Config struct {
	// Server settings
	HTTPAddr string `default:":8080" envconfig:"http_addr"`

	// Directory containing monitoring YAML documents
	ConfigDir string `default:"config" envconfig:"config_dir"`

	// SQLite history database path; empty disables persistence
	DBPath string `envconfig:"db_path"`

	// Operational settings
	LogLevel        string        `default:"info" envconfig:"log_level"`
	Pretty          bool          `envconfig:"pretty"`
	ShutdownTimeout time.Duration `default:"30s" split_words:"true"`
}

// FromEnv returns the default configuration with environment overrides
// applied
func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("http address is required")
	}

	if c.ConfigDir == "" {
		return fmt.Errorf("config directory is required")
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be positive")
	}

	return nil
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		HTTPAddr:        ":8080",
		ConfigDir:       "config",
		LogLevel:        "info",
		ShutdownTimeout: 30 * time.Second,
	}
}
