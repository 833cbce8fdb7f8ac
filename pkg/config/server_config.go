package config

import (
	"time"

	"github.com/pkg/errors"
)

const (
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultShutdownTimeout = 10 * time.Second

	// DefaultMaxDepth bounds how deeply the server resolves values found for placeholders.
	DefaultMaxDepth = 64
)

// ServerConfig holds the HTTP server parameters.
type ServerConfig struct {
	Address               string        `yaml:"address"`
	Debug                 bool          `yaml:"debug,omitempty"`
	ReadTimeout           time.Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout          time.Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout       time.Duration `yaml:"shutdown_timeout,omitempty"`
	ContentSecurityPolicy string        `yaml:"content_security_policy,omitempty"`
	// MaxDepth limits recursion into found values so a self-referencing request fails instead of
	// exhausting the stack. Zero selects DefaultMaxDepth.
	MaxDepth              int           `yaml:"max_depth,omitempty"`
}

// Validate checks if the ServerConfig has all required fields set.
func (c ServerConfig) Validate() error {
	if c.Address == "" {
		return errors.New("address must be set and non-empty")
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.ShutdownTimeout < 0 {
		return errors.New("timeouts must not be negative")
	}
	if c.MaxDepth < 0 {
		return errors.New("max_depth must not be negative")
	}
	return nil
}

// WithDefaults returns a copy with zero timeouts and depth replaced by their defaults.
func (c ServerConfig) WithDefaults() ServerConfig {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	if c.MaxDepth == 0 {
		c.MaxDepth = DefaultMaxDepth
	}
	return c
}
