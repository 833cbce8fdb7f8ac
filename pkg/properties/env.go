package properties

import (
	"os"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Environment reads process environment variables.
type Environment struct {
	prefix string
	allow  func(string) bool
}

// EnvironmentOptions tunes an Environment container.
type EnvironmentOptions struct {
	// Prefix is prepended to every key before the lookup.
	Prefix string
	// Allow, when set, must accept a key for it to be looked up. Rejected keys read as absent.
	Allow func(key string) bool
}

// NewEnvironment creates an Environment.
func NewEnvironment(opts EnvironmentOptions) *Environment {
	return &Environment{prefix: opts.Prefix, allow: opts.Allow}
}

// Property looks up Prefix+key in the process environment. Variables set to an empty string are
// present.
func (e *Environment) Property(key string) (string, bool) {
	if e.allow != nil && !e.allow(key) {
		return "", false
	}
	return os.LookupEnv(e.prefix + key)
}

// EnvironmentConfig configures an environment source. Allow lists the only keys that may be
// read; an empty list allows every key.
type EnvironmentConfig struct {
	Prefix string   `yaml:"prefix,omitempty"`
	Allow  []string `yaml:"allow,omitempty"`
}

// Validate rejects prefixes that could never name a variable.
func (c EnvironmentConfig) Validate() error {
	if strings.ContainsRune(c.Prefix, '=') {
		return errors.New("environment prefix must not contain '='")
	}
	return nil
}

// CreateClient builds the Environment container.
func (c EnvironmentConfig) CreateClient() (*Environment, error) {
	opts := EnvironmentOptions{Prefix: c.Prefix}
	if len(c.Allow) > 0 {
		allowed := slices.Clone(c.Allow)
		opts.Allow = func(key string) bool {
			return slices.Contains(allowed, key)
		}
	}
	return NewEnvironment(opts), nil
}
