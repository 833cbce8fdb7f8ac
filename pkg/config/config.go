// Package config loads the YAML file that describes which property sources feed the resolver,
// which system properties are seeded at startup and how the HTTP server listens.
//
// String fields are expanded with placeholder substitution when they are loaded, so a source can
// take its credentials from the environment:
//
//	secondary:
//	  - type: vault
//	    config:
//	      address: "${VAULT_ADDR:-http://localhost:8200}"
//	      token: "${VAULT_TOKEN}"
//	      path: secret/data/app
package config

import (
	"os"
	"strings"

	"github.com/animalet/substvars/internal/expansion"
	"github.com/animalet/substvars/pkg/subst"
	"github.com/animalet/substvars/pkg/sysprops"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type (
	// Config is the root of the configuration file.
	Config struct {
		SystemProperties map[string]string `yaml:"system_properties,omitempty"`
		Primary          []SourceBinding   `yaml:"primary,omitempty"`
		Secondary        []SourceBinding   `yaml:"secondary,omitempty"`
		Server           *ServerConfig     `yaml:"server,omitempty"`
		Other            map[string]any    `yaml:",inline"`
	}

	// SourceBinding names a property source type and carries its raw configuration, which is only
	// decoded once the type is known.
	SourceBinding struct {
		Type   string    `yaml:"type"`
		Name   string    `yaml:"name,omitempty"`
		Config RawConfig `yaml:"config"`
	}

	// RawConfig holds a YAML fragment as bytes.
	RawConfig []byte
)

type Validatable interface {
	Validate() error
}

// ClientFactory is implemented by configurations that can build a client for a backing store
// such as Vault, Redis or a database.
// The type parameter T is the concrete client type.
//
// Example implementations:
//   - properties.VaultConfig implements ClientFactory[*api.Client]
//   - properties.RedisConfig implements ClientFactory[*redis.Pool]
type ClientFactory[T any] interface {
	Validatable
	// CreateClient creates and configures a client from the config details.
	CreateClient() (T, error)
}

// Label returns the binding name, or its type when unnamed.
func (b SourceBinding) Label() string {
	if b.Name != "" {
		return b.Name
	}
	return b.Type
}

// Validate checks that the binding names a type.
func (b SourceBinding) Validate() error {
	if strings.TrimSpace(b.Type) == "" {
		return errors.New("source type must be set and non-empty")
	}
	return nil
}

// Load expands the system properties and validates the source bindings. The source
// configurations are expanded when they are decoded with UnmarshalTo and the server section by
// ResolveServer, so both can reference system properties applied after Load.
func (cfg *Config) Load() error {
	if err := expansion.Expand(&cfg.SystemProperties, expand); err != nil {
		return errors.Wrap(err, "system properties could not be expanded")
	}

	for i, b := range cfg.Primary {
		if err := b.Validate(); err != nil {
			return errors.Wrapf(err, "primary source %d is invalid", i)
		}
	}
	for i, b := range cfg.Secondary {
		if err := b.Validate(); err != nil {
			return errors.Wrapf(err, "secondary source %d is invalid", i)
		}
	}
	return nil
}

// ResolveServer returns an expanded copy of the server section, or nil when the file has none.
// Call it once the system properties are in place.
func (cfg *Config) ResolveServer() (*ServerConfig, error) {
	if cfg.Server == nil {
		return nil, nil
	}

	server := *cfg.Server
	if err := expansion.Expand(&server, expand); err != nil {
		return nil, errors.Wrap(err, "server configuration could not be expanded")
	}
	if err := server.Validate(); err != nil {
		return nil, errors.Wrap(err, "server configuration is invalid")
	}
	return &server, nil
}

// ApplySystemProperties copies the configured system properties into store.
func (cfg *Config) ApplySystemProperties(store *sysprops.Store) error {
	if len(cfg.SystemProperties) == 0 {
		return nil
	}
	return errors.Wrap(store.SetAll(cfg.SystemProperties), "system properties could not be applied")
}

// ReadConfig reads the YAML configuration file without expanding it.
func ReadConfig(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading configuration file %q", file)
	}
	return Parse(data)
}

// Parse decodes a configuration document without expanding it.
func Parse(data []byte) (*Config, error) {
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		return nil, errors.Wrap(err, "error parsing configuration")
	}
	return out, nil
}

// NewConfig reads and loads file.
func NewConfig(file string) (*Config, error) {
	cfg, err := ReadConfig(file)
	if err != nil {
		return nil, err
	}
	if err = cfg.Load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Get decodes the extra top-level section named key.
func Get[T Validatable](cfg *Config, key string) (*T, error) {
	c, exist := cfg.Other[key]
	if !exist {
		return nil, errors.Errorf("no configuration found for %q", key)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrap(err, "error marshalling to YAML")
	}
	return UnmarshalTo[T](data)
}

// UnmarshalYAML keeps the node as raw YAML bytes.
func (c *RawConfig) UnmarshalYAML(value *yaml.Node) error {
	out, err := yaml.Marshal(value)
	if err != nil {
		return err
	}
	*c = out
	return nil
}

// UnmarshalTo decodes c into a new T, expands its string fields and validates it.
// A nil RawConfig decodes to the zero T, which must still validate.
func UnmarshalTo[T Validatable](c RawConfig) (*T, error) {
	var result T
	if c != nil {
		if err := yaml.Unmarshal(c, &result); err != nil {
			return nil, errors.Wrap(err, "error decoding configuration")
		}
	}

	if err := expansion.Expand(&result, expand); err != nil {
		return nil, err
	}

	if err := result.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration is invalid")
	}
	return &result, nil
}

// expand resolves placeholders against the system properties and the environment. Unlike plain
// substitution, a key left undefined fails the load instead of leaking a sentinel into a setting.
func expand(s string) (string, error) {
	res, err := subst.Default().ResolveDetailed(s, nil, nil)
	if err != nil {
		return "", err
	}
	if len(res.Undefined) > 0 {
		return "", errors.Errorf("undefined property %q", res.Undefined[0])
	}
	return res.Value, nil
}
