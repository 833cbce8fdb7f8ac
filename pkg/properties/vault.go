package properties

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/vault/api"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// VaultConfig holds configuration for connecting to HashiCorp Vault
type VaultConfig struct {
	Address   string        `yaml:"address"`
	Token     string        `yaml:"token"`
	Path      string        `yaml:"path"`
	Namespace string        `yaml:"namespace,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty"`
}

// Validate checks if the VaultConfig has all required fields set
func (v VaultConfig) Validate() error {
	if v.Address == "" {
		return errors.New("Vault address is required")
	}
	if v.Token == "" {
		return errors.New("Vault token is required")
	}
	if v.Path == "" {
		return errors.New("Vault path is required")
	}
	if v.Timeout < 0 {
		return errors.New("Vault timeout cannot be negative")
	}
	return nil
}

// CreateClient creates and configures a Vault client from this config.
// Implements the config.ClientFactory[*api.Client] interface.
func (v VaultConfig) CreateClient() (*api.Client, error) {
	if err := v.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid Vault configuration")
	}

	config := api.DefaultConfig()
	config.Address = v.Address

	client, err := api.NewClient(config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Vault client")
	}

	client.SetToken(v.Token)
	if v.Namespace != "" {
		client.SetNamespace(v.Namespace)
	}
	return client, nil
}

// VaultReader is the part of *api.Logical used by Vault.
type VaultReader interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
}

// Vault reads properties from the fields of a single Vault secret. Both KV v1 and KV v2 engines
// are supported. The secret is read on every lookup.
type Vault struct {
	reader  VaultReader
	path    string
	timeout time.Duration
}

// NewVault creates a Vault container reading path through client.
func NewVault(client *api.Client, path string, timeout time.Duration) *Vault {
	return NewVaultWithReader(client.Logical(), path, timeout)
}

// NewVaultWithReader creates a Vault container on top of any VaultReader.
func NewVaultWithReader(reader VaultReader, path string, timeout time.Duration) *Vault {
	return &Vault{reader: reader, path: path, timeout: timeout}
}

// Property reads the secret at the configured path and returns its field named key. KV v2
// responses are unwrapped from their "data" envelope.
func (v *Vault) Property(key string) (string, bool) {
	value, err := v.read(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Str("vault_path", v.path).Msg("Vault property lookup failed")
		return "", false
	}
	if value == nil {
		return "", false
	}
	log.Debug().Str("key", key).Str("vault_path", v.path).Msg("Retrieved property from Vault")
	return *value, true
}

func (v *Vault) read(key string) (*string, error) {
	ctx, cancel := lookupContext(v.timeout)
	defer cancel()

	secret, err := v.reader.ReadWithContext(ctx, v.path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read secret from Vault path %q", v.path)
	}
	if secret == nil || secret.Data == nil {
		return nil, nil
	}

	var data map[string]any
	if secret.Data["data"] != nil {
		dataMap, ok := secret.Data["data"].(map[string]any)
		if !ok {
			return nil, errors.New("unexpected data format in KV v2 secret")
		}
		data = dataMap
	} else {
		data = secret.Data
	}

	raw, ok := data[key]
	if !ok || raw == nil {
		return nil, nil
	}
	value, ok := raw.(string)
	if !ok {
		value = fmt.Sprint(raw)
	}
	return &value, nil
}

// Close is a no-op; Vault clients hold no resources that need releasing.
func (v *Vault) Close() error {
	return nil
}
