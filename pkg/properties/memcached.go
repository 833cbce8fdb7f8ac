package properties

import (
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// MemcachedConfig holds configuration for a Memcached property source.
type MemcachedConfig struct {
	// Servers is a list of Memcached server addresses (host:port)
	// Example: ["localhost:11211", "localhost:11212"]
	Servers []string `yaml:"servers"`

	// Timeout for Memcached operations
	// Default: 100ms if not specified
	Timeout time.Duration `yaml:"timeout"`

	// MaxIdleConns is the maximum number of idle connections per server
	// Default: 2 if not specified
	MaxIdleConns int `yaml:"max_idle_conns"`

	// KeyPrefix is prepended to every property key
	KeyPrefix string `yaml:"key_prefix,omitempty"`
}

// Validate checks if the MemcachedConfig has all required fields set
func (m MemcachedConfig) Validate() error {
	if len(m.Servers) == 0 {
		return errors.New("at least one Memcached server address is required")
	}
	for i, server := range m.Servers {
		if server == "" {
			return errors.Errorf("server address at index %d is empty", i)
		}
	}
	if m.Timeout < 0 {
		return errors.New("timeout cannot be negative")
	}
	if m.MaxIdleConns < 0 {
		return errors.New("max_idle_conns cannot be negative")
	}
	return nil
}

// CreateClient creates and configures a Memcached client from this config and pings it.
// Implements the config.ClientFactory[*memcache.Client] interface.
func (m MemcachedConfig) CreateClient() (*memcache.Client, error) {
	client := memcache.New(m.Servers...)

	if m.Timeout > 0 {
		client.Timeout = m.Timeout
	} else {
		client.Timeout = 100 * time.Millisecond
	}

	if m.MaxIdleConns > 0 {
		client.MaxIdleConns = m.MaxIdleConns
	} else {
		client.MaxIdleConns = 2
	}

	if err := client.Ping(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Memcached")
	}
	return client, nil
}

// ItemGetter is the part of *memcache.Client used by Memcached.
type ItemGetter interface {
	Get(key string) (*memcache.Item, error)
}

// Memcached reads properties from Memcached items.
type Memcached struct {
	client    ItemGetter
	keyPrefix string
}

// NewMemcached reads items through client, prepending cfg.KeyPrefix to every key.
func NewMemcached(client ItemGetter, cfg MemcachedConfig) *Memcached {
	return &Memcached{client: client, keyPrefix: cfg.KeyPrefix}
}

// Property returns the item value for key. Cache misses and server errors read as absent.
func (m *Memcached) Property(key string) (string, bool) {
	item, err := m.client.Get(m.keyPrefix + key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Memcached property lookup failed")
		return "", false
	}
	log.Debug().Str("key", key).Msg("Retrieved property from Memcached")
	return string(item.Value), true
}

// Close closes the underlying client when it supports closing.
func (m *Memcached) Close() error {
	if closer, ok := m.client.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
