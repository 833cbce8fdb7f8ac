package properties

import (
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RedisConfig holds configuration options for a Redis property source.
// With Hash set, properties are fields of that hash; otherwise each property is a string key,
// optionally prefixed with KeyPrefix.
type RedisConfig struct {
	Address     string        `yaml:"address"`
	Username    string        `yaml:"username,omitempty"`
	Password    string        `yaml:"password,omitempty"`
	Database    int           `yaml:"database,omitempty"`
	MaxIdle     int           `yaml:"max_idle"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	TLS         *TLSConfig    `yaml:"tls,omitempty"`
	Hash        string        `yaml:"hash,omitempty"`
	KeyPrefix   string        `yaml:"key_prefix,omitempty"`
}

// Validate checks the address, the TLS settings and that Hash and KeyPrefix are not combined.
func (r RedisConfig) Validate() error {
	if r.Address == "" {
		return errors.New("redis address must be set and non-empty")
	}
	if r.MaxIdle < 0 {
		return errors.New("redis max_idle must be non-negative")
	}
	if r.IdleTimeout < 0 {
		return errors.New("redis idle_timeout must be non-negative")
	}
	if r.Timeout < 0 {
		return errors.New("redis timeout must be non-negative")
	}
	if r.Database < 0 {
		return errors.New("redis database must be non-negative")
	}
	if r.Hash != "" && r.KeyPrefix != "" {
		return errors.New("redis hash and key_prefix are mutually exclusive")
	}
	return r.TLS.Validate()
}

// CreateClient creates and configures a Redis connection pool from this config.
// Implements the config.ClientFactory[*redis.Pool] interface.
func (r RedisConfig) CreateClient() (*redis.Pool, error) {
	if err := r.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid Redis configuration")
	}
	return &redis.Pool{
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
		MaxIdle:     r.MaxIdle,
		IdleTimeout: r.IdleTimeout,
		Dial: func() (redis.Conn, error) {
			return r.dial()
		},
	}, nil
}

func (r RedisConfig) dial() (redis.Conn, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	opts := []redis.DialOption{
		redis.DialDatabase(r.Database),
		redis.DialConnectTimeout(timeout),
		redis.DialReadTimeout(timeout),
		redis.DialWriteTimeout(timeout),
	}
	if r.Username != "" {
		opts = append(opts, redis.DialUsername(r.Username))
	}
	if r.Password != "" {
		opts = append(opts, redis.DialPassword(r.Password))
	}

	if r.TLS != nil {
		tlsConfig, err := r.TLS.Build()
		if err != nil {
			return nil, err
		}
		opts = append(opts, redis.DialTLSConfig(tlsConfig), redis.DialUseTLS(true))
	}
	return redis.Dial("tcp", r.Address, opts...)
}

// ConnGetter hands out Redis connections; *redis.Pool implements it.
type ConnGetter interface {
	Get() redis.Conn
}

// Redis reads properties from a Redis server.
type Redis struct {
	pool      ConnGetter
	hash      string
	keyPrefix string
}

// NewRedis reads through pool. With cfg.Hash set keys are fields of that hash, otherwise they are
// plain string keys prefixed with cfg.KeyPrefix.
func NewRedis(pool ConnGetter, cfg RedisConfig) *Redis {
	return &Redis{pool: pool, hash: cfg.Hash, keyPrefix: cfg.KeyPrefix}
}

// Property runs HGET or GET for key. A nil reply reads as absent.
func (r *Redis) Property(key string) (string, bool) {
	conn := r.pool.Get()
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to release Redis connection")
		}
	}()

	var (
		value string
		err   error
	)
	if r.hash != "" {
		value, err = redis.String(conn.Do("HGET", r.hash, key))
	} else {
		value, err = redis.String(conn.Do("GET", r.keyPrefix+key))
	}

	if errors.Is(err, redis.ErrNil) {
		return "", false
	}
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Redis property lookup failed")
		return "", false
	}
	log.Debug().Str("key", key).Msg("Retrieved property from Redis")
	return value, true
}

// Close closes the underlying pool when it supports closing.
func (r *Redis) Close() error {
	if closer, ok := r.pool.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}
