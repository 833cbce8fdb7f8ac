package properties

import (
	"github.com/animalet/substvars/pkg/component"
	"github.com/animalet/substvars/pkg/config"
	"github.com/animalet/substvars/pkg/subst"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Built-in source type names.
const (
	TypeMap       = "map"
	TypeYAML      = "yaml"
	TypeTOML      = "toml"
	TypeDirectory = "directory"
	TypeEnv       = "env"
	TypeVault     = "vault"
	TypeAWS       = "aws"
	TypeRedis     = "redis"
	TypeMemcached = "memcached"
	TypePostgres  = "postgres"
	TypeMongoDB   = "mongodb"
)

// Builtins returns a registry holding a constructor for every built-in source type. Each
// constructor takes the binding's config.RawConfig and returns a subst.PropertyContainer.
func Builtins() *component.Registry {
	r := component.NewRegistry()
	r.Register(TypeMap, source(func(c MapConfig) (subst.PropertyContainer, error) {
		return c.CreateClient()
	}))
	r.Register(TypeYAML, source(func(c FileConfig) (subst.PropertyContainer, error) {
		return YAMLFile(c.Path)
	}))
	r.Register(TypeTOML, source(func(c FileConfig) (subst.PropertyContainer, error) {
		return TOMLFile(c.Path)
	}))
	r.Register(TypeDirectory, source(func(c DirectoryConfig) (subst.PropertyContainer, error) {
		return c.CreateClient()
	}))
	r.Register(TypeEnv, source(func(c EnvironmentConfig) (subst.PropertyContainer, error) {
		return c.CreateClient()
	}))
	r.Register(TypeVault, source(func(c VaultConfig) (subst.PropertyContainer, error) {
		client, err := c.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewVault(client, c.Path, c.Timeout), nil
	}))
	r.Register(TypeAWS, source(func(c AWSConfig) (subst.PropertyContainer, error) {
		client, err := c.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewAWSSecrets(client, c), nil
	}))
	r.Register(TypeRedis, source(func(c RedisConfig) (subst.PropertyContainer, error) {
		pool, err := c.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewRedis(pool, c), nil
	}))
	r.Register(TypeMemcached, source(func(c MemcachedConfig) (subst.PropertyContainer, error) {
		client, err := c.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewMemcached(client, c), nil
	}))
	r.Register(TypePostgres, source(func(c PostgresConfig) (subst.PropertyContainer, error) {
		pool, err := c.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewPostgres(pool, c), nil
	}))
	r.Register(TypeMongoDB, source(func(c MongoDBConfig) (subst.PropertyContainer, error) {
		client, err := c.CreateClient()
		if err != nil {
			return nil, err
		}
		return NewMongoDB(client, c), nil
	}))
	return r
}

// source adapts a typed builder to a component.Constructor reading raw YAML configuration.
func source[C config.Validatable](build func(C) (subst.PropertyContainer, error)) component.Constructor {
	return func(param any) (any, error) {
		var raw config.RawConfig
		switch p := param.(type) {
		case nil:
		case config.RawConfig:
			raw = p
		case []byte:
			raw = p
		default:
			return nil, errors.Errorf("unsupported source parameter %T", param)
		}

		cfg, err := config.UnmarshalTo[C](raw)
		if err != nil {
			return nil, err
		}
		return build(*cfg)
	}
}

// Build instantiates bindings in order through factory and chains them into a Composite. A nil
// factory means Builtins. When any binding fails, the sources built so far are closed.
func Build(bindings []config.SourceBinding, factory component.Factory) (*Composite, error) {
	if factory == nil {
		factory = Builtins()
	}

	items := make([]subst.PropertyContainer, 0, len(bindings))
	for _, b := range bindings {
		item, err := component.Instantiate[subst.PropertyContainer](factory, b.Type, b.Config)
		if err != nil {
			if closeErr := NewComposite(items...).Close(); closeErr != nil {
				log.Warn().Err(closeErr).Msg("Failed to close property sources after a build error")
			}
			return nil, errors.Wrapf(err, "failed to build property source %q", b.Label())
		}
		log.Debug().Str("source", b.Label()).Str("type", b.Type).Msg("Property source ready")
		items = append(items, item)
	}
	return NewComposite(items...), nil
}
