// Package properties provides the property containers consulted by package subst: in-memory
// maps, the environment, YAML and TOML documents, secret directories and remote stores such as
// Vault, AWS Secrets Manager, Redis, Memcached, PostgreSQL and MongoDB.
//
// Every container answers Property(key) with the value and whether it was present. Remote
// failures never surface to the resolver: they are logged and the key reads as absent, so the
// next source in the chain gets a chance to answer.
package properties

import (
	"context"
	"time"

	"github.com/animalet/substvars/pkg/subst"
)

// DefaultTimeout bounds a single remote lookup when no timeout is configured.
const DefaultTimeout = 5 * time.Second

var (
	_ subst.PropertyContainer = (*Map)(nil)
	_ subst.PropertyContainer = (*Composite)(nil)
	_ subst.PropertyContainer = (*Environment)(nil)
	_ subst.PropertyContainer = (*Directory)(nil)
	_ subst.PropertyContainer = (*Vault)(nil)
	_ subst.PropertyContainer = (*AWSSecrets)(nil)
	_ subst.PropertyContainer = (*Redis)(nil)
	_ subst.PropertyContainer = (*Memcached)(nil)
	_ subst.PropertyContainer = (*Postgres)(nil)
	_ subst.PropertyContainer = (*MongoDB)(nil)
)

func lookupContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(context.Background(), timeout)
}
