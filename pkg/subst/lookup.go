package subst

import (
	"os"

	"github.com/animalet/substvars/pkg/sysprops"
	"github.com/pkg/errors"
)

// Lookup consults the source chain for key: primary, secondary (skipped when nil), system
// properties, environment. The first present value wins. A source that panics is treated as not
// holding the key, Lookup itself never fails.
func (r *Resolver) Lookup(key string, primary, secondary PropertyContainer) (string, bool) {
	for _, source := range []struct {
		name      string
		container PropertyContainer
	}{
		{"primary", primary},
		{"secondary", secondary},
		{"system", r.system},
		{"environment", r.env},
	} {
		if source.container == nil {
			continue
		}
		if value, ok := r.safeProperty(source.name, source.container, key); ok {
			return value, true
		}
	}
	return "", false
}

// PropertyLookup runs Lookup on the default resolver.
func PropertyLookup(key string, primary, secondary PropertyContainer) (string, bool) {
	return defaultResolver.Lookup(key, primary, secondary)
}

func (r *Resolver) safeProperty(source string, pc PropertyContainer, key string) (value string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log().Warn().
				Err(errors.Errorf("%v", rec)).
				Str("source", source).
				Str("key", key).
				Msg("Property source failed, treating key as absent")
			value, ok = "", false
		}
	}()
	return pc.Property(key)
}

func defaultSystemProperties() PropertyContainer {
	return sysprops.Default
}

func defaultEnvironment() PropertyContainer {
	return PropertyFunc(os.LookupEnv)
}
