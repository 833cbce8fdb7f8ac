// Package subst resolves "${key}" and "${key:-default}" placeholders in configuration values
// against a layered chain of property sources.
//
// The chain is consulted in a fixed order: the primary container, the optional secondary
// container, process-wide system properties (see package sysprops) and finally the OS
// environment. The first source holding the key wins.
//
// Values found for a placeholder are resolved again before being spliced into the output, so
// given x1=p1 and x2=${x1}, "Hello ${x2}" resolves to "Hello p1". Keys that no source knows and
// that declare no default are replaced with "<key>_IS_UNDEFINED" instead of failing the call.
//
// Example:
//
//	props := properties.NewMap(map[string]string{"host": "localhost"})
//	value, err := subst.SubstVars("http://${host}:${port:-8080}/", props)
//	// value == "http://localhost:8080/"
package subst

import (
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	delimStart    = "${"
	delimStop     = '}'
	delimStartLen = len(delimStart)
	delimStopLen  = 1

	// DefaultMarker separates the key from its default replacement inside a placeholder.
	DefaultMarker = ":-"

	// UndefinedSuffix is appended to keys that could not be resolved.
	UndefinedSuffix = "_IS_UNDEFINED"
)

// PropertyContainer is a read-only key/value lookup.
// Property reports the value stored under key and whether it was present at all; an empty value
// that is present is a valid replacement.
type PropertyContainer interface {
	Property(key string) (string, bool)
}

// PropertyFunc adapts an ordinary function to PropertyContainer.
type PropertyFunc func(key string) (string, bool)

// Property calls f(key).
func (f PropertyFunc) Property(key string) (string, bool) {
	return f(key)
}

// Resolver performs placeholder substitution. The zero value is not usable, use New.
// A Resolver holds no per-call state and may be shared between goroutines.
type Resolver struct {
	system   PropertyContainer
	env      PropertyContainer
	maxDepth int
	logger   *zerolog.Logger
}

// New creates a Resolver. Without options it reads the process-wide system properties and the OS
// environment, and recursion into found values is unbounded.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		system: defaultSystemProperties(),
		env:    defaultEnvironment(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultResolver = New()

// Default returns the Resolver used by the package-level functions.
func Default() *Resolver {
	return defaultResolver
}

// SubstVars resolves val against a single container. See SubstVarsWith.
func SubstVars(val string, pc PropertyContainer) (string, error) {
	return defaultResolver.Resolve(val, pc, nil)
}

// SubstVarsWith resolves val against primary, then secondary (may be nil), then the system
// properties and the environment.
func SubstVarsWith(val string, primary, secondary PropertyContainer) (string, error) {
	return defaultResolver.Resolve(val, primary, secondary)
}

// Resolve substitutes every placeholder in val. A "${" without a closing "}" anywhere after it
// fails the whole call with a *MalformedReferenceError and no partial output.
func (r *Resolver) Resolve(val string, primary, secondary PropertyContainer) (string, error) {
	return r.resolve(val, primary, secondary, 0, nil)
}

// Result is the outcome of ResolveDetailed.
type Result struct {
	Value string
	// Undefined lists the keys replaced by a sentinel, in the order they were met.
	Undefined []string
}

// ResolveDetailed behaves like Resolve and also reports which keys ended up undefined.
func (r *Resolver) ResolveDetailed(val string, primary, secondary PropertyContainer) (Result, error) {
	var undefined []string
	value, err := r.resolve(val, primary, secondary, 0, &undefined)
	if err != nil {
		return Result{}, err
	}
	return Result{Value: value, Undefined: undefined}, nil
}

func (r *Resolver) resolve(val string, primary, secondary PropertyContainer, depth int, undefined *[]string) (string, error) {
	if r.maxDepth > 0 && depth > r.maxDepth {
		return "", &RecursionDepthError{Value: val, MaxDepth: r.maxDepth}
	}

	var sb strings.Builder
	i := 0
	for {
		j := indexFrom(val, delimStart, i)
		if j == -1 {
			if i == 0 {
				return val, nil
			}
			sb.WriteString(val[i:])
			return sb.String(), nil
		}

		sb.WriteString(val[i:j])
		// the stop marker is searched from the start marker itself, so the first '}' wins
		k := strings.IndexByte(val[j:], delimStop)
		if k == -1 {
			return "", &MalformedReferenceError{Value: val, Position: j}
		}
		k += j

		key, defaultReplacement, hasDefault := ExtractDefaultReplacement(val[j+delimStartLen : k])

		replacement, found := r.Lookup(key, primary, secondary)
		if !found && hasDefault {
			replacement, found = defaultReplacement, true
		}

		if found {
			resolved, err := r.resolve(replacement, primary, secondary, depth+1, undefined)
			if err != nil {
				return "", err
			}
			sb.WriteString(resolved)
		} else {
			r.log().Debug().Str("key", key).Msg("Property is undefined in every source")
			if undefined != nil {
				*undefined = append(*undefined, key)
			}
			sb.WriteString(Undefined(key))
		}

		i = k + delimStopLen
	}
}

// log returns the configured logger, or the global zerolog logger at call time.
func (r *Resolver) log() *zerolog.Logger {
	if r.logger != nil {
		return r.logger
	}
	return &log.Logger
}

// ExtractDefaultReplacement splits a placeholder body on the first DefaultMarker.
// "db.host:-localhost" yields ("db.host", "localhost", true); "db.host" yields ("db.host", "", false).
// Later occurrences of the marker belong to the default: "a:-b:-c" yields ("a", "b:-c", true).
func ExtractDefaultReplacement(body string) (key string, defaultReplacement string, hasDefault bool) {
	d := strings.Index(body, DefaultMarker)
	if d == -1 {
		return body, "", false
	}
	return body[:d], body[d+len(DefaultMarker):], true
}

// Undefined returns the sentinel written in place of an unresolvable key.
func Undefined(key string) string {
	return key + UndefinedSuffix
}

func indexFrom(s, substr string, from int) int {
	if from >= len(s) {
		return -1
	}
	idx := strings.Index(s[from:], substr)
	if idx == -1 {
		return -1
	}
	return idx + from
}
