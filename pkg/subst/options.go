package subst

import "github.com/rs/zerolog"

// Option configures a Resolver.
type Option func(*Resolver)

// WithSystemProperties replaces the process-wide system properties source. Passing nil removes the
// source from the chain.
func WithSystemProperties(pc PropertyContainer) Option {
	return func(r *Resolver) {
		r.system = pc
	}
}

// WithEnvironment replaces the OS environment source. Passing nil removes the source from the chain.
func WithEnvironment(pc PropertyContainer) Option {
	return func(r *Resolver) {
		r.env = pc
	}
}

// WithMaxDepth bounds how many times found values are resolved again. Once exceeded, Resolve fails
// with a *RecursionDepthError instead of recursing forever on self-referencing keys.
// Zero or a negative value means no limit, which is the default.
func WithMaxDepth(depth int) Option {
	return func(r *Resolver) {
		r.maxDepth = depth
	}
}

// WithLogger sets the logger used for debug and warning output.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) {
		r.logger = &logger
	}
}
