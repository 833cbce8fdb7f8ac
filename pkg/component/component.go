// Package component creates instances from type names through registered constructors.
//
// A Registry maps type names such as "redis" or "yaml" to constructors. Factories can be chained
// with Fallback so that an application specific registry is tried first and a built-in one is
// used for any type it does not know. Instantiate adds a type check on the produced instance.
package component

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Constructor builds a new instance. param carries construction input, typically raw
// configuration, and may be nil.
type Constructor func(param any) (any, error)

// Factory creates instances by type name.
type Factory interface {
	CreateInstance(typeName string, param any) (any, error)
}

// Registry is a thread-safe Factory backed by registered constructors.
type Registry struct {
	mu           sync.RWMutex
	constructors map[string]Constructor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{constructors: make(map[string]Constructor)}
}

// Register associates typeName with constructor, replacing any previous registration.
func (r *Registry) Register(typeName string, constructor Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[typeName]; exists {
		log.Warn().Msgf("Component type %q is already registered, overriding", typeName)
	}
	r.constructors[typeName] = constructor
}

// Unregister removes typeName.
func (r *Registry) Unregister(typeName string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.constructors, typeName)
}

// Types lists the registered type names in lexical order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.constructors))
	for typeName := range r.constructors {
		types = append(types, typeName)
	}
	sort.Strings(types)
	return types
}

// CreateInstance runs the constructor registered for typeName. Unknown types yield an
// *UnknownTypeError; constructor failures, panics and nil results yield an *InstantiationError.
func (r *Registry) CreateInstance(typeName string, param any) (instance any, err error) {
	r.mu.RLock()
	constructor, exists := r.constructors[typeName]
	r.mu.RUnlock()

	if !exists {
		return nil, &UnknownTypeError{TypeName: typeName}
	}

	defer func() {
		if rec := recover(); rec != nil {
			instance = nil
			err = &InstantiationError{TypeName: typeName, Cause: errors.Errorf("panic: %v", rec)}
		}
	}()

	instance, err = constructor(param)
	if err != nil {
		return nil, &InstantiationError{TypeName: typeName, Cause: err}
	}
	if instance == nil {
		return nil, &InstantiationError{TypeName: typeName, Cause: errors.New("constructor returned nil")}
	}
	return instance, nil
}

type fallbackFactory struct {
	primary  Factory
	fallback Factory
}

// Fallback returns a Factory that asks primary first and falls back to fallback only when primary
// does not know the type. Any other primary failure is returned as is. A nil primary means the
// fallback is used directly.
func Fallback(primary, fallback Factory) Factory {
	if primary == nil {
		return fallback
	}
	return &fallbackFactory{primary: primary, fallback: fallback}
}

func (f *fallbackFactory) CreateInstance(typeName string, param any) (any, error) {
	instance, err := f.primary.CreateInstance(typeName, param)
	if err == nil || !errors.Is(err, ErrUnknownType) || f.fallback == nil {
		return instance, err
	}
	log.Debug().Str("type", typeName).Msg("Type unknown to primary factory, trying fallback")
	return f.fallback.CreateInstance(typeName, param)
}

// Instantiate creates typeName through f and checks that the result is a T.
func Instantiate[T any](f Factory, typeName string, param any) (T, error) {
	var zero T
	if f == nil {
		return zero, errors.New("no component factory configured")
	}

	instance, err := f.CreateInstance(typeName, param)
	if err != nil {
		return zero, err
	}
	if instance == nil {
		return zero, &InstantiationError{TypeName: typeName, Cause: errors.New("factory returned a nil instance")}
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, &IncompatibleTypeError{TypeName: typeName, Expected: typeNameOf[T](), Actual: typeOf(instance)}
	}
	return typed, nil
}
