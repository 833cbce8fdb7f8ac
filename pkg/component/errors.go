package component

import (
	"fmt"
	"reflect"

	"github.com/pkg/errors"
)

var (
	// ErrUnknownType matches *UnknownTypeError.
	ErrUnknownType = errors.New("unknown component type")
	// ErrInstantiation matches *InstantiationError.
	ErrInstantiation = errors.New("failed to instantiate component")
	// ErrIncompatibleType matches *IncompatibleTypeError.
	ErrIncompatibleType = errors.New("incompatible component type")
)

// UnknownTypeError reports a type name with no registered constructor.
type UnknownTypeError struct {
	TypeName string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("no constructor registered for type %q", e.TypeName)
}

func (e *UnknownTypeError) Is(target error) bool { return target == ErrUnknownType }

// InstantiationError reports a constructor that failed.
type InstantiationError struct {
	TypeName string
	Cause    error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("failed to instantiate type %q: %v", e.TypeName, e.Cause)
}

func (e *InstantiationError) Is(target error) bool { return target == ErrInstantiation }

func (e *InstantiationError) Unwrap() error { return e.Cause }

// IncompatibleTypeError reports an instance that does not satisfy the requested type.
type IncompatibleTypeError struct {
	TypeName string
	Expected string
	Actual   string
}

func (e *IncompatibleTypeError) Error() string {
	return fmt.Sprintf("type %q produced %s, which is not assignable to %s", e.TypeName, e.Actual, e.Expected)
}

func (e *IncompatibleTypeError) Is(target error) bool { return target == ErrIncompatibleType }

func typeNameOf[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

func typeOf(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
