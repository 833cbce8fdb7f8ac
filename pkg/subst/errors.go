package subst

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrMalformedReference matches every *MalformedReferenceError through errors.Is.
	ErrMalformedReference = errors.New("malformed property reference")

	// ErrRecursionDepth matches every *RecursionDepthError through errors.Is.
	ErrRecursionDepth = errors.New("property resolution too deep")
)

// MalformedReferenceError reports a "${" with no closing "}" after it.
type MalformedReferenceError struct {
	Value    string
	Position int
}

func (e *MalformedReferenceError) Error() string {
	return fmt.Sprintf("%q has no closing brace. Opening brace at position %d.", e.Value, e.Position)
}

func (e *MalformedReferenceError) Is(target error) bool {
	return target == ErrMalformedReference
}

// RecursionDepthError is returned by resolvers built with WithMaxDepth when a value keeps expanding
// into further placeholders, typically because keys reference each other.
type RecursionDepthError struct {
	Value    string
	MaxDepth int
}

func (e *RecursionDepthError) Error() string {
	return fmt.Sprintf("resolution of %q exceeded the maximum depth of %d", e.Value, e.MaxDepth)
}

func (e *RecursionDepthError) Is(target error) bool {
	return target == ErrRecursionDepth
}
