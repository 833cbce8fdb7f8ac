// Package snapshot takes deep copies of values handed over by callers so that property containers
// and stores never share mutable state with the code that built them.
package snapshot

import (
	"github.com/pkg/errors"
	"github.com/tiendc/go-deepcopy"
)

// Copy returns a deep copy of *src. Slices, maps and nested pointers are copied as well.
// A nil src yields (nil, nil).
func Copy[T any](src *T) (*T, error) {
	if src == nil {
		return nil, nil
	}

	var dst T
	if err := deepcopy.Copy(&dst, &src); err != nil {
		return nil, errors.Wrapf(err, "failed to deep copy type %T", src)
	}
	return &dst, nil
}

// MustCopy is Copy for types that are always copyable, such as string maps. It panics on failure,
// which indicates a programming error rather than bad input.
func MustCopy[T any](src *T) *T {
	if src == nil {
		return nil
	}

	result, err := Copy(src)
	if err != nil {
		panic("failed to take snapshot: " + err.Error())
	}
	return result
}

// Strings returns an independent, never nil, copy of m.
func Strings(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	copied := MustCopy(&m)
	if *copied == nil {
		return map[string]string{}
	}
	return *copied
}
