// Package expansion walks configuration structs and rewrites every settable string they contain.
// It is used to run placeholder substitution over freshly decoded configuration.
package expansion

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/pkg/errors"
)

// Func rewrites a single string value.
type Func func(string) (string, error)

// Expand applies fn to every settable string reachable from target: struct fields, pointers,
// slice and array elements and map values. target must be a pointer; a nil pointer is a no-op.
// Struct fields tagged `expand:"-"` are left untouched, along with everything below them.
// The walk stops at the first error, which is wrapped with the path of the offending field.
func Expand(target any, fn Func) error {
	if target == nil {
		return nil
	}

	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr {
		return errors.Errorf("expansion target must be a pointer, got %T", target)
	}
	if v.IsNil() {
		return nil
	}
	return expandValue(v.Elem(), "", fn)
}

func expandValue(val reflect.Value, path string, fn Func) error {
	switch val.Kind() {
	case reflect.String:
		if !val.CanSet() {
			return nil
		}
		expanded, err := fn(val.String())
		if err != nil {
			return errors.Wrapf(err, "error expanding %s", describe(path))
		}
		val.SetString(expanded)

	case reflect.Struct:
		t := val.Type()
		for i := 0; i < val.NumField(); i++ {
			if !t.Field(i).IsExported() || t.Field(i).Tag.Get("expand") == "-" {
				continue
			}
			if err := expandValue(val.Field(i), join(path, t.Field(i).Name), fn); err != nil {
				return err
			}
		}

	case reflect.Ptr, reflect.Interface:
		if val.IsNil() {
			return nil
		}
		elem := val.Elem()
		if val.Kind() == reflect.Interface {
			// interface contents are not addressable, expand a copy and store it back
			cp := reflect.New(elem.Type()).Elem()
			cp.Set(elem)
			if err := expandValue(cp, path, fn); err != nil {
				return err
			}
			if val.CanSet() {
				val.Set(cp)
			}
			return nil
		}
		return expandValue(elem, path, fn)

	case reflect.Slice, reflect.Array:
		for j := 0; j < val.Len(); j++ {
			if err := expandValue(val.Index(j), join(path, "["+strconv.Itoa(j)+"]"), fn); err != nil {
				return err
			}
		}

	case reflect.Map:
		for _, key := range val.MapKeys() {
			mapVal := val.MapIndex(key)
			newVal := reflect.New(mapVal.Type()).Elem()
			newVal.Set(mapVal)
			if err := expandValue(newVal, join(path, fmt.Sprint(key.Interface())), fn); err != nil {
				return err
			}
			val.SetMapIndex(key, newVal)
		}

	default:
		// nothing to expand
	}
	return nil
}

func describe(path string) string {
	if path == "" {
		return "value"
	}
	return "field " + path
}

func join(path, elem string) string {
	if path == "" {
		return elem
	}
	if elem != "" && elem[0] == '[' {
		return path + elem
	}
	return path + "." + elem
}
