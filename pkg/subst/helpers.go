package subst

import "strings"

// ToBoolean parses "true" and "false" ignoring case and surrounding blanks. Anything else,
// including the empty string, yields def.
func ToBoolean(value string, def bool) bool {
	trimmed := strings.TrimSpace(value)
	switch {
	case strings.EqualFold(trimmed, "true"):
		return true
	case strings.EqualFold(trimmed, "false"):
		return false
	default:
		return def
	}
}

// IsEmpty reports whether s is the empty string.
func IsEmpty(s string) bool {
	return s == ""
}

// IsUndefined reports whether a resolved value still carries at least one undefined sentinel.
func IsUndefined(resolved string) bool {
	return strings.Contains(resolved, UndefinedSuffix)
}
