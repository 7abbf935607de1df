// Package strings normalizes list-valued settings.
package strings

import (
	"strings"
)

// Normalize trims every entry and drops empty and repeated ones, keeping
// first-seen order. A nil or empty input is returned as is.
func Normalize(values []string) []string {
	return normalize(values, strings.TrimSpace)
}

// NormalizeLower is Normalize with case folding, for names compared
// case-insensitively.
func NormalizeLower(values []string) []string {
	return normalize(values, func(v string) string {
		return strings.ToLower(strings.TrimSpace(v))
	})
}

func normalize(values []string, canon func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = canon(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
