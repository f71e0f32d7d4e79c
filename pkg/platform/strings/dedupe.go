// Package strings cleans up user-entered string lists before they reach
// the domain models.
package strings

import "strings"

// DedupeAndTrim trims every entry, drops the blanks, and removes exact
// duplicates. The first occurrence keeps its position.
func DedupeAndTrim(values []string) []string {
	return dedupe(values, func(s string) string { return s })
}

// DedupeFold is DedupeAndTrim with case-insensitive duplicate detection.
// The first spelling wins: ["Lisbon", "lisbon"] keeps "Lisbon". Destination
// lists use this so the same city entered twice with different casing does
// not count as two places.
func DedupeFold(values []string) []string {
	return dedupe(values, strings.ToLower)
}

func dedupe(values []string, key func(string) string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		k := key(trimmed)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
