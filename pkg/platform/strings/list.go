// Package strings holds small string helpers shared by request parsers.
package strings

import (
	"strings"
)

// SplitList splits a comma separated query value into lowercased, trimmed,
// unique elements. Empty elements are dropped and order is preserved.
//
//	SplitList(" Present,late,,PRESENT ") // []string{"present", "late"}
func SplitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	seen := make(map[string]struct{}, len(parts))
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		v := strings.ToLower(strings.TrimSpace(p))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		result = append(result, v)
	}
	return result
}
