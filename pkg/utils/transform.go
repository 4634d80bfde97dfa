package utils

import (
	"strings"
)

func Dedup(in []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, e := range in {
		e = strings.TrimRight(e, "/")
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// DedupLower lowercases before deduplicating. EVM addresses arrive in mixed
// checksum casing but every cache in this system keys them lowercase.
func DedupLower(in []string) []string {
	lowered := make([]string, 0, len(in))
	for _, e := range in {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(e)))
	}
	return Dedup(lowered)
}
