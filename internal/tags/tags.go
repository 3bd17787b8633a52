// Package tags normalizes user supplied file tags.
package tags

import (
	"sort"
	"strings"
)

// MaxPerFile is the most tags a single file may carry.
const MaxPerFile = 5

// Normalize lower-cases tags and drops case-only duplicates. The result is
// sorted and never nil.
func Normalize(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		lt := strings.ToLower(t)
		if _, ok := seen[lt]; ok {
			continue
		}
		seen[lt] = struct{}{}
		out = append(out, lt)
	}
	sort.Strings(out)
	return out
}

// Split accepts both repeated (tags=a&tags=b) and comma separated (tags=a,b)
// query values.
func Split(raw []string) []string {
	var out []string
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}

// CountDistinct counts tags that differ byte for byte. Case variants count
// separately, so the per-file limit applies before Normalize merges them.
func CountDistinct(tags []string) int {
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		seen[t] = struct{}{}
	}
	return len(seen)
}
