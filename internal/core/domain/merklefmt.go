package domain

import "strings"

// FormatDifferences renders a MerkleDifference list as the single-line
// diagnostic a cache-miss report shows the user: one comma-separated
// "kind:path" entry per difference, sorted the way Compare already produced
// them (by path). An empty list renders as "no differences".
func FormatDifferences(diffs []MerkleDifference) string {
	if len(diffs) == 0 {
		return "no differences"
	}
	parts := make([]string, len(diffs))
	for i, d := range diffs {
		path := d.Path
		if path == "" {
			path = "<root>"
		}
		parts[i] = string(d.Kind) + ":" + path
	}
	return strings.Join(parts, ", ")
}
