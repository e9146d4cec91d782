package fs

import (
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.nozem.dev/nozem/internal/core/domain"
)

// SelectMatching narrows a FileSet to the relative paths matched by an
// include-pattern list (spec.md §3/§8: an extract unit's artifact is "the
// subset matching a glob pattern list"). Unlike the ignore matcher, a
// pattern here means "keep", not "exclude" — the same glob-to-regex engine
// is reused with the keep/drop sense inverted by the caller. A pattern
// ending in "/" names directories only and never selects a file by itself.
func SelectMatching(fs *domain.FileSet, patterns []string) *domain.FileSet {
	filePatterns := make([]string, 0, len(patterns))
	for _, p := range patterns {
		if !strings.HasSuffix(p, "/") {
			filePatterns = append(filePatterns, p)
		}
	}
	matcher := gitignore.CompileIgnoreLines(filePatterns...)
	return fs.Filter(func(relPath string) bool {
		return matcher.MatchesPath(relPath)
	})
}
