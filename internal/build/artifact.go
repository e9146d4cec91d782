package build

import (
	"strings"

	"go.nozem.dev/nozem/internal/core/domain"
)

// artifactExcludePatterns is the gitignore-style pattern list applied when
// snapshotting a unit's build output: its own declared NonArtifacts, plus
// node_modules (never part of a downstream consumer's input) and
// TypeScript's incremental-build cache files, which are non-deterministic
// byte-for-byte and would otherwise poison every consumer's input hash.
func artifactExcludePatterns(unit domain.Unit) []string {
	return append(append([]string{}, unit.NonArtifacts...), "node_modules/", "*.tsbuildinfo")
}

// transformMonoRepoArtifact strips a built package's own tsconfig.json and
// any .ts source file that has a sibling .d.ts (spec.md §9): once a
// TypeScript build has emitted declarations, the source files themselves
// are implementation detail a downstream package's import resolution never
// reads, and dropping them keeps a consumer's input hash from changing on
// an internal refactor that doesn't touch any .d.ts.
func transformMonoRepoArtifact(files *domain.FileSet) *domain.FileSet {
	declared := make(map[string]struct{})
	for _, path := range files.Paths() {
		if strings.HasSuffix(path, ".d.ts") {
			declared[strings.TrimSuffix(path, ".d.ts")+".ts"] = struct{}{}
		}
	}

	return files.Filter(func(relPath string) bool {
		if relPath == "tsconfig.json" {
			return false
		}
		if _, shadowed := declared[relPath]; shadowed {
			return false
		}
		return true
	})
}
