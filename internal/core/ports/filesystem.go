package ports

import "go.nozem.dev/nozem/internal/core/domain"

// SourceWalker walks a unit's Root, applying its NonSources ignore patterns
// (spec.md §4.2/§8 gitignore-style matching) plus the always-excluded
// .nzm-* sidecar directories and node_modules, hashing every surviving
// regular file and symlink, and returns the resulting FileSet rooted at
// root.
//
//go:generate go run go.uber.org/mock/mockgen -source=filesystem.go -destination=mocks/mock_filesystem.go -package=mocks
type SourceWalker interface {
	Walk(root string, ignorePatterns []string) (*domain.FileSet, error)
}
