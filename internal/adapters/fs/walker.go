package fs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.SourceWalker = (*Walker)(nil)

// alwaysExcludedDirs are pruned regardless of any unit's NonSources list:
// VCS metadata and nozem's own sidecar state. node_modules is deliberately
// NOT hardcoded here: spec.md §8's ignore-matcher cases expect it to survive
// a walk whose pattern list doesn't mention it; callers that want it gone
// (source FileSets, per §4.6) pass it in ignorePatterns themselves.
var alwaysExcludedDirs = map[string]bool{
	".git": true,
	".jj":  true,
}

func isAlwaysExcludedDir(name string) bool {
	return alwaysExcludedDirs[name] || strings.HasPrefix(name, ".nzm-")
}

// Walker walks a unit's root directory, accumulating gitignore-style
// patterns from each .gitignore encountered on the way down (outermost
// first) plus the unit's own NonSources patterns, and hashes every
// surviving regular file and symlink into a FileSet.
//
// Per-directory pattern matching is delegated to
// github.com/sabhiram/go-gitignore, one compiled matcher per directory
// level; Walker supplies the spec's directory-descent and accumulation
// semantics around it (a pattern matched against any ancestor's compiled
// set, each evaluated relative to the directory it was declared in).
type Walker struct {
	hasher *Hasher
}

// NewWalker creates a Walker backed by hasher.
func NewWalker(hasher *Hasher) *Walker {
	return &Walker{hasher: hasher}
}

type compiledLevel struct {
	dir     string // absolute directory the patterns were declared in
	matcher *gitignore.GitIgnore
}

// Walk implements ports.SourceWalker.
func (w *Walker) Walk(root string, ignorePatterns []string) (*domain.FileSet, error) {
	entries := make(map[string]string)

	rootPatterns := gitignore.CompileIgnoreLines(ignorePatterns...)
	levels := []compiledLevel{{dir: root, matcher: rootPatterns}}
	levels = appendLevelIfPresent(levels, root)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return zerr.Wrap(relErr, "failed to relativize walked path")
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if isAlwaysExcludedDir(d.Name()) {
				return filepath.SkipDir
			}
			levels = appendLevelIfPresent(levels, path)
			if matchesAnyLevel(levels, root, rel, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".nzm-") || matchesAnyLevel(levels, root, rel, false) {
			return nil
		}

		hash, hashErr := w.hashEntry(path, d)
		if hashErr != nil {
			return hashErr
		}
		entries[rel] = hash
		return nil
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to walk source tree"), "root", root)
	}

	return domain.NewFileSet(root, entries), nil
}

func (w *Walker) hashEntry(path string, d fs.DirEntry) (string, error) {
	if d.Type()&os.ModeSymlink != 0 {
		return w.hasher.HashSymlink(path)
	}
	return w.hasher.HashFile(path)
}

// appendLevelIfPresent loads dir/.gitignore, if any, into a new compiled
// level scoped to that directory.
func appendLevelIfPresent(levels []compiledLevel, dir string) []compiledLevel {
	data, err := os.ReadFile(filepath.Join(dir, ".gitignore")) //nolint:gosec // walker-controlled path
	if err != nil {
		return levels
	}
	lines := strings.Split(string(data), "\n")
	matcher := gitignore.CompileIgnoreLines(lines...)
	return append(levels, compiledLevel{dir: dir, matcher: matcher})
}

// matchesAnyLevel reports whether rel (relative to root) is ignored by any
// accumulated level, evaluating each level's patterns against the path
// relative to where that level's .gitignore was declared (spec.md §4.2: "a
// pattern containing / anywhere but at its end is only valid in the
// directory where it was found").
func matchesAnyLevel(levels []compiledLevel, root, rel string, isDir bool) bool {
	absPath := filepath.Join(root, filepath.FromSlash(rel))
	for _, level := range levels {
		levelRel, err := filepath.Rel(level.dir, absPath)
		if err != nil || strings.HasPrefix(levelRel, "..") {
			continue
		}
		levelRel = filepath.ToSlash(levelRel)
		if level.matcher.MatchesPath(levelRel) {
			return true
		}
		if isDir && level.matcher.MatchesPath(levelRel+"/") {
			return true
		}
	}
	return false
}
