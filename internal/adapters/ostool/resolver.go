// Package ostool resolves a unit's os-tool dependency edges (spec.md §6's
// {"type": "os", "executable": "node"}) to an absolute path on the
// host's $PATH, caching resolutions the way the teacher's nix.Resolver
// caches NixHub lookups — except there's no remote API to call here, so
// "resolve" just means "search $PATH once, remember the answer."
package ostool

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/sync/errgroup"

	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

// resolveAllConcurrency bounds how many executables ResolveAll probes at
// once, mirroring the teacher's nix env_factory bounded worker pool for
// concurrent store-path realization.
const resolveAllConcurrency = 8

// Resolver implements ports.OsToolLocator.
type Resolver struct {
	cacheDir string
	pathEnv  string

	mu    sync.Mutex
	inMem map[string]string
}

var _ ports.OsToolLocator = (*Resolver)(nil)

type cacheEntry struct {
	Executable   string `json:"executable"`
	ResolvedPath string `json:"resolvedPath"`
}

// NewResolver creates a Resolver persisting its cache under cacheDir and
// searching the given PATH value (colon-separated, platform-native).
func NewResolver(cacheDir, pathEnv string) *Resolver {
	return &Resolver{cacheDir: cacheDir, pathEnv: pathEnv, inMem: make(map[string]string)}
}

// DefaultCacheDir returns $HOME/.cache/nozem/ostool, falling back to a
// relative path if $HOME can't be resolved.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".cache", "nozem", "ostool")
	}
	return filepath.Join(home, ".cache", "nozem", "ostool")
}

// Locate implements ports.OsToolLocator.
func (r *Resolver) Locate(_ context.Context, executable string) (string, error) {
	if resolved, ok := r.lookupInMem(executable); ok {
		return resolved, nil
	}

	key := domain.GenerateEnvID(map[string]string{executable: ""})
	cachePath := r.cachePath(key)

	if resolved, ok := r.loadFromCache(cachePath, executable); ok {
		r.storeInMem(executable, resolved)
		return resolved, nil
	}

	resolved, err := searchPath(executable, r.pathEnv)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrOsToolNotFound, "executable not found on PATH"), "executable", executable)
	}

	if err := r.saveToCache(cachePath, executable, resolved); err != nil {
		// A cache write failure never blocks resolution; the next Locate
		// call simply re-searches $PATH.
		_ = err
	}

	r.storeInMem(executable, resolved)
	return resolved, nil
}

// ResolveAll implements ports.OsToolLocator. It deduplicates executables,
// then fans resolution out across a bounded errgroup so a unit declaring
// several os-tool edges (spec.md §6) pays for one round of $PATH walks
// instead of N sequential ones; each result lands in the same in-memory and
// on-disk cache Locate reads from, so a later Locate call for any of these
// names returns immediately.
func (r *Resolver) ResolveAll(ctx context.Context, executables []string) error {
	seen := make(map[string]struct{}, len(executables))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveAllConcurrency)

	for _, executable := range executables {
		if _, ok := seen[executable]; ok {
			continue
		}
		seen[executable] = struct{}{}
		if _, ok := r.lookupInMem(executable); ok {
			continue
		}

		executable := executable
		g.Go(func() error {
			_, err := r.Locate(gctx, executable)
			return err
		})
	}

	return g.Wait()
}

func (r *Resolver) lookupInMem(executable string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	resolved, ok := r.inMem[executable]
	return resolved, ok
}

func (r *Resolver) storeInMem(executable, resolved string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inMem[executable] = resolved
}

func (r *Resolver) cachePath(key string) string {
	return filepath.Join(r.cacheDir, key+".json")
}

func (r *Resolver) loadFromCache(path, executable string) (string, bool) {
	data, err := os.ReadFile(path) //nolint:gosec // path built from our own hashed cache key
	if err != nil {
		return "", false
	}
	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return "", false
	}
	if entry.Executable != executable {
		return "", false
	}
	if _, statErr := os.Stat(entry.ResolvedPath); statErr != nil {
		// The binary moved or disappeared since this was cached; treat as a
		// miss rather than handing back a dangling path.
		return "", false
	}
	return entry.ResolvedPath, true
}

func (r *Resolver) saveToCache(path, executable, resolved string) error {
	entry := cacheEntry{Executable: executable, ResolvedPath: resolved}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return zerr.Wrap(err, "marshal os-tool cache entry")
	}
	return atomicWriteFile(path, data)
}

func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return zerr.Wrap(err, "create os-tool cache directory")
	}

	tmp, err := os.CreateTemp(dir, ".nzm-tmp-*.json")
	if err != nil {
		return zerr.Wrap(err, "create temp os-tool cache file")
	}
	tmpName := tmp.Name()
	defer func() {
		if _, statErr := os.Stat(tmpName); statErr == nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return zerr.Wrap(err, "write temp os-tool cache file")
	}
	if err := tmp.Close(); err != nil {
		return zerr.Wrap(err, "close temp os-tool cache file")
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return zerr.Wrap(err, "chmod temp os-tool cache file")
	}
	return os.Rename(tmpName, path)
}

// searchPath looks for executable along pathEnv's directories, mirroring
// exec.LookPath but against an explicit PATH value rather than the calling
// process's own environment.
func searchPath(executable, pathEnv string) (string, error) {
	for _, dir := range filepath.SplitList(pathEnv) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, executable)
		info, err := os.Stat(candidate)
		if err != nil {
			continue
		}
		if m := info.Mode(); !m.IsDir() && m&0o111 != 0 {
			abs, err := filepath.Abs(candidate)
			if err != nil {
				return candidate, nil
			}
			return abs, nil
		}
	}
	return "", os.ErrNotExist
}
