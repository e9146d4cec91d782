// Package fs provides the file system adapters: a gitignore-aware source
// walker, a per-path-memoized SHA-1 content hasher, and symlink-preserving
// copy/link helpers used by the sandbox.
package fs

import (
	"crypto/sha1" //nolint:gosec // spec mandates SHA-1 as the canonical content-hash algorithm
	"encoding/hex"
	"io"
	"os"
	"sync"

	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ContentHasher = (*Hasher)(nil)

// Hasher computes SHA-1 content hashes for files and symlinks, memoizing by
// absolute path so a file reachable through multiple unit roots is only
// read once per process (spec.md §4.2).
type Hasher struct {
	mu    sync.Mutex
	cache map[string]string
}

// NewHasher creates an empty Hasher.
func NewHasher() *Hasher {
	return &Hasher{cache: make(map[string]string)}
}

// HashFile returns the lowercase-hex SHA-1 of a regular file's content.
func (h *Hasher) HashFile(absPath string) (string, error) {
	if hash, ok := h.lookup(absPath); ok {
		return hash, nil
	}

	f, err := os.Open(absPath) //nolint:gosec // path is controlled by the walker, not user input
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to open file"), "path", absPath)
	}
	defer f.Close() //nolint:errcheck // best-effort close on a read handle

	digest := sha1.New() //nolint:gosec // spec mandates SHA-1
	if _, err := io.Copy(digest, f); err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", absPath)
	}

	hash := hex.EncodeToString(digest.Sum(nil))
	h.store(absPath, hash)
	return hash, nil
}

// HashSymlink returns the lowercase-hex SHA-1 of a symlink's target string,
// so that a unit's hash reflects what the symlink points at without ever
// following it (a dangling or cyclic symlink must still be hashable).
func (h *Hasher) HashSymlink(absPath string) (string, error) {
	if hash, ok := h.lookup(absPath); ok {
		return hash, nil
	}

	target, err := os.Readlink(absPath)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to read symlink"), "path", absPath)
	}

	digest := sha1.New() //nolint:gosec // spec mandates SHA-1
	_, _ = io.WriteString(digest, target)
	hash := hex.EncodeToString(digest.Sum(nil))
	h.store(absPath, hash)
	return hash, nil
}

// Forget evicts a path from the memoization cache.
func (h *Hasher) Forget(absPath string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.cache, absPath)
}

func (h *Hasher) lookup(absPath string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	hash, ok := h.cache[absPath]
	return hash, ok
}

func (h *Hasher) store(absPath, hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cache[absPath] = hash
}
