package cache

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.trai.ch/zerr"
)

// FileObjectStore implements ports.ObjectStore over a plain directory tree,
// one file per key with "/" replaced by the OS separator. It exists for
// tests and for single-machine deployments that want a remote-shaped tier
// backed by a shared mount (e.g. NFS) rather than a cloud object store,
// grounded the same way the teacher's cas.Store persists its build-info
// index to a flat file rather than a database.
type FileObjectStore struct {
	root string
}

// NewFileObjectStore creates a FileObjectStore rooted at root. The
// directory is created lazily on first Put.
func NewFileObjectStore(root string) *FileObjectStore {
	return &FileObjectStore{root: filepath.Clean(root)}
}

func (s *FileObjectStore) pathFor(key string) (string, error) {
	if strings.Contains(key, "..") {
		return "", zerr.With(zerr.New("object key must not contain .."), "key", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Get implements ports.ObjectStore.
func (s *FileObjectStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // key is validated by pathFor, rooted under s.root
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, zerr.With(zerr.Wrap(err, "read object"), "key", key)
	}
	return data, true, nil
}

// Put implements ports.ObjectStore.
func (s *FileObjectStore) Put(_ context.Context, key string, data []byte) error {
	path, err := s.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return zerr.With(zerr.Wrap(err, "create object directory"), "key", key)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil { //nolint:gosec // tarballs/index JSON, not secrets
		return zerr.With(zerr.Wrap(err, "write object"), "key", key)
	}
	return nil
}

// Exists implements ports.ObjectStore.
func (s *FileObjectStore) Exists(_ context.Context, key string) (bool, error) {
	path, err := s.pathFor(key)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, zerr.With(zerr.Wrap(err, "stat object"), "key", key)
}
