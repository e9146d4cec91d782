package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"sync/atomic"

	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

// Remote is the third cache tier: a caller-supplied ports.ObjectStore (S3 or
// equivalent), keyed as `nozem/index/<hash>.json` and `nozem/data/<hash>.tar.gz`
// per spec.md §4.4. Two independent atomic circuit breakers — one for reads,
// one for writes — trip on the first I/O error and short-circuit every call
// afterward, so a missing or unauthorized remote degrades the build to the
// local tier instead of retrying a doomed call on every lookup.
type Remote struct {
	store       ports.ObjectStore
	readTripped atomic.Bool
	writTripped atomic.Bool
}

var _ ports.ArtifactCache = (*Remote)(nil)

// NewRemote creates the remote tier backed by store. A nil store produces a
// permanently-unwritable, always-miss tier (used when no remote is configured).
func NewRemote(store ports.ObjectStore) *Remote {
	return &Remote{store: store}
}

func indexKey(hash string) string { return "nozem/index/" + hash + ".json" }
func dataKey(hash string) string  { return "nozem/data/" + hash + ".tar.gz" }

// Writable implements ports.ArtifactCache: false once the write breaker has
// tripped, or if no store was configured.
func (r *Remote) Writable() bool {
	return r.store != nil && !r.writTripped.Load()
}

func (r *Remote) readable() bool {
	return r.store != nil && !r.readTripped.Load()
}

// Lookup implements ports.ArtifactCache.
func (r *Remote) Lookup(ctx context.Context, locator domain.CacheLocator) (ports.CachedArtifact, bool, error) {
	if !r.readable() {
		return ports.CachedArtifact{}, false, nil
	}

	data, ok, err := r.store.Get(ctx, indexKey(locator.InputHash))
	if err != nil {
		r.readTripped.Store(true)
		return ports.CachedArtifact{}, false, zerr.Wrap(err, "remote cache index read failed")
	}
	if !ok {
		return ports.CachedArtifact{}, false, nil
	}

	var entry localIndexEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return ports.CachedArtifact{}, false, nil
	}

	exists, err := r.store.Exists(ctx, dataKey(locator.InputHash))
	if err != nil {
		r.readTripped.Store(true)
		return ports.CachedArtifact{}, false, zerr.Wrap(err, "remote cache data check failed")
	}
	if !exists {
		return ports.CachedArtifact{}, false, nil
	}

	return ports.CachedArtifact{ArtifactHash: entry.ArtifactHash, Schema: entry.Artifacts}, true, nil
}

// FetchData returns the tarball bytes for locator, for the caller to pass
// through Local's extraction logic (or write directly into a fresh local
// tarball as part of promoting a remote hit down to the local tier).
func (r *Remote) FetchData(ctx context.Context, locator domain.CacheLocator) ([]byte, bool, error) {
	if !r.readable() {
		return nil, false, nil
	}
	data, ok, err := r.store.Get(ctx, dataKey(locator.InputHash))
	if err != nil {
		r.readTripped.Store(true)
		return nil, false, zerr.Wrap(err, "remote cache data read failed")
	}
	return data, ok, nil
}

// Fetch downloads and extracts the tarball for locator into targetDir,
// mirroring Local.Fetch's signature so Chain can treat both tiers uniformly
// through the Fetcher interface.
func (r *Remote) Fetch(ctx context.Context, locator domain.CacheLocator, targetDir string, hasher ports.ContentHasher) (*domain.FileSet, error) {
	data, ok, err := r.FetchData(ctx, locator)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, zerr.New("remote cache data missing for indexed artifact")
	}
	return extractTarGz(bytes.NewReader(data), targetDir, hasher)
}

// Store implements ports.ArtifactCache. It persists only the index entry;
// the tarball bytes are uploaded separately by StoreData. Lookup reports a
// hit only once both exist.
func (r *Remote) Store(ctx context.Context, locator domain.CacheLocator, artifact ports.CachedArtifact) error {
	if !r.Writable() {
		return nil
	}

	index := localIndexEntry{ArtifactHash: artifact.ArtifactHash, Artifacts: artifact.Schema}
	data, err := json.Marshal(index)
	if err != nil {
		return zerr.Wrap(err, "marshal remote cache index")
	}

	if err := r.store.Put(ctx, indexKey(locator.InputHash), data); err != nil {
		r.writTripped.Store(true)
		return zerr.Wrap(err, "remote cache index write failed")
	}
	return nil
}

// StoreData uploads the tarball bytes for locator. Chain.Store does not
// call it: an entry written to this tier through the chain has an index but
// no data, and Lookup treats it as a miss.
func (r *Remote) StoreData(ctx context.Context, locator domain.CacheLocator, tarballBytes []byte) error {
	if !r.Writable() {
		return nil
	}
	if err := r.store.Put(ctx, dataKey(locator.InputHash), tarballBytes); err != nil {
		r.writTripped.Store(true)
		return zerr.Wrap(err, "remote cache data write failed")
	}
	return nil
}
