package ports

import (
	"context"

	"go.nozem.dev/nozem/internal/core/domain"
)

// ArtifactCache is a single tier of the three-tier cache chain (spec.md
// §4.4): in-place sidecar, local directory, remote object store. Each tier
// implements the same contract; the chain composes them in lookup order and
// writes through to every writable tier behind a hit.
//
//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type ArtifactCache interface {
	// Lookup returns the cached artifact for locator, or ok=false on a miss.
	Lookup(ctx context.Context, locator domain.CacheLocator) (artifact CachedArtifact, ok bool, err error)
	// Store persists an artifact under locator. Implementations must be safe
	// to call concurrently for distinct locators.
	Store(ctx context.Context, locator domain.CacheLocator, artifact CachedArtifact) error
	// Writable reports whether Store is expected to succeed; the chain skips
	// write-through to tiers that are read-only (e.g. a shared remote mirror
	// a developer machine may read from but not publish to).
	Writable() bool
}

// CachedArtifact is what a cache tier stores and returns: the file listing
// (as a serialized Merkle schema, not raw bytes) plus a reference the tier
// can use to materialize the actual file contents on a hit.
type CachedArtifact struct {
	Schema       domain.FileSetSchema
	ArtifactHash string
	// SourceDir is the absolute path a consumer should copy/link files out
	// of to materialize this artifact (an in-place sidecar's own directory,
	// a local tier's extracted tarball, or a remote tier's scratch download).
	SourceDir string
}

// ObjectStore is the generic backend contract for the remote cache tier
// (spec.md §1: "the specific remote storage backend is out of scope except
// where the core touches it"). Adapters implement this against S3, GCS, an
// internal blob service, or (for tests) a filesystem directory.
type ObjectStore interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Put(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
}
