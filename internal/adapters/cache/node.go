package cache

import (
	"context"
	"os"
	"strconv"

	"github.com/grindlemire/graft"
	"go.nozem.dev/nozem/internal/adapters/config"
	"go.nozem.dev/nozem/internal/adapters/fs"
	"go.nozem.dev/nozem/internal/core/ports"
)

const (
	// LocalNodeID is the Graft node for the local tarball tier.
	LocalNodeID graft.ID = "adapter.cache.local"
	// RemoteNodeID is the Graft node for the remote object-store tier.
	RemoteNodeID graft.ID = "adapter.cache.remote"
	// ChainNodeID is the Graft node for the composed cache chain handed to
	// the build orchestrator. It does not include a per-unit Sidecar tier —
	// that one is constructed fresh by internal/build for each unit's own
	// source directory and composed ahead of this chain at call time.
	ChainNodeID graft.ID = "adapter.cache.chain"
)

// defaultLocalCacheMB is the local tier's eviction threshold when
// NOZEM_LOCAL_CACHE_MB isn't set.
const defaultLocalCacheMB = 5000

func init() {
	graft.Register(graft.Node[*Local]{
		ID:        LocalNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Local, error) {
			return NewLocal(localCacheDir(), localCacheSizeMB()), nil
		},
	})

	graft.Register(graft.Node[*Remote]{
		ID:        RemoteNodeID,
		Cacheable: true,
		Run: func(_ context.Context) (*Remote, error) {
			// No ObjectStore is wired by default: the remote tier stays
			// present but permanently unwritable/unreadable (Writable()
			// reports false for a nil store) until an environment supplies
			// one. Deployments that want a remote mirror construct their own
			// ObjectStore and call NewRemote directly rather than going
			// through this node.
			return NewRemote(nil), nil
		},
	})

	graft.Register(graft.Node[*Chain]{
		ID:        ChainNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{LocalNodeID, RemoteNodeID, fs.HasherNodeID},
		Run: func(ctx context.Context) (*Chain, error) {
			local, err := graft.Dep[*Local](ctx)
			if err != nil {
				return nil, err
			}
			remote, err := graft.Dep[*Remote](ctx)
			if err != nil {
				return nil, err
			}
			hasher, err := graft.Dep[*fs.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			return NewChain(hasher, local, remote), nil
		},
	})
}

// localCacheDir resolves the local tier's storage directory: an explicit
// NOZEM_LOCAL_CACHE_DIR override wins, then nozem-cache.json's cacheDir
// field (spec.md §6), then the package default.
func localCacheDir() string {
	if dir := os.Getenv("NOZEM_LOCAL_CACHE_DIR"); dir != "" {
		return dir
	}
	if cfg, found, err := config.LoadCacheConfig(cacheConfigSearchRoot()); err == nil && found && cfg.CacheDir != "" {
		return cfg.CacheDir
	}
	return DefaultLocalCacheDir()
}

// cacheConfigSearchRoot mirrors internal/build's NOZEM_ROOT convention: the
// directory nozem.json (and its sibling nozem-cache.json) was loaded from,
// falling back to the process's working directory.
func cacheConfigSearchRoot() string {
	if dir := os.Getenv("NOZEM_ROOT"); dir != "" {
		return dir
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

func localCacheSizeMB() int64 {
	raw := os.Getenv("NOZEM_LOCAL_CACHE_MB")
	if raw == "" {
		return defaultLocalCacheMB
	}
	mb, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || mb <= 0 {
		return defaultLocalCacheMB
	}
	return mb
}

// NewSidecarChain composes a per-unit Sidecar ahead of chain's own tiers,
// for the one call site (internal/build) that has both a concrete source
// directory and the shared Local/Remote chain in hand.
func NewSidecarChain(sourceDir string, hasher ports.ContentHasher, chain *Chain) *Chain {
	tiers := append([]ports.ArtifactCache{NewSidecar(sourceDir, hasher)}, chain.tiers...)
	return &Chain{tiers: tiers, hasher: hasher}
}
