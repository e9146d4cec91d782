package cache

import (
	"context"
	"reflect"

	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
)

// Fetcher is implemented by tiers whose CachedArtifact.SourceDir is empty on
// a hit (the artifact lives packed, not as loose files) and so needs an
// explicit materialization step before it can be copied into a sandbox or
// written through to a higher-priority tier. Local and Remote both implement
// it; Sidecar doesn't need to, since its hits already point at loose files.
type Fetcher interface {
	Fetch(locator domain.CacheLocator, targetDir string, hasher ports.ContentHasher) (*domain.FileSet, error)
}

// remoteFetcher adapts Remote's context-taking Fetch to the Fetcher shape,
// binding ctx at construction time since Chain's own Lookup already holds it.
type remoteFetcher struct {
	remote *Remote
	ctx    context.Context //nolint:containedctx // bound once per Lookup call, not stored long-term
}

func (f remoteFetcher) Fetch(locator domain.CacheLocator, targetDir string, hasher ports.ContentHasher) (*domain.FileSet, error) {
	return f.remote.Fetch(f.ctx, locator, targetDir, hasher)
}

// Chain composes cache tiers in priority order — typically in-place sidecar
// (highest, when the caller has one open for the unit in question), local
// tarball directory, then remote object store — into the single
// ports.ArtifactCache the build orchestrator talks to.
//
// Lookup tries each tier in order and stops at the first hit. A hit from a
// lower-priority tier is written through to every writable tier that ranks
// above it, so e.g. a remote hit gets a local tarball written for it and
// subsequent runs don't fetch from remote again (spec.md §4.4).
type Chain struct {
	tiers  []ports.ArtifactCache
	hasher ports.ContentHasher
}

var _ ports.ArtifactCache = (*Chain)(nil)

// NewChain composes tiers in the given priority order (highest first). A nil
// entry is skipped, so callers can pass an absent sidecar/remote tier
// directly: NewChain(hasher, sidecarOrNil, local, remoteOrNil).
func NewChain(hasher ports.ContentHasher, tiers ...ports.ArtifactCache) *Chain {
	live := make([]ports.ArtifactCache, 0, len(tiers))
	for _, t := range tiers {
		if !isNilTier(t) {
			live = append(live, t)
		}
	}
	return &Chain{tiers: live, hasher: hasher}
}

// isNilTier reports whether t is nil, including a typed nil pointer stored
// in the interface (e.g. a `var r *Remote` passed through untouched) — a
// plain `t == nil` check misses that case and would leave a nil-receiver
// call waiting in the tier list.
func isNilTier(t ports.ArtifactCache) bool {
	if t == nil {
		return true
	}
	v := reflect.ValueOf(t)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// Writable implements ports.ArtifactCache: true if any tier is writable.
func (c *Chain) Writable() bool {
	for _, t := range c.tiers {
		if t.Writable() {
			return true
		}
	}
	return false
}

// Lookup implements ports.ArtifactCache, trying each tier in priority order.
// It is LookupInto with no materialize directory: a packed hit (a Local or
// Remote entry with no SourceDir) is skipped as if it were a miss, so only
// hits that already have loose files on disk are returned, and those are
// written through to every higher-priority writable tier.
func (c *Chain) Lookup(ctx context.Context, locator domain.CacheLocator) (ports.CachedArtifact, bool, error) {
	return c.LookupInto(ctx, locator, "")
}

// LookupInto behaves like Lookup, but fetches a packed hit's files into
// materializeDir instead of an arbitrary scratch directory. An empty
// materializeDir is only safe when every configured tier is known to return
// loose files already (SourceDir populated) — callers that mix in Local or
// Remote should always pass a real directory.
func (c *Chain) LookupInto(ctx context.Context, locator domain.CacheLocator, materializeDir string) (ports.CachedArtifact, bool, error) {
	for i, tier := range c.tiers {
		artifact, ok, err := tier.Lookup(ctx, locator)
		if err != nil {
			return ports.CachedArtifact{}, false, err
		}
		if !ok {
			continue
		}

		if artifact.SourceDir == "" {
			fetcher, canFetch := asFetcher(ctx, tier)
			if !canFetch {
				continue
			}
			if materializeDir == "" {
				continue
			}
			fileSet, fetchErr := fetcher.Fetch(locator, materializeDir, c.hasher)
			if fetchErr != nil {
				return ports.CachedArtifact{}, false, fetchErr
			}
			artifact.SourceDir = materializeDir
			artifact.Schema = fileSet.MarshalSchema()
		}

		c.writeThrough(ctx, locator, artifact, i)
		return artifact, true, nil
	}
	return ports.CachedArtifact{}, false, nil
}

func asFetcher(ctx context.Context, tier ports.ArtifactCache) (Fetcher, bool) {
	switch t := tier.(type) {
	case Fetcher:
		return t, true
	case *Remote:
		return remoteFetcher{remote: t, ctx: ctx}, true
	default:
		return nil, false
	}
}

// writeThrough stores artifact into every tier ranked above hitIndex.
// Cache-write failures never fail a build (spec.md §4.4), so errors here are
// swallowed; a tier that can't be written to just gets tried again next run.
func (c *Chain) writeThrough(ctx context.Context, locator domain.CacheLocator, artifact ports.CachedArtifact, hitIndex int) {
	for i := 0; i < hitIndex; i++ {
		tier := c.tiers[i]
		if !tier.Writable() {
			continue
		}
		_ = tier.Store(ctx, locator, artifact)
	}
}

// ExplainMiss reports why a just-missed Lookup probably missed, by asking
// the highest-priority Sidecar tier (if one is configured) to diff its last
// recorded input tree against currentTree. Returns false when no tier in the
// chain is a Sidecar, or the Sidecar has nothing to explain (see
// Sidecar.ExplainMiss).
func (c *Chain) ExplainMiss(currentTree domain.Hashable) (string, bool) {
	for _, tier := range c.tiers {
		if sc, ok := tier.(*Sidecar); ok {
			return sc.ExplainMiss(currentTree)
		}
	}
	return "", false
}

// Store implements ports.ArtifactCache: write artifact to every writable
// tier. Per-tier failures are collected but never fail the overall Store,
// matching spec.md's "a cache write failure must never fail the build"
// policy; the first error (if any) is still returned for logging.
func (c *Chain) Store(ctx context.Context, locator domain.CacheLocator, artifact ports.CachedArtifact) error {
	var firstErr error
	for _, tier := range c.tiers {
		if !tier.Writable() {
			continue
		}
		if err := tier.Store(ctx, locator, artifact); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
