package cache

import (
	"context"

	"golang.org/x/sync/errgroup"

	"go.nozem.dev/nozem/internal/core/domain"
)

// mirrorConcurrency bounds how many remote fetches MirrorMissing runs at
// once, keeping a startup scan from saturating the remote tier's connection
// pool the same way a full build's unit concurrency would.
const mirrorConcurrency = 8

// MirrorMissing is the remote tier's background mirror scan (spec.md §4.4:
// "an asynchronous background scan mirrors missing index files into a local
// directory to make subsequent lookups cheap"). For each locator in
// candidates it checks the local tier first and, on a local miss with a
// remote hit, downloads the tarball and writes it into the local tier — a
// single bounded goroutine population over a caller-supplied candidate
// list, not a second scheduler. Per-locator errors are swallowed (mirroring
// is an optimization, never load-bearing for correctness) except for ctx
// cancellation, which aborts the remaining scan.
func MirrorMissing(ctx context.Context, candidates []domain.CacheLocator, local *Local, remote *Remote) error {
	if local == nil || remote == nil || !remote.readable() {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mirrorConcurrency)

	for _, locator := range candidates {
		g.Go(func() error {
			return mirrorOne(gctx, locator, local, remote)
		})
	}

	return g.Wait()
}

func mirrorOne(ctx context.Context, locator domain.CacheLocator, local *Local, remote *Remote) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	if _, hit, err := local.Lookup(ctx, locator); err != nil || hit {
		return nil //nolint:nilerr // a local-lookup error just means "don't skip mirroring", not a scan failure
	}

	artifact, hit, err := remote.Lookup(ctx, locator)
	if err != nil || !hit {
		return nil //nolint:nilerr // a remote miss/error is not a mirror-scan failure
	}

	data, hit, err := remote.FetchData(ctx, locator)
	if err != nil || !hit {
		return nil //nolint:nilerr // see above
	}

	if err := local.StoreRawTarball(locator, artifact.ArtifactHash, artifact.Schema, data); err != nil {
		return nil //nolint:nilerr // a failed local write skips this locator, not the whole scan
	}
	return nil
}
