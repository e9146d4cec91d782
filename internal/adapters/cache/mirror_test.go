package cache_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nozem.dev/nozem/internal/adapters/cache"
	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
)

func TestMirrorMissing_CopiesRemoteHitsMissingLocallyIntoLocalTier(t *testing.T) {
	local := cache.NewLocal(t.TempDir(), 5000)
	store := cache.NewFileObjectStore(t.TempDir())
	remote := cache.NewRemote(store)

	tarball := buildTarGz(t, map[string]string{"dist/index.js": "console.log(1)\n"})
	locator := domain.CacheLocator{InputHash: "deadbeef"}
	artifact := ports.CachedArtifact{
		ArtifactHash: "feedface",
		Schema:       domain.FileSetSchema{RelativePaths: []string{"dist/index.js"}},
	}
	require.NoError(t, remote.Store(context.Background(), locator, artifact))
	require.NoError(t, remote.StoreData(context.Background(), locator, tarball))

	_, hitBefore, err := local.Lookup(context.Background(), locator)
	require.NoError(t, err)
	assert.False(t, hitBefore)

	require.NoError(t, cache.MirrorMissing(context.Background(), []domain.CacheLocator{locator}, local, remote))

	hit, ok, err := local.Lookup(context.Background(), locator)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "feedface", hit.ArtifactHash)
}

func TestMirrorMissing_SkipsLocatorsAlreadyPresentLocally(t *testing.T) {
	local := cache.NewLocal(t.TempDir(), 5000)
	remote := cache.NewRemote(cache.NewFileObjectStore(t.TempDir()))

	locator := domain.CacheLocator{InputHash: "alreadyhere"}
	schema := domain.FileSetSchema{RelativePaths: []string{"dist/index.js"}}
	tarball := buildTarGz(t, map[string]string{"dist/index.js": "console.log(1)\n"})
	require.NoError(t, local.StoreRawTarball(locator, "local-copy", schema, tarball))
	require.NoError(t, remote.Store(context.Background(), locator, ports.CachedArtifact{ArtifactHash: "remote-copy", Schema: schema}))
	require.NoError(t, remote.StoreData(context.Background(), locator, tarball))

	require.NoError(t, cache.MirrorMissing(context.Background(), []domain.CacheLocator{locator}, local, remote))

	hit, ok, err := local.Lookup(context.Background(), locator)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "local-copy", hit.ArtifactHash)
}

func TestMirrorMissing_NoopWhenRemoteUnconfigured(t *testing.T) {
	local := cache.NewLocal(t.TempDir(), 5000)
	remote := cache.NewRemote(nil)

	err := cache.MirrorMissing(context.Background(), []domain.CacheLocator{{InputHash: "x"}}, local, remote)
	require.NoError(t, err)
}
