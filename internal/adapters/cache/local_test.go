package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nozem.dev/nozem/internal/adapters/cache"
	"go.nozem.dev/nozem/internal/adapters/fs"
	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
)

func TestLocal_StoreLookupFetchRoundTrip(t *testing.T) {
	srcRoot := t.TempDir()
	writeUnitFiles(t, srcRoot, map[string]string{
		"dist/index.js":  "console.log(1)\n",
		"dist/README.md": "hi\n",
	})
	hasher := fs.NewHasher()
	artifact := buildArtifact(t, hasher, srcRoot, []string{"dist/index.js", "dist/README.md"})

	l := cache.NewLocal(t.TempDir(), 5000)
	locator := domain.CacheLocator{InputHash: "cafebabe"}

	require.NoError(t, l.Store(context.Background(), locator, artifact))

	got, ok, err := l.Lookup(context.Background(), locator)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifact.ArtifactHash, got.ArtifactHash)
	assert.Empty(t, got.SourceDir)

	targetDir := filepath.Join(t.TempDir(), "extracted")
	fileSet, err := l.Fetch(locator, targetDir, hasher)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dist/index.js", "dist/README.md"}, fileSet.Paths())

	extractedContent, err := os.ReadFile(filepath.Join(targetDir, "dist/index.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)\n", string(extractedContent))
}

func TestLocal_FetchPreservesSymlinks(t *testing.T) {
	srcRoot := t.TempDir()
	writeUnitFiles(t, srcRoot, map[string]string{"dist/index.js": "console.log(1)\n"})
	require.NoError(t, os.Symlink("index.js", filepath.Join(srcRoot, "dist/alias.js")))

	hasher := fs.NewHasher()
	entries := map[string]string{}
	hash, err := hasher.HashFile(filepath.Join(srcRoot, "dist/index.js"))
	require.NoError(t, err)
	entries["dist/index.js"] = hash
	linkHash, err := hasher.HashSymlink(filepath.Join(srcRoot, "dist/alias.js"))
	require.NoError(t, err)
	entries["dist/alias.js"] = linkHash
	fileSet := domain.NewFileSet(srcRoot, entries)
	artifact := ports.CachedArtifact{
		Schema:       fileSet.MarshalSchema(),
		ArtifactHash: fileSet.Hash(),
		SourceDir:    srcRoot,
	}

	l := cache.NewLocal(t.TempDir(), 5000)
	locator := domain.CacheLocator{InputHash: "symlinked"}

	require.NoError(t, l.Store(context.Background(), locator, artifact))

	targetDir := filepath.Join(t.TempDir(), "extracted")
	extracted, err := l.Fetch(locator, targetDir, hasher)
	require.NoError(t, err)
	assert.Contains(t, extracted.Paths(), "dist/alias.js")

	target, err := os.Readlink(filepath.Join(targetDir, "dist/alias.js"))
	require.NoError(t, err)
	assert.Equal(t, "index.js", target)
}

func TestLocal_LookupMissesWithoutStore(t *testing.T) {
	l := cache.NewLocal(t.TempDir(), 5000)
	_, ok, err := l.Lookup(context.Background(), domain.CacheLocator{InputHash: "nope"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocal_CleanEvictsOldestWhenOverBudget(t *testing.T) {
	srcRoot := t.TempDir()
	writeUnitFiles(t, srcRoot, map[string]string{"dist/index.js": "01234567890123456789\n"})
	hasher := fs.NewHasher()
	artifact := buildArtifact(t, hasher, srcRoot, []string{"dist/index.js"})

	dir := t.TempDir()
	// A budget of 0MB forces every tarball written to be evicted by the next
	// Store's asynchronous cleanup pass.
	l := cache.NewLocal(dir, 0)

	require.NoError(t, l.Store(context.Background(), domain.CacheLocator{InputHash: "first0000"}, artifact))
	require.NoError(t, l.Store(context.Background(), domain.CacheLocator{InputHash: "second000"}, artifact))

	// cleanAsync runs in a goroutine; Store's own writes are synchronous and
	// always land, so this only asserts both writes succeeded without error
	// (eviction timing itself is not deterministic enough to assert here).
	_, ok, err := l.Lookup(context.Background(), domain.CacheLocator{InputHash: "second000"})
	require.NoError(t, err)
	assert.True(t, ok)
}
