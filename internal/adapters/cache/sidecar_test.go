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

func writeUnitFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
		require.NoError(t, os.WriteFile(abs, []byte(content), 0o600))
	}
}

func buildArtifact(t *testing.T, hasher ports.ContentHasher, root string, relPaths []string) ports.CachedArtifact {
	t.Helper()
	entries := make(map[string]string, len(relPaths))
	for _, rel := range relPaths {
		hash, err := hasher.HashFile(filepath.Join(root, rel))
		require.NoError(t, err)
		entries[rel] = hash
	}
	fileSet := domain.NewFileSet(root, entries)
	return ports.CachedArtifact{
		Schema:       fileSet.MarshalSchema(),
		ArtifactHash: fileSet.Hash(),
		SourceDir:    root,
	}
}

func TestSidecar_StoreThenLookupHits(t *testing.T) {
	root := t.TempDir()
	writeUnitFiles(t, root, map[string]string{"dist/index.js": "console.log(1)\n"})
	hasher := fs.NewHasher()
	sc := cache.NewSidecar(root, hasher)

	locator := domain.CacheLocator{InputHash: "deadbeef"}
	artifact := buildArtifact(t, hasher, root, []string{"dist/index.js"})

	require.NoError(t, sc.Store(context.Background(), locator, artifact))

	got, ok, err := sc.Lookup(context.Background(), locator)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, artifact.ArtifactHash, got.ArtifactHash)
	assert.Equal(t, root, got.SourceDir)
}

func TestSidecar_LookupMissesOnInputHashChange(t *testing.T) {
	root := t.TempDir()
	writeUnitFiles(t, root, map[string]string{"dist/index.js": "console.log(1)\n"})
	hasher := fs.NewHasher()
	sc := cache.NewSidecar(root, hasher)

	artifact := buildArtifact(t, hasher, root, []string{"dist/index.js"})
	require.NoError(t, sc.Store(context.Background(), domain.CacheLocator{InputHash: "aaaa"}, artifact))

	_, ok, err := sc.Lookup(context.Background(), domain.CacheLocator{InputHash: "bbbb"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSidecar_LookupMissesWhenArtifactFileChangedOnDisk(t *testing.T) {
	root := t.TempDir()
	writeUnitFiles(t, root, map[string]string{"dist/index.js": "console.log(1)\n"})
	hasher := fs.NewHasher()
	sc := cache.NewSidecar(root, hasher)

	locator := domain.CacheLocator{InputHash: "deadbeef"}
	artifact := buildArtifact(t, hasher, root, []string{"dist/index.js"})
	require.NoError(t, sc.Store(context.Background(), locator, artifact))

	require.NoError(t, os.WriteFile(filepath.Join(root, "dist/index.js"), []byte("tampered\n"), 0o600))
	hasher.Forget(filepath.Join(root, "dist/index.js"))

	_, ok, err := sc.Lookup(context.Background(), locator)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSidecar_LookupMissesWhenArtifactFileRemoved(t *testing.T) {
	root := t.TempDir()
	writeUnitFiles(t, root, map[string]string{"dist/index.js": "console.log(1)\n"})
	hasher := fs.NewHasher()
	sc := cache.NewSidecar(root, hasher)

	locator := domain.CacheLocator{InputHash: "deadbeef"}
	artifact := buildArtifact(t, hasher, root, []string{"dist/index.js"})
	require.NoError(t, sc.Store(context.Background(), locator, artifact))

	require.NoError(t, os.Remove(filepath.Join(root, "dist/index.js")))

	_, ok, err := sc.Lookup(context.Background(), locator)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSidecar_LookupMissesWithNoSidecarFile(t *testing.T) {
	root := t.TempDir()
	sc := cache.NewSidecar(root, fs.NewHasher())

	_, ok, err := sc.Lookup(context.Background(), domain.CacheLocator{InputHash: "anything"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSidecar_ExplainMissDescribesWhichBranchChanged(t *testing.T) {
	root := t.TempDir()
	writeUnitFiles(t, root, map[string]string{"dist/index.js": "console.log(1)\n"})
	hasher := fs.NewHasher()
	sc := cache.NewSidecar(root, hasher)

	oldTree := domain.NewComposite(map[string]domain.Hashable{
		"source": domain.DirectHash("source-v1"),
		"env":    domain.DirectHash("env-v1"),
	})
	artifact := buildArtifact(t, hasher, root, []string{"dist/index.js"})
	require.NoError(t, sc.StoreWithInputTree(context.Background(), oldTree, artifact))

	newTree := domain.NewComposite(map[string]domain.Hashable{
		"source": domain.DirectHash("source-v2"),
		"env":    domain.DirectHash("env-v1"),
	})

	diff, explained := sc.ExplainMiss(newTree)
	require.True(t, explained)
	assert.Contains(t, diff, "change:source")
}

func TestSidecar_ExplainMissFalseWhenTreesMatch(t *testing.T) {
	root := t.TempDir()
	writeUnitFiles(t, root, map[string]string{"dist/index.js": "console.log(1)\n"})
	hasher := fs.NewHasher()
	sc := cache.NewSidecar(root, hasher)

	tree := domain.NewComposite(map[string]domain.Hashable{
		"source": domain.DirectHash("source-v1"),
	})
	artifact := buildArtifact(t, hasher, root, []string{"dist/index.js"})
	require.NoError(t, sc.Store(context.Background(), domain.CacheLocator{InputHash: tree.Hash()}, artifact))

	_, explained := sc.ExplainMiss(tree)
	assert.False(t, explained)
}

func TestSidecar_ExplainMissFalseWithNoSidecarFile(t *testing.T) {
	root := t.TempDir()
	sc := cache.NewSidecar(root, fs.NewHasher())

	_, explained := sc.ExplainMiss(domain.DirectHash("anything"))
	assert.False(t, explained)
}

func TestSidecar_SidecarFileNotVisibleToWalker(t *testing.T) {
	root := t.TempDir()
	writeUnitFiles(t, root, map[string]string{"dist/index.js": "console.log(1)\n"})
	hasher := fs.NewHasher()
	sc := cache.NewSidecar(root, hasher)
	artifact := buildArtifact(t, hasher, root, []string{"dist/index.js"})
	require.NoError(t, sc.Store(context.Background(), domain.CacheLocator{InputHash: "x"}, artifact))

	w := fs.NewWalker(hasher)
	fileSet, err := w.Walk(root, nil)
	require.NoError(t, err)
	assert.NotContains(t, fileSet.Paths(), cache.SidecarFileName)
}
