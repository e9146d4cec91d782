package ostool_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nozem.dev/nozem/internal/adapters/ostool"
)

func writeFakeExecutable(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\necho fake\n"), 0o755))
	return path
}

func TestResolver_LocateFindsExecutableOnPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable-bit based PATH search assumes a POSIX mode bit")
	}
	binDir := t.TempDir()
	expected := writeFakeExecutable(t, binDir, "node")

	r := ostool.NewResolver(t.TempDir(), binDir)
	resolved, err := r.Locate(context.Background(), "node")
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)
}

func TestResolver_LocateMissingExecutableErrors(t *testing.T) {
	r := ostool.NewResolver(t.TempDir(), t.TempDir())
	_, err := r.Locate(context.Background(), "definitely-not-a-real-tool")
	require.Error(t, err)
}

func TestResolver_LocateCachesAcrossInstances(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable-bit based PATH search assumes a POSIX mode bit")
	}
	binDir := t.TempDir()
	cacheDir := t.TempDir()
	expected := writeFakeExecutable(t, binDir, "pnpm")

	first := ostool.NewResolver(cacheDir, binDir)
	resolved, err := first.Locate(context.Background(), "pnpm")
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)

	// A second resolver backed by the same cache dir, but with an empty
	// PATH, must still resolve from the persisted cache entry.
	second := ostool.NewResolver(cacheDir, "")
	resolved, err = second.Locate(context.Background(), "pnpm")
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)
}

func TestResolver_LocateMemoizesInProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable-bit based PATH search assumes a POSIX mode bit")
	}
	binDir := t.TempDir()
	expected := writeFakeExecutable(t, binDir, "yarn")

	r := ostool.NewResolver(t.TempDir(), binDir)
	resolved, err := r.Locate(context.Background(), "yarn")
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)

	// Remove the binary; the in-process memo should still answer without
	// re-searching PATH.
	require.NoError(t, os.Remove(expected))
	resolved, err = r.Locate(context.Background(), "yarn")
	require.NoError(t, err)
	assert.Equal(t, expected, resolved)
}

func TestResolver_ResolveAllWarmsCacheForEveryExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable-bit based PATH search assumes a POSIX mode bit")
	}
	binDir := t.TempDir()
	node := writeFakeExecutable(t, binDir, "node")
	pnpm := writeFakeExecutable(t, binDir, "pnpm")

	r := ostool.NewResolver(t.TempDir(), binDir)
	err := r.ResolveAll(context.Background(), []string{"node", "pnpm", "node"})
	require.NoError(t, err)

	// Remove both binaries; Locate must still answer from the warm cache
	// ResolveAll populated rather than re-searching PATH.
	require.NoError(t, os.Remove(node))
	require.NoError(t, os.Remove(pnpm))

	resolved, err := r.Locate(context.Background(), "node")
	require.NoError(t, err)
	assert.Equal(t, node, resolved)

	resolved, err = r.Locate(context.Background(), "pnpm")
	require.NoError(t, err)
	assert.Equal(t, pnpm, resolved)
}

func TestResolver_ResolveAllReportsFirstMissingExecutable(t *testing.T) {
	r := ostool.NewResolver(t.TempDir(), t.TempDir())
	err := r.ResolveAll(context.Background(), []string{"definitely-not-a-real-tool"})
	require.Error(t, err)
}

func TestResolver_StaleCacheEntryIsRediscovered(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable-bit based PATH search assumes a POSIX mode bit")
	}
	cacheDir := t.TempDir()
	firstBinDir := t.TempDir()
	staleExecutable := writeFakeExecutable(t, firstBinDir, "tsc")

	first := ostool.NewResolver(cacheDir, firstBinDir)
	_, err := first.Locate(context.Background(), "tsc")
	require.NoError(t, err)
	require.NoError(t, os.Remove(staleExecutable))

	secondBinDir := t.TempDir()
	freshExecutable := writeFakeExecutable(t, secondBinDir, "tsc")
	second := ostool.NewResolver(cacheDir, secondBinDir)
	resolved, err := second.Locate(context.Background(), "tsc")
	require.NoError(t, err)
	assert.Equal(t, freshExecutable, resolved)
}
