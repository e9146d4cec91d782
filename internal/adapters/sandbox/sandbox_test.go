package sandbox_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.nozem.dev/nozem/internal/adapters/sandbox"
	"go.nozem.dev/nozem/internal/adapters/shell"
	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
)

func newTestFactory(t *testing.T) *sandbox.Factory {
	t.Helper()
	return sandbox.NewFactory(t.TempDir(), shell.NewExecutor(), nil)
}

func TestFactory_AcquireCreatesBinAndSrcDirs(t *testing.T) {
	f := newTestFactory(t)
	sb, err := f.Acquire(context.Background())
	require.NoError(t, err)

	assert.DirExists(t, filepath.Join(sb.Root(), "bin"))
	assert.DirExists(t, filepath.Join(sb.Root(), "src"))
}

func TestFactory_ReleaseRemovesDirectoryOnSuccess(t *testing.T) {
	f := newTestFactory(t)
	sb, err := f.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.Release(context.Background(), sb, true))
	assert.NoDirExists(t, sb.Root())
}

func TestFactory_ReleaseRetainsDirectoryOnFailure(t *testing.T) {
	f := newTestFactory(t)
	sb, err := f.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, f.Release(context.Background(), sb, false))
	assert.DirExists(t, sb.Root())
}

func TestSandbox_InstallExecutableCreatesSymlinkInBin(t *testing.T) {
	toolDir := t.TempDir()
	toolPath := filepath.Join(toolDir, "node")
	require.NoError(t, os.WriteFile(toolPath, []byte("#!/bin/sh\necho node\n"), 0o755))

	f := newTestFactory(t)
	sb, err := f.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, sb.InstallExecutable("node", toolPath))

	linked := filepath.Join(sb.Root(), "bin", "node")
	target, err := os.Readlink(linked)
	require.NoError(t, err)
	assert.Equal(t, toolPath, target)
}

func TestSandbox_AddSrcFilesCopiesAndPreservesSymlinks(t *testing.T) {
	srcRoot := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(srcRoot, "index.js"), []byte("console.log(1)"), 0o644))
	require.NoError(t, os.Symlink("index.js", filepath.Join(srcRoot, "alias.js")))

	fileSet := domain.NewFileSet(srcRoot, map[string]string{
		"index.js": "irrelevant-hash",
		"alias.js": "irrelevant-hash",
	})

	f := newTestFactory(t)
	sb, err := f.Acquire(context.Background())
	require.NoError(t, err)

	resolve := func(relPath string) (string, error) {
		return filepath.Join(srcRoot, relPath), nil
	}
	require.NoError(t, sb.AddSrcFiles(fileSet, resolve))

	content, err := os.ReadFile(filepath.Join(sb.Root(), "src", "index.js"))
	require.NoError(t, err)
	assert.Equal(t, "console.log(1)", string(content))

	linkTarget, err := os.Readlink(filepath.Join(sb.Root(), "src", "alias.js"))
	require.NoError(t, err)
	assert.Equal(t, "index.js", linkTarget)
}

func TestSandbox_TouchFileCreatesEmptyFile(t *testing.T) {
	f := newTestFactory(t)
	sb, err := f.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, sb.TouchFile(filepath.Join("src", ".nzm-marker")))

	info, err := os.Stat(filepath.Join(sb.Root(), "src", ".nzm-marker"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestSandbox_ExecuteRestrictsPathToBinDir(t *testing.T) {
	toolDir := t.TempDir()
	toolPath := filepath.Join(toolDir, "mytool")
	require.NoError(t, os.WriteFile(toolPath, []byte("#!/bin/sh\necho ran mytool\n"), 0o755))

	f := newTestFactory(t)
	sb, err := f.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, sb.InstallExecutable("mytool", toolPath))

	var stdout bytes.Buffer
	err = sb.Execute(context.Background(), ports.CommandSpec{
		Argv:   []string{"mytool"},
		Env:    []string{"PATH=/usr/bin:/bin"},
		Stdout: &stdout,
	})
	require.NoError(t, err)
	assert.Equal(t, "ran mytool\n", stdout.String())
}

func TestSandbox_ExecuteDefaultsWorkingDirToSrc(t *testing.T) {
	f := newTestFactory(t)
	sb, err := f.Acquire(context.Background())
	require.NoError(t, err)

	var stdout bytes.Buffer
	err = sb.Execute(context.Background(), ports.CommandSpec{
		Argv:   []string{"/bin/pwd"},
		Stdout: &stdout,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(sb.Root(), "src")+"\n", stdout.String())
}

func TestSandbox_InSourceArtifactsExcludesMatchedPatterns(t *testing.T) {
	f := newTestFactory(t)
	sb, err := f.Acquire(context.Background())
	require.NoError(t, err)

	require.NoError(t, sb.TouchFile(filepath.Join("src", "dist", "index.js")))
	require.NoError(t, sb.TouchFile(filepath.Join("src", "dist", "index.js.map")))
	require.NoError(t, sb.TouchFile(filepath.Join("src", "README.md")))

	artifacts, err := sb.InSourceArtifacts([]string{"*.map", "README.md"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join("dist", "index.js")}, artifacts)
}
