package build_test

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.nozem.dev/nozem/internal/adapters/cache"
	"go.nozem.dev/nozem/internal/adapters/fs"
	"go.nozem.dev/nozem/internal/adapters/logger"
	"go.nozem.dev/nozem/internal/adapters/ostool"
	"go.nozem.dev/nozem/internal/adapters/sandbox"
	"go.nozem.dev/nozem/internal/adapters/shell"
	"go.nozem.dev/nozem/internal/adapters/telemetry"
	"go.nozem.dev/nozem/internal/build"
	"go.nozem.dev/nozem/internal/core/domain"
)

func newTestBuilder(t *testing.T, monorepoRoot string) *build.Builder {
	t.Helper()
	return newTestBuilderWithOsTools(t, monorepoRoot, ostool.NewResolver(t.TempDir(), os.Getenv("PATH")))
}

func newTestBuilderWithOsTools(t *testing.T, monorepoRoot string, osTools *ostool.Resolver) *build.Builder {
	t.Helper()
	hasher := fs.NewHasher()
	walker := fs.NewWalker(hasher)
	log := logger.New()
	executor := shell.NewExecutor()
	sandboxes := sandbox.NewFactory(t.TempDir(), executor, log)
	local := cache.NewLocal(t.TempDir(), 5000)
	chain := cache.NewChain(hasher, local)

	return build.NewBuilder(build.Config{
		Walker:         walker,
		Hasher:         hasher,
		Chain:          chain,
		Sandboxes:      sandboxes,
		Executor:       executor,
		OsTools:        osTools,
		Telemetry:      telemetry.NewNoOp(),
		Logger:         log,
		MonorepoRoot:   monorepoRoot,
		MaterializeDir: t.TempDir(),
	})
}

func writeSourceFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestBuilder_HermeticCommandUnit_BuildsAndWritesArtifact(t *testing.T) {
	monorepoRoot := t.TempDir()
	unitRoot := "pkg-a"
	writeSourceFile(t, monorepoRoot, filepath.Join(unitRoot, "index.js"), "module.exports = 1;\n")

	b := newTestBuilder(t, monorepoRoot)
	unit := domain.Unit{
		Identifier:   domain.NewInternedString("@acme/pkg-a"),
		Kind:         domain.UnitKindCommand,
		Root:         unitRoot,
		NonSources:   []string{"dist.txt"},
		BuildCommand: []string{"sh", "-c", "echo built > dist.txt"},
	}

	out, err := b.Build(context.Background(), unit, build.DependencyOutputs{})
	require.NoError(t, err)
	assert.True(t, out.Hermetic)
	assert.False(t, out.Cached)
	assert.NotEmpty(t, out.InputHash)
	assert.Contains(t, out.Artifact.Files.Paths(), "dist.txt")
	assert.Contains(t, out.Artifact.Files.Paths(), "index.js")
}

func TestBuilder_HermeticCommandUnit_SecondBuildIsServedFromCache(t *testing.T) {
	monorepoRoot := t.TempDir()
	unitRoot := "pkg-b"
	writeSourceFile(t, monorepoRoot, filepath.Join(unitRoot, "index.js"), "module.exports = 2;\n")

	b := newTestBuilder(t, monorepoRoot)
	unit := domain.Unit{
		Identifier:   domain.NewInternedString("@acme/pkg-b"),
		Kind:         domain.UnitKindCommand,
		Root:         unitRoot,
		NonSources:   []string{"dist.txt"},
		BuildCommand: []string{"sh", "-c", "echo built > dist.txt"},
	}

	first, err := b.Build(context.Background(), unit, build.DependencyOutputs{})
	require.NoError(t, err)
	require.False(t, first.Cached)

	second, err := b.Build(context.Background(), unit, build.DependencyOutputs{})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.InputHash, second.InputHash)
	assert.Equal(t, first.Artifact.ArtifactHash, second.Artifact.ArtifactHash)
}

func TestBuilder_LinkNpmDependency_PropagatesNonHermeticProducer(t *testing.T) {
	monorepoRoot := t.TempDir()
	consumerRoot := "pkg-consumer"
	writeSourceFile(t, monorepoRoot, filepath.Join(consumerRoot, "index.js"), "require('dep');\n")

	b := newTestBuilder(t, monorepoRoot)
	depID := domain.NewInternedString("@acme/dep")

	nonHermeticProducer := build.Output{
		Artifact: domain.NewArtifact(domain.NewFileSet(t.TempDir(), map[string]string{"index.js": "deadbeef"})),
		Hermetic: false,
	}

	unit := domain.Unit{
		Identifier: domain.NewInternedString("@acme/pkg-consumer"),
		Kind:       domain.UnitKindCommand,
		Root:       consumerRoot,
		Dependencies: []domain.DependencyEdge{
			domain.LinkNpmEdge{NodeID: depID},
		},
		BuildCommand: []string{"sh", "-c", "echo built > dist.txt"},
	}

	out, err := b.Build(context.Background(), unit, build.DependencyOutputs{depID: nonHermeticProducer})
	require.NoError(t, err)
	assert.False(t, out.Hermetic)
	assert.Empty(t, out.InputHash)
}

func TestBuilder_OsToolEdge_ResolvesAndInstallsDeclaredExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("executable-bit based PATH search assumes a POSIX mode bit")
	}
	monorepoRoot := t.TempDir()
	unitRoot := "pkg-with-tool"
	writeSourceFile(t, monorepoRoot, filepath.Join(unitRoot, "index.js"), "module.exports = 1;\n")

	binDir := t.TempDir()
	toolPath := filepath.Join(binDir, "mytool")
	require.NoError(t, os.WriteFile(toolPath, []byte("#!/bin/sh\necho ok\n"), 0o755))

	osTools := ostool.NewResolver(t.TempDir(), binDir)
	b := newTestBuilderWithOsTools(t, monorepoRoot, osTools)

	unit := domain.Unit{
		Identifier: domain.NewInternedString("@acme/pkg-with-tool"),
		Kind:       domain.UnitKindCommand,
		Root:       unitRoot,
		Dependencies: []domain.DependencyEdge{
			domain.OsToolEdge{Executable: "mytool", RenameTo: "mytool"},
		},
		NonSources:   []string{"dist.txt"},
		BuildCommand: []string{"sh", "-c", "mytool > dist.txt"},
	}

	out, err := b.Build(context.Background(), unit, build.DependencyOutputs{})
	require.NoError(t, err)
	assert.True(t, out.Hermetic)
	assert.Contains(t, out.Artifact.Files.Paths(), "dist.txt")
}

func TestBuilder_ExtractUnit_SelectsOnlyMatchingGlobs(t *testing.T) {
	monorepoRoot := t.TempDir()
	b := newTestBuilder(t, monorepoRoot)

	depID := domain.NewInternedString("@acme/dep")
	depRoot := t.TempDir()
	writeSourceFile(t, depRoot, "dist/index.js", "module.exports = {};\n")
	writeSourceFile(t, depRoot, "README.md", "# dep\n")

	hasher := fs.NewHasher()
	walker := fs.NewWalker(hasher)
	depFiles, err := walker.Walk(depRoot, nil)
	require.NoError(t, err)

	producer := build.Output{
		Artifact: domain.NewArtifact(depFiles),
		Hermetic: true,
	}

	unit := domain.Unit{
		Identifier: domain.NewInternedString("@acme/extracted"),
		Kind:       domain.UnitKindExtract,
		Dependencies: []domain.DependencyEdge{
			domain.LinkNpmEdge{NodeID: depID},
		},
		ExtractPatterns: []string{"node_modules/" + depID.String() + "/dist/*"},
	}

	out, err := b.Build(context.Background(), unit, build.DependencyOutputs{depID: producer})
	require.NoError(t, err)
	assert.True(t, out.Hermetic)
	paths := out.Artifact.Files.Paths()
	require.Len(t, paths, 1)
	assert.Equal(t, "node_modules/"+depID.String()+"/dist/index.js", paths[0])
}
