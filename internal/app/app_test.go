package app_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.nozem.dev/nozem/internal/adapters/cache"
	"go.nozem.dev/nozem/internal/adapters/fs"
	"go.nozem.dev/nozem/internal/adapters/logger"
	"go.nozem.dev/nozem/internal/adapters/sandbox"
	"go.nozem.dev/nozem/internal/adapters/shell"
	"go.nozem.dev/nozem/internal/adapters/telemetry"
	"go.nozem.dev/nozem/internal/app"
	"go.nozem.dev/nozem/internal/build"
	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/engine/scheduler"
)

// stubLoader returns a fixed graph (or error) regardless of dir, standing in
// for ports.UnitLoader without requiring a nozem.json fixture on disk.
type stubLoader struct {
	graph *domain.Graph
	err   error
}

func (s stubLoader) Load(string) (*domain.Graph, error) {
	return s.graph, s.err
}

func newTestScheduler(t *testing.T, monorepoRoot string) *scheduler.Scheduler {
	t.Helper()
	hasher := fs.NewHasher()
	walker := fs.NewWalker(hasher)
	log := logger.New()
	executor := shell.NewExecutor()
	sandboxes := sandbox.NewFactory(t.TempDir(), executor, log)
	local := cache.NewLocal(t.TempDir(), 5000)
	chain := cache.NewChain(hasher, local)

	builder := build.NewBuilder(build.Config{
		Walker:         walker,
		Hasher:         hasher,
		Chain:          chain,
		Sandboxes:      sandboxes,
		Executor:       executor,
		Telemetry:      telemetry.NewNoOp(),
		Logger:         log,
		MonorepoRoot:   monorepoRoot,
		MaterializeDir: t.TempDir(),
	})

	return scheduler.NewScheduler(builder, log, telemetry.NewNoOp())
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestApp_Run_BuildsWholeGraphWhenNoTargetsGiven(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg-a/index.js", "module.exports = 1;\n")

	graph := domain.NewGraph()
	aID := domain.NewInternedString("@acme/pkg-a")
	require.NoError(t, graph.AddUnit(domain.Unit{
		Identifier:   aID,
		Kind:         domain.UnitKindCommand,
		Root:         "pkg-a",
		NonSources:   []string{"dist.txt"},
		BuildCommand: []string{"sh", "-c", "echo built > dist.txt"},
	}))

	sched := newTestScheduler(t, root)
	a := app.New(stubLoader{graph: graph}, sched, logger.New())

	result, err := a.Run(context.Background(), root, nil, app.RunOptions{Concurrency: 2, Bail: true})
	require.NoError(t, err)
	assert.ElementsMatch(t, []domain.InternedString{aID}, result.Succeeded)
}

func TestApp_Run_ConfigLoaderError(t *testing.T) {
	sched := newTestScheduler(t, t.TempDir())
	a := app.New(stubLoader{err: errors.New("config load error")}, sched, logger.New())

	_, err := a.Run(context.Background(), ".", []string{"task1"}, app.RunOptions{Concurrency: 1, Bail: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestApp_Run_BuildExecutionFailed(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "pkg-b/index.js", "module.exports = 1;\n")

	graph := domain.NewGraph()
	bID := domain.NewInternedString("@acme/pkg-b")
	require.NoError(t, graph.AddUnit(domain.Unit{
		Identifier:   bID,
		Kind:         domain.UnitKindCommand,
		Root:         "pkg-b",
		BuildCommand: []string{"sh", "-c", "exit 1"},
	}))

	sched := newTestScheduler(t, root)
	a := app.New(stubLoader{graph: graph}, sched, logger.New())

	result, err := a.Run(context.Background(), root, []string{"@acme/pkg-b"}, app.RunOptions{Concurrency: 1, Bail: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "build execution failed")
	assert.Equal(t, []domain.InternedString{bID}, result.Failed)
}
