package sandbox

import (
	"context"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

// Factory implements ports.SandboxFactory, handing out temp-directory-backed
// Sandbox instances under a shared base directory.
type Factory struct {
	baseDir  string
	executor ports.Executor
	logger   ports.Logger
}

var _ ports.SandboxFactory = (*Factory)(nil)

// NewFactory creates a Factory rooting every acquired sandbox under baseDir
// (created if missing) and running build commands through executor.
func NewFactory(baseDir string, executor ports.Executor, logger ports.Logger) *Factory {
	return &Factory{baseDir: baseDir, executor: executor, logger: logger}
}

// Acquire implements ports.SandboxFactory.
func (f *Factory) Acquire(_ context.Context) (ports.Sandbox, error) {
	if err := os.MkdirAll(f.baseDir, 0o755); err != nil {
		return nil, zerr.Wrap(err, "create sandbox base directory")
	}
	root, err := os.MkdirTemp(f.baseDir, "build-*")
	if err != nil {
		return nil, zerr.Wrap(err, "create sandbox temp directory")
	}
	return newSandbox(root, f.executor)
}

// Release implements ports.SandboxFactory: the sandbox directory is deleted
// on a successful build, and retained (with its path logged for post-mortem
// inspection) on failure.
func (f *Factory) Release(_ context.Context, sb ports.Sandbox, buildSucceeded bool) error {
	if !buildSucceeded {
		if f.logger != nil {
			f.logger.Warn("retaining failed build's sandbox for inspection", "path", sb.Root())
		}
		return nil
	}
	if err := os.RemoveAll(sb.Root()); err != nil {
		return zerr.With(zerr.Wrap(err, "remove sandbox directory"), "path", sb.Root())
	}
	return nil
}

// newExcludeMatcher compiles excludePatterns with the same gitignore-style
// matcher the source walker uses, so a unit's NonArtifacts patterns behave
// consistently with its NonSources patterns.
func newExcludeMatcher(excludePatterns []string) func(relPath string) bool {
	if len(excludePatterns) == 0 {
		return func(string) bool { return false }
	}
	matcher := gitignore.CompileIgnoreLines(excludePatterns...)
	return func(relPath string) bool {
		return matcher.MatchesPath(filepath.ToSlash(relPath))
	}
}
