package ports

import (
	"context"
	"io"

	"go.nozem.dev/nozem/internal/core/domain"
)

//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks

// CommandSpec is everything an Executor needs to run one external process.
type CommandSpec struct {
	Argv       []string
	Env        []string
	WorkingDir string
	Stdout     io.Writer
	Stderr     io.Writer
}

// Executor runs an external command, used both by the hermetic sandbox (for
// a unit's build/test command) and by the non-hermetic in-place build.
type Executor interface {
	Execute(ctx context.Context, spec CommandSpec) error
}

// Sandbox is the ephemeral bin/+src/ build environment a package build runs
// inside (spec.md §4.5). One Sandbox instance is scoped to a single unit
// build and is torn down (or retained for post-mortem on failure) by the
// caller of Acquire.
type Sandbox interface {
	// Root is the sandbox's temporary directory.
	Root() string
	// InstallExecutable places an OS-tool binary at bin/<renameTo> (or its
	// basename) as a symlink to the resolved absolute path.
	InstallExecutable(renameTo, resolvedPath string) error
	// InstallSymlink places a symlink at a path relative to the sandbox root,
	// used for linked npm dependency edges.
	InstallSymlink(relPath, target string) error
	// AddSrcFiles copies a FileSet's files into src/ preserving relative
	// paths, used for copy dependency edges and the unit's own sources.
	AddSrcFiles(fs *domain.FileSet, resolve func(relPath string) (absPath string, err error)) error
	// TouchFile creates an empty file at a path relative to the sandbox root.
	TouchFile(relPath string) error
	// Execute runs spec.Argv with WorkingDir defaulted to the sandbox's src/
	// directory and PATH restricted to bin/.
	Execute(ctx context.Context, spec CommandSpec) error
	// InSourceArtifacts returns the relative paths under src/ that are not
	// excluded by the unit's NonArtifacts patterns, in sorted order.
	InSourceArtifacts(excludePatterns []string) ([]string, error)
}

// SandboxFactory acquires and releases Sandbox instances. Release deletes
// the sandbox directory on success and retains it (logging its path) on
// failure, per spec.md §4.5's "retained on failure for debugging" note.
type SandboxFactory interface {
	Acquire(ctx context.Context) (Sandbox, error)
	Release(ctx context.Context, sb Sandbox, buildSucceeded bool) error
}
