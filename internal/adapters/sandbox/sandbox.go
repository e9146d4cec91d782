// Package sandbox implements the ephemeral bin/+src/ build environment a
// unit's build command runs inside (spec.md §4.5), grounded on the teacher's
// pattern of a per-build scratch directory under os.TempDir plus
// adapters/fs's symlink-preserving copy helpers.
package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.nozem.dev/nozem/internal/adapters/fs"
	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

const (
	binDirName = "bin"
	srcDirName = "src"
)

// Sandbox implements ports.Sandbox as a temporary directory with a bin/ and
// src/ subdirectory.
type Sandbox struct {
	root     string
	executor ports.Executor
}

var _ ports.Sandbox = (*Sandbox)(nil)

func newSandbox(root string, executor ports.Executor) (*Sandbox, error) {
	if err := os.MkdirAll(filepath.Join(root, binDirName), 0o755); err != nil {
		return nil, zerr.Wrap(err, "create sandbox bin directory")
	}
	if err := os.MkdirAll(filepath.Join(root, srcDirName), 0o755); err != nil {
		return nil, zerr.Wrap(err, "create sandbox src directory")
	}
	return &Sandbox{root: root, executor: executor}, nil
}

// Root implements ports.Sandbox.
func (s *Sandbox) Root() string { return s.root }

func (s *Sandbox) binDir() string { return filepath.Join(s.root, binDirName) }
func (s *Sandbox) srcDir() string { return filepath.Join(s.root, srcDirName) }

// InstallExecutable implements ports.Sandbox.
func (s *Sandbox) InstallExecutable(renameTo, resolvedPath string) error {
	name := renameTo
	if name == "" {
		name = filepath.Base(resolvedPath)
	}
	dest := filepath.Join(s.binDir(), name)
	if err := fs.LinkOrCopy(resolvedPath, dest); err != nil {
		return zerr.With(zerr.Wrap(err, "install os-tool executable into sandbox"), "executable", name)
	}
	return nil
}

// InstallSymlink implements ports.Sandbox.
func (s *Sandbox) InstallSymlink(relPath, target string) error {
	dest := filepath.Join(s.srcDir(), relPath)
	if err := fs.LinkOrCopy(target, dest); err != nil {
		return zerr.With(zerr.Wrap(err, "install linked dependency into sandbox"), "path", relPath)
	}
	return nil
}

// AddSrcFiles implements ports.Sandbox.
func (s *Sandbox) AddSrcFiles(fileSet *domain.FileSet, resolve func(relPath string) (string, error)) error {
	for _, relPath := range fileSet.Paths() {
		absPath, err := resolve(relPath)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "resolve source file for sandbox copy"), "path", relPath)
		}
		dest := filepath.Join(s.srcDir(), relPath)
		if err := fs.CopyPreservingSymlinks(absPath, dest); err != nil {
			return zerr.With(zerr.Wrap(err, "copy source file into sandbox"), "path", relPath)
		}
	}
	return nil
}

// TouchFile implements ports.Sandbox.
func (s *Sandbox) TouchFile(relPath string) error {
	dest := filepath.Join(s.root, relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return zerr.Wrap(err, "create directory for touched file")
	}
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "touch file in sandbox"), "path", relPath)
	}
	return f.Close()
}

// Execute implements ports.Sandbox, restricting PATH to the sandbox's bin/
// directory and defaulting WorkingDir to the sandbox's src/ directory.
func (s *Sandbox) Execute(ctx context.Context, spec ports.CommandSpec) error {
	restricted := spec
	if restricted.WorkingDir == "" {
		restricted.WorkingDir = s.srcDir()
	}
	restricted.Env = appendOrReplacePath(spec.Env, s.binDir())
	return s.executor.Execute(ctx, restricted)
}

// appendOrReplacePath returns a copy of env with PATH set to binDir,
// discarding any inherited PATH entry, so the processes the build command
// starts only see sandbox-installed tools on PATH. The command's own
// argv[0] is looked up in bin/ first; when bin/ does not have it,
// shell.Executor falls back to nozem's own PATH.
func appendOrReplacePath(env []string, binDir string) []string {
	out := make([]string, 0, len(env)+1)
	for _, entry := range env {
		if strings.HasPrefix(entry, "PATH=") {
			continue
		}
		out = append(out, entry)
	}
	out = append(out, "PATH="+binDir)
	return out
}

// InSourceArtifacts implements ports.Sandbox.
func (s *Sandbox) InSourceArtifacts(excludePatterns []string) ([]string, error) {
	matcher := newExcludeMatcher(excludePatterns)

	var paths []string
	err := filepath.WalkDir(s.srcDir(), func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(s.srcDir(), path)
		if relErr != nil {
			return relErr
		}
		if matcher(rel) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, zerr.Wrap(err, "walk sandbox src directory for artifacts")
	}
	sort.Strings(paths)
	return paths, nil
}
