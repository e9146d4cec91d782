// Package shell runs external commands on behalf of the hermetic sandbox and
// the non-hermetic in-place build.
package shell

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

// Executor implements ports.Executor using os/exec. Unlike the teacher's PTY
// version, nozem never needs an interactive terminal for a build command —
// a sandboxed unit build just needs its stdout/stderr streamed to whatever
// the caller (the builder's telemetry vertex) provides — so this drops the
// github.com/creack/pty dependency and the Process/Resize abstraction built
// around it.
type Executor struct{}

var _ ports.Executor = (*Executor)(nil)

// NewExecutor creates a new Executor.
func NewExecutor() *Executor {
	return &Executor{}
}

// Execute implements ports.Executor.
func (e *Executor) Execute(ctx context.Context, spec ports.CommandSpec) error {
	if len(spec.Argv) == 0 {
		return zerr.New("command spec has an empty argv")
	}

	name := spec.Argv[0]
	args := spec.Argv[1:]

	executable := name
	if !filepath.IsAbs(name) {
		if resolved, err := lookPath(name, spec.Env); err == nil {
			executable = resolved
		}
	}

	cmd := exec.CommandContext(ctx, executable, args...) //nolint:gosec // argv is caller-controlled, not raw user input
	if len(cmd.Args) > 0 {
		cmd.Args[0] = name
	}
	cmd.Dir = spec.WorkingDir
	cmd.Env = spec.Env
	cmd.Stdout = spec.Stdout
	cmd.Stderr = spec.Stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode)
	}
	return nil
}

// lookPath searches for file among the PATH entries found in env, mirroring
// the teacher's own lookPath/findExecutable helpers rather than os/exec's
// LookPath, since the relevant PATH lives in spec.Env, not the calling
// process's environment (os/exec.LookPath only ever consults the latter).
func lookPath(file string, env []string) (string, error) {
	path := pathFromEnv(env)
	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, file)
		if findExecutable(candidate) == nil {
			return candidate, nil
		}
	}
	return "", exec.ErrNotFound
}

func pathFromEnv(env []string) string {
	for _, entry := range env {
		if rest, ok := strings.CutPrefix(entry, "PATH="); ok {
			return rest
		}
	}
	return ""
}

func findExecutable(file string) error {
	info, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := info.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
