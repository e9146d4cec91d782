package ports

import "context"

// OsToolLocator resolves an os-tool dependency edge's declared executable
// name to an absolute path on the host's $PATH, per unit declarations like
// {"type": "os", "executable": "node"} (spec.md §6). Resolutions are
// cached by the adapter keyed on domain.GenerateEnvID so a tool declared by
// a hundred units is only probed once.
//
//go:generate go run go.uber.org/mock/mockgen -source=ostool.go -destination=mocks/mock_ostool.go -package=mocks
type OsToolLocator interface {
	Locate(ctx context.Context, executable string) (resolvedPath string, err error)

	// ResolveAll warms the cache for every name in executables concurrently,
	// bounded against a fixed-size worker pool, so a unit declaring several
	// os-tool edges doesn't pay for N sequential $PATH walks. The returned
	// error is the first resolution failure encountered; callers that want
	// partial results on error should resolve individually via Locate
	// instead.
	ResolveAll(ctx context.Context, executables []string) error
}
