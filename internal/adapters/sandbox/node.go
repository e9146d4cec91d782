package sandbox

import (
	"context"
	"os"
	"path/filepath"

	"github.com/grindlemire/graft"
	shelladapter "go.nozem.dev/nozem/internal/adapters/shell"
	"go.nozem.dev/nozem/internal/core/ports"
	loggeradapter "go.nozem.dev/nozem/internal/adapters/logger"
)

// NodeID is the Graft node for the sandbox factory.
const NodeID graft.ID = "adapter.sandbox.factory"

func init() {
	graft.Register(graft.Node[ports.SandboxFactory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shelladapter.NodeID, loggeradapter.NodeID},
		Run: func(ctx context.Context) (ports.SandboxFactory, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			logger, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewFactory(baseDir(), executor, logger), nil
		},
	})
}

// baseDir honors NOZEM_SANDBOX_DIR for tests and CI sandboxing, falling back
// to a nozem-sandboxes directory under os.TempDir.
func baseDir() string {
	if dir := os.Getenv("NOZEM_SANDBOX_DIR"); dir != "" {
		return dir
	}
	return filepath.Join(os.TempDir(), "nozem-sandboxes")
}
