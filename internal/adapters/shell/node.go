package shell

import (
	"context"

	"github.com/grindlemire/graft"
	"go.nozem.dev/nozem/internal/core/ports"
)

// NodeID is the Graft node for the command executor.
const NodeID graft.ID = "adapter.shell.executor"

func init() {
	graft.Register(graft.Node[ports.Executor]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Executor, error) {
			return NewExecutor(), nil
		},
	})
}
