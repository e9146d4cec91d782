package logger

import (
	"context"

	"github.com/grindlemire/graft"
	"go.nozem.dev/nozem/internal/core/ports"
)

// NodeID is the Graft node for the logger.
const NodeID graft.ID = "adapter.logger"

func init() {
	graft.Register(graft.Node[ports.Logger]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Logger, error) {
			return New(), nil
		},
	})
}
