package telemetry

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.nozem.dev/nozem/internal/core/ports"
)

// NodeID is the Graft node for the telemetry sink.
const NodeID graft.ID = "adapter.telemetry"

func init() {
	graft.Register(graft.Node[ports.Telemetry]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.Telemetry, error) {
			if os.Getenv("NOZEM_QUIET") != "" {
				return NewNoOp(), nil
			}
			return New(), nil
		},
	})
}
