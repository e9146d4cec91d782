package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	loggeradapter "go.nozem.dev/nozem/internal/adapters/logger"
	telemetryadapter "go.nozem.dev/nozem/internal/adapters/telemetry"
	"go.nozem.dev/nozem/internal/build"
	"go.nozem.dev/nozem/internal/core/ports"
)

// NodeID is the Graft node for the build scheduler.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{build.NodeID, loggeradapter.NodeID, telemetryadapter.NodeID},
		Run: func(ctx context.Context) (*Scheduler, error) {
			builder, err := graft.Dep[*build.Builder](ctx)
			if err != nil {
				return nil, err
			}
			logger, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			telemetry, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}
			return NewScheduler(builder, logger, telemetry), nil
		},
	})
}
