package app

import (
	"context"

	"github.com/grindlemire/graft"
	configadapter "go.nozem.dev/nozem/internal/adapters/config"
	loggeradapter "go.nozem.dev/nozem/internal/adapters/logger"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.nozem.dev/nozem/internal/engine/scheduler"
)

// NodeID is the Graft node for the application layer.
const NodeID graft.ID = "app.main"

func init() {
	graft.Register(graft.Node[*App]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{configadapter.NodeID, scheduler.NodeID, loggeradapter.NodeID},
		Run: func(ctx context.Context) (*App, error) {
			loader, err := graft.Dep[ports.UnitLoader](ctx)
			if err != nil {
				return nil, err
			}
			sched, err := graft.Dep[*scheduler.Scheduler](ctx)
			if err != nil {
				return nil, err
			}
			logger, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return New(loader, sched, logger), nil
		},
	})
}
