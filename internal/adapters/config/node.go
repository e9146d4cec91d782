package config

import (
	"context"

	"github.com/grindlemire/graft"
	loggeradapter "go.nozem.dev/nozem/internal/adapters/logger"
	"go.nozem.dev/nozem/internal/core/ports"
)

// NodeID is the Graft node for the unit-definitions loader.
const NodeID graft.ID = "adapter.config.loader"

func init() {
	graft.Register(graft.Node[ports.UnitLoader]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{loggeradapter.NodeID},
		Run: func(ctx context.Context) (ports.UnitLoader, error) {
			logger, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewLoader(logger), nil
		},
	})
}
