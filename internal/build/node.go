package build

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.nozem.dev/nozem/internal/adapters/cache"
	"go.nozem.dev/nozem/internal/adapters/fs"
	loggeradapter "go.nozem.dev/nozem/internal/adapters/logger"
	"go.nozem.dev/nozem/internal/adapters/ostool"
	"go.nozem.dev/nozem/internal/adapters/sandbox"
	shelladapter "go.nozem.dev/nozem/internal/adapters/shell"
	"go.nozem.dev/nozem/internal/adapters/telemetry"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

// NodeID is the Graft node for the hermetic package builder.
const NodeID graft.ID = "engine.build.builder"

func init() {
	graft.Register(graft.Node[*Builder]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			fs.WalkerNodeID,
			fs.HasherNodeID,
			cache.ChainNodeID,
			sandbox.NodeID,
			ostool.NodeID,
			shelladapter.NodeID,
			telemetry.NodeID,
			loggeradapter.NodeID,
		},
		Run: func(ctx context.Context) (*Builder, error) {
			walker, err := graft.Dep[ports.SourceWalker](ctx)
			if err != nil {
				return nil, err
			}
			hasher, err := graft.Dep[*fs.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			chain, err := graft.Dep[*cache.Chain](ctx)
			if err != nil {
				return nil, err
			}
			sandboxes, err := graft.Dep[ports.SandboxFactory](ctx)
			if err != nil {
				return nil, err
			}
			osTools, err := graft.Dep[ports.OsToolLocator](ctx)
			if err != nil {
				return nil, err
			}
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			tel, err := graft.Dep[ports.Telemetry](ctx)
			if err != nil {
				return nil, err
			}
			logger, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}

			root, rootErr := monorepoRoot()
			if rootErr != nil {
				return nil, rootErr
			}

			return NewBuilder(Config{
				Walker:       walker,
				Hasher:       hasher,
				Chain:        chain,
				Sandboxes:    sandboxes,
				OsTools:      osTools,
				Executor:     executor,
				Telemetry:    tel,
				Logger:       logger,
				MonorepoRoot: root,
				RunTests:     os.Getenv("NOZEM_RUN_TESTS") != "",
			}), nil
		},
	})
}

// monorepoRoot honors NOZEM_ROOT (the directory nozem.json was loaded from)
// for callers that have already resolved it, falling back to the process's
// working directory.
func monorepoRoot() (string, error) {
	if dir := os.Getenv("NOZEM_ROOT"); dir != "" {
		return dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", zerr.Wrap(err, "resolve monorepo root")
	}
	return wd, nil
}
