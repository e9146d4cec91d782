package ostool

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.nozem.dev/nozem/internal/core/ports"
)

// NodeID is the Graft node for the os-tool resolver.
const NodeID graft.ID = "adapter.ostool.resolver"

func init() {
	graft.Register(graft.Node[ports.OsToolLocator]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.OsToolLocator, error) {
			return NewResolver(cacheDir(), os.Getenv("PATH")), nil
		},
	})
}

// cacheDir honors NOZEM_OSTOOL_CACHE_DIR for tests and CI sandboxing,
// falling back to DefaultCacheDir.
func cacheDir() string {
	if dir := os.Getenv("NOZEM_OSTOOL_CACHE_DIR"); dir != "" {
		return dir
	}
	return DefaultCacheDir()
}
