// Package build implements the hermetic package build spec.md §4.6
// describes: composing a unit's input Merkle, checking the cache chain,
// and — on a miss — populating a sandbox, running the build (and
// optionally test) command, and snapshotting the result as an artifact.
package build

import (
	"context"
	"os"
	"path/filepath"

	"go.nozem.dev/nozem/internal/adapters/cache"
	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
)

// logicVersion is folded into every unit's input hash as a cache buster:
// bumping it invalidates every cache entry on the next release, for
// changes to this package's own build semantics that aren't otherwise
// visible in a unit's declared inputs.
const logicVersion = 1

// Output is the result of building (or fetching from cache) one unit. The
// scheduler holds one Output per completed unit and hands it to build.Build
// for any dependent whose edges reference that unit.
type Output struct {
	Artifact domain.Artifact
	// Hermetic is false only once a MonoRepoInPlace dependency has
	// propagated non-hermetic status up through a link-npm or copy edge.
	Hermetic bool
	// InputHash is empty when Hermetic is false: a non-hermetic build has
	// no stable identity to cache against.
	InputHash string
	Cached    bool
}

// DependencyOutputs maps a unit identifier to its already-computed Output,
// supplied by the scheduler once that unit's own build has completed
// (spec.md §5: "dependency build() strictly happens-before dependent
// build()"). Only identifiers referenced by a link-npm or copy edge need
// an entry.
type DependencyOutputs map[domain.InternedString]Output

// Config bundles Builder's adapter dependencies.
type Config struct {
	Walker       ports.SourceWalker
	Hasher       ports.ContentHasher
	Chain        *cache.Chain
	Sandboxes    ports.SandboxFactory
	OsTools      ports.OsToolLocator
	Executor     ports.Executor
	Telemetry    ports.Telemetry
	Logger       ports.Logger
	MonorepoRoot string
	// RunTests, when true, runs a unit's TestCommand after BuildCommand.
	// Test output never becomes part of the artifact. In a hermetic build it
	// stays in the sandbox and is not copied back to the source tree.
	RunTests bool
	// MaterializeDir is the scratch directory a packed cache hit (local or
	// remote tier) is unpacked into before being handed to a dependent.
	// Defaults to a nozem-materialize directory under os.TempDir().
	MaterializeDir string
}

// Builder implements one unit's hermetic (or, for a non-hermetic
// transitive dependency, in-place) build.
type Builder struct {
	cfg Config
}

// NewBuilder creates a Builder.
func NewBuilder(cfg Config) *Builder {
	if cfg.MaterializeDir == "" {
		cfg.MaterializeDir = filepath.Join(os.TempDir(), "nozem-materialize")
	}
	return &Builder{cfg: cfg}
}

// Build dispatches on unit.Kind and returns its Output.
func (b *Builder) Build(ctx context.Context, unit domain.Unit, deps DependencyOutputs) (Output, error) {
	if unit.Kind == domain.UnitKindExtract {
		return b.buildExtract(ctx, unit, deps)
	}
	return b.buildCommandUnit(ctx, unit, deps)
}

func (b *Builder) absRoot(unit domain.Unit) string {
	if unit.Root == "" {
		return b.cfg.MonorepoRoot
	}
	return filepath.Join(b.cfg.MonorepoRoot, unit.Root)
}

func (b *Builder) vertex(ctx context.Context, unit domain.Unit) ports.Vertex {
	if b.cfg.Telemetry == nil {
		return nil
	}
	return b.cfg.Telemetry.Vertex(ctx, unit.Identifier.String(), "build "+unit.Identifier.String())
}
