package build

import (
	"context"
	"os"
	"path/filepath"

	gitignore "github.com/sabhiram/go-gitignore"

	"go.nozem.dev/nozem/internal/adapters/fs"
	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

// buildExtract handles UnitKindExtract: install every dependency edge into
// a sandbox, then take the subset of installed files matching
// unit.ExtractPatterns as the artifact (spec.md §4.6: "extract units simply
// install their dependencies into a sandbox, then take the subset matching
// a glob pattern list as the artifact"). Extract units have no Root of
// their own, so the input Merkle omits a "source" branch and the per-unit
// Sidecar tier (there is no source directory to place one in) — lookup and
// store use only the shared chain.
func (b *Builder) buildExtract(ctx context.Context, unit domain.Unit, deps DependencyOutputs) (Output, error) {
	vertex := b.vertex(ctx, unit)

	emptySources := domain.NewFileSet("", nil)
	inputs, err := b.composeInputs(ctx, unit, emptySources, deps)
	if err != nil {
		werr := zerr.With(err, "unit", unit.Identifier.String())
		if vertex != nil {
			vertex.Done(werr)
		}
		return Output{}, werr
	}

	if !inputs.hermetic {
		werr := zerr.With(domain.ErrNonHermeticDependency, "unit", unit.Identifier.String())
		if vertex != nil {
			vertex.Done(werr)
		}
		return Output{}, werr
	}

	inputHash := inputs.tree.Hash()
	locator := domain.CacheLocator{InputHash: inputHash, DisplayName: unit.Identifier.String()}

	if cached, ok, err := b.cfg.Chain.LookupInto(ctx, locator, b.cfg.MaterializeDir); err == nil && ok {
		artifact, loadErr := loadCachedArtifact(cached, b.cfg.Hasher)
		if loadErr == nil {
			if vertex != nil {
				vertex.Cached()
			}
			return Output{Artifact: artifact, Hermetic: true, InputHash: inputHash, Cached: true}, nil
		}
	}

	sb, err := b.cfg.Sandboxes.Acquire(ctx)
	if err != nil {
		werr := zerr.With(zerr.Wrap(err, "acquire sandbox"), "unit", unit.Identifier.String())
		if vertex != nil {
			vertex.Done(werr)
		}
		return Output{}, werr
	}

	if err := b.installExtractDependencies(ctx, sb, unit, deps); err != nil {
		_ = b.cfg.Sandboxes.Release(ctx, sb, false)
		werr := zerr.With(err, "unit", unit.Identifier.String())
		if vertex != nil {
			vertex.Done(werr)
		}
		return Output{}, werr
	}

	paths, err := sb.InSourceArtifacts(nil)
	if err != nil {
		_ = b.cfg.Sandboxes.Release(ctx, sb, false)
		werr := zerr.With(zerr.Wrap(err, "list installed dependency files"), "unit", unit.Identifier.String())
		if vertex != nil {
			vertex.Done(werr)
		}
		return Output{}, werr
	}

	selected := matchExtractPatterns(paths, unit.ExtractPatterns)
	artifactFiles, err := hashArtifactPaths(sb.Root(), selected, b.cfg.Hasher)
	if err != nil {
		_ = b.cfg.Sandboxes.Release(ctx, sb, false)
		werr := zerr.With(err, "unit", unit.Identifier.String())
		if vertex != nil {
			vertex.Done(werr)
		}
		return Output{}, werr
	}

	// An extract unit has no Root of its own to write artifact files back
	// into (unlike buildHermetic), so materialize the selected files into a
	// stable directory before the sandbox is released out from under them.
	artifactFiles, err = materializeToStableDir(b.cfg.MaterializeDir, unit, inputHash, artifactFiles)
	if err != nil {
		_ = b.cfg.Sandboxes.Release(ctx, sb, false)
		werr := zerr.With(err, "unit", unit.Identifier.String())
		if vertex != nil {
			vertex.Done(werr)
		}
		return Output{}, werr
	}

	artifact := domain.NewArtifact(artifactFiles)
	cachedArtifact := ports.CachedArtifact{
		Schema:       artifact.Files.MarshalSchema(),
		ArtifactHash: artifact.ArtifactHash,
		SourceDir:    artifact.Files.Root(),
	}
	_ = b.cfg.Chain.Store(ctx, locator, cachedArtifact)

	if err := b.cfg.Sandboxes.Release(ctx, sb, true); err != nil && b.cfg.Logger != nil {
		b.cfg.Logger.Warn("failed to release sandbox", "unit", unit.Identifier.String(), "error", err.Error())
	}

	if vertex != nil {
		vertex.Done(nil)
	}

	return Output{Artifact: artifact, Hermetic: true, InputHash: inputHash, Cached: false}, nil
}

// materializeToStableDir copies files (rooted inside a sandbox about to be
// released) into a directory under materializeDir keyed by the unit and its
// input hash, then returns files rebased onto that directory. The same
// input hash will always resolve to the same destination, so a second build
// of the same extract unit within the same process just overwrites it with
// identical content.
func materializeToStableDir(materializeDir string, unit domain.Unit, inputHash string, files *domain.FileSet) (*domain.FileSet, error) {
	dest := filepath.Join(materializeDir, "extract", unit.Identifier.String(), inputHash)
	for _, rel := range files.Paths() {
		src := filepath.Join(files.Root(), rel)
		dst := filepath.Join(dest, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "create materialized artifact directory"), "path", rel)
		}
		if err := fs.CopyPreservingSymlinks(src, dst); err != nil {
			return nil, zerr.With(zerr.Wrap(err, "materialize artifact file"), "path", rel)
		}
	}
	return files.Rebase(dest), nil
}

// matchExtractPatterns selects the subset of paths matching any of
// patterns, using the same gitignore-style matcher the source walker and
// sandbox artifact exclusion use, but in include mode: a match selects the
// file rather than excluding it.
func matchExtractPatterns(paths, patterns []string) []string {
	if len(patterns) == 0 {
		return nil
	}
	matcher := gitignore.CompileIgnoreLines(patterns...)
	var selected []string
	for _, p := range paths {
		if matcher.MatchesPath(filepath.ToSlash(p)) {
			selected = append(selected, p)
		}
	}
	return selected
}
