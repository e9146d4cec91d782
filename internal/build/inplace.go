package build

import (
	"context"
	"path/filepath"

	"go.nozem.dev/nozem/internal/adapters/fs"
	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

// buildInPlace is the non-hermetic fallback: a unit that transitively
// depends on a MonoRepoInPlace producer has no stable input identity, so it
// skips the sandbox entirely and runs its build command directly against
// the real source tree (spec.md §4.6: "runs directly in the source tree
// using the external build command"). Its own output is therefore also
// MonoRepoInPlace to any of its consumers, and nothing is cached.
func (b *Builder) buildInPlace(ctx context.Context, unit domain.Unit, deps DependencyOutputs, root string) (Output, error) {
	vertex := b.vertex(ctx, unit)

	if unit.Kind == domain.UnitKindTypeScriptBuild && unit.PatchTsconfig {
		if err := patchTsconfig(root + "/tsconfig.json"); err != nil {
			werr := zerr.With(zerr.Wrap(err, "patch tsconfig.json"), "unit", unit.Identifier.String())
			if vertex != nil {
				vertex.Done(werr)
			}
			return Output{}, werr
		}
	}

	if err := b.installInPlaceDependencies(root, unit, deps); err != nil {
		werr := zerr.With(err, "unit", unit.Identifier.String())
		if vertex != nil {
			vertex.Done(werr)
		}
		return Output{}, werr
	}

	if len(unit.BuildCommand) > 0 {
		if err := b.cfg.Executor.Execute(ctx, ports.CommandSpec{
			Argv:       unit.BuildCommand,
			Env:        resolveEnv(unit.Env),
			WorkingDir: root,
			Stdout:     vertexWriter(vertex, false),
			Stderr:     vertexWriter(vertex, true),
		}); err != nil {
			werr := zerr.With(zerr.Wrap(err, "run in-place build command"), "unit", unit.Identifier.String())
			if vertex != nil {
				vertex.Done(werr)
			}
			return Output{}, werr
		}
	}

	if b.cfg.RunTests && len(unit.TestCommand) > 0 {
		if err := b.cfg.Executor.Execute(ctx, ports.CommandSpec{
			Argv:       unit.TestCommand,
			Env:        resolveEnv(unit.Env),
			WorkingDir: root,
			Stdout:     vertexWriter(vertex, false),
			Stderr:     vertexWriter(vertex, true),
		}); err != nil {
			werr := zerr.With(zerr.Wrap(err, "run in-place test command"), "unit", unit.Identifier.String())
			if vertex != nil {
				vertex.Done(werr)
			}
			return Output{}, werr
		}
	}

	artifactFiles, err := b.cfg.Walker.Walk(root, artifactExcludePatterns(unit))
	if err != nil {
		werr := zerr.With(zerr.Wrap(err, "walk in-place build output"), "unit", unit.Identifier.String())
		if vertex != nil {
			vertex.Done(werr)
		}
		return Output{}, werr
	}
	artifactFiles = transformMonoRepoArtifact(artifactFiles)

	if vertex != nil {
		vertex.Done(nil)
	}

	return Output{
		Artifact:  domain.NewArtifact(artifactFiles),
		Hermetic:  false,
		InputHash: "",
		Cached:    false,
	}, nil
}

// installInPlaceDependencies links or copies dependency edges directly into
// the real source tree's node_modules, the same edge semantics as a
// sandbox install but targeting root itself rather than a sandbox's src/.
func (b *Builder) installInPlaceDependencies(root string, unit domain.Unit, deps DependencyOutputs) error {
	for _, edge := range unit.Dependencies {
		if err := b.installInPlaceEdge(root, edge, deps); err != nil {
			return err
		}
	}
	return nil
}

func (b *Builder) installInPlaceEdge(root string, edge domain.DependencyEdge, deps DependencyOutputs) error {
	switch e := edge.(type) {
	case domain.LinkNpmEdge:
		producer, ok := deps[e.NodeID]
		if !ok {
			return zerr.With(domain.ErrMissingDependency, "unit", e.NodeID.String())
		}
		return linkInPlace(root, producer.Artifact.Files.Root(), e.NodeID.String())
	case domain.ExternalNpmEdge:
		return linkInPlace(root, e.ResolvedLocation, e.Name)
	case domain.CopyEdge, domain.OsToolEdge:
		// the hermetic path installs copy and os-tool edges into the
		// sandbox (files copied into src/, executables linked into bin/);
		// the in-place path installs neither: os-tool edges are left to
		// whatever PATH the command runs with, and a copy edge's files are
		// only meaningful inside a sandbox snapshot, not a live in-place
		// source tree a developer may also be editing.
		return nil
	default:
		return zerr.With(domain.ErrUnknownDependencyKind, "kind", string(edge.Kind()))
	}
}

// linkInPlace symlinks a dependency's resolved location into root's
// node_modules under name, mirroring the hermetic path's InstallSymlink
// semantics but writing directly at the real source tree.
func linkInPlace(root, target, name string) error {
	dest := filepath.Join(root, "node_modules", name)
	return fs.LinkOrCopy(target, dest)
}
