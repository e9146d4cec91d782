package build

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.nozem.dev/nozem/internal/core/domain"
	"go.nozem.dev/nozem/internal/core/ports"
	"go.trai.ch/zerr"
)

// inputTree is a unit's fully composed spec.md §4.6 input Merkle, plus
// whether every NPM dependency it transitively reaches resolved to a
// hashable identity.
type inputTree struct {
	tree     domain.Hashable
	hermetic bool
}

// composeInputs builds a unit's input Merkle from its source FileSet, its
// resolved Env, and each dependency edge, resolving os-tool paths and
// external-npm locations as needed. A link-npm or copy edge pointing at a
// non-hermetic (MonoRepoInPlace) producer propagates non-hermeticity to the
// whole unit (spec.md §4.6: "a package is hermetically cacheable iff all
// its NPM dependencies are hashable").
func (b *Builder) composeInputs(ctx context.Context, unit domain.Unit, sources *domain.FileSet, deps DependencyOutputs) (inputTree, error) {
	depsBranch := map[string]domain.Hashable{}
	osToolsBranch := map[string]domain.Hashable{}
	externalFilesBranch := map[string]domain.Hashable{}
	hermetic := true

	if err := b.warmOsToolCache(ctx, unit); err != nil {
		return inputTree{}, zerr.Wrap(err, "resolve os-tool dependencies")
	}

	for _, edge := range unit.Dependencies {
		switch e := edge.(type) {
		case domain.LinkNpmEdge:
			producer, ok := deps[e.NodeID]
			if !ok {
				return inputTree{}, zerr.With(domain.ErrMissingDependency, "unit", e.NodeID.String())
			}
			if !producer.Hermetic {
				hermetic = false
				// No stable identity to hash; the whole unit is already
				// non-hermetic and its input tree will not be used for
				// cache lookup, so a placeholder is sufficient here.
				depsBranch[e.NodeID.String()] = domain.DirectHash("non-hermetic:" + e.NodeID.String())
				continue
			}
			depsBranch[e.NodeID.String()] = domain.MonoRepoBuild{
				ArtifactHash: producer.Artifact.ArtifactHash,
				Files:        producer.Artifact.Files,
			}

		case domain.ExternalNpmEdge:
			files, err := b.cfg.Walker.Walk(e.ResolvedLocation, []string{"node_modules/"})
			if err != nil {
				return inputTree{}, zerr.With(zerr.Wrap(err, "walk external npm dependency"), "name", e.Name)
			}
			depsBranch[e.Name] = domain.NpmRegistryDependency{Version: e.VersionRange, Files: files}

		case domain.OsToolEdge:
			resolved, err := b.cfg.OsTools.Locate(ctx, e.Executable)
			if err != nil {
				return inputTree{}, zerr.With(zerr.Wrap(err, "locate os-tool dependency"), "executable", e.Executable)
			}
			osToolsBranch[e.Executable] = domain.DirectHash(domain.HashString(resolved))

		case domain.CopyEdge:
			producer, ok := deps[e.NodeID]
			if !ok {
				return inputTree{}, zerr.With(domain.ErrMissingDependency, "unit", e.NodeID.String())
			}
			if !producer.Hermetic {
				hermetic = false
			}
			key := fmt.Sprintf("%s:%s", e.NodeID.String(), e.Subdir)
			externalFilesBranch[key] = producer.Artifact.Files

		default:
			return inputTree{}, zerr.With(domain.ErrUnknownDependencyKind, "kind", string(edge.Kind()))
		}
	}

	tree := domain.NewComposite(map[string]domain.Hashable{
		"source":        sources,
		"env":           composeEnvMerkle(unit.Env),
		"deps":          domain.NewComposite(depsBranch),
		"osTools":       domain.NewComposite(osToolsBranch),
		"externalFiles": domain.NewComposite(externalFilesBranch),
		"v":             domain.DirectHash(domain.HashString(fmt.Sprintf("%d", logicVersion))),
	})

	return inputTree{tree: tree, hermetic: hermetic}, nil
}

// warmOsToolCache resolves every os-tool edge a unit declares in one bounded,
// concurrent pass before composeInputs's per-edge loop reads them back one at
// a time. A no-op when the unit has no os-tool edges or no locator is wired
// (build.Config.OsTools is nil in tests that never exercise os-tool edges).
func (b *Builder) warmOsToolCache(ctx context.Context, unit domain.Unit) error {
	if b.cfg.OsTools == nil {
		return nil
	}
	var executables []string
	for _, edge := range unit.Dependencies {
		if e, ok := edge.(domain.OsToolEdge); ok {
			executables = append(executables, e.Executable)
		}
	}
	if len(executables) == 0 {
		return nil
	}
	return b.cfg.OsTools.ResolveAll(ctx, executables)
}

// installEdge installs one dependency edge's files into sb, used by both
// the hermetic build path and extract units.
func (b *Builder) installEdge(ctx context.Context, sb ports.Sandbox, edge domain.DependencyEdge, deps DependencyOutputs) error {
	switch e := edge.(type) {
	case domain.LinkNpmEdge:
		producer, ok := deps[e.NodeID]
		if !ok {
			return zerr.With(domain.ErrMissingDependency, "unit", e.NodeID.String())
		}
		if err := sb.InstallSymlink("node_modules/"+e.NodeID.String(), producer.Artifact.Files.Root()); err != nil {
			return err
		}
		if e.IncludeExecutables {
			// Best-effort .bin exposure: without parsing the producer's
			// package.json "bin" field we can't name individual binaries,
			// so expose the whole package under its own node id and let the
			// build command's own PATH resolution find it.
			if err := sb.InstallSymlink("node_modules/.bin/"+e.NodeID.String(), producer.Artifact.Files.Root()); err != nil {
				return err
			}
		}
		return nil

	case domain.CopyEdge:
		producer, ok := deps[e.NodeID]
		if !ok {
			return zerr.With(domain.ErrMissingDependency, "unit", e.NodeID.String())
		}
		return sb.AddSrcFiles(
			prefixFileSet(producer.Artifact.Files, e.Subdir),
			prefixResolver(producer.Artifact.Files.Root(), e.Subdir),
		)

	case domain.ExternalNpmEdge:
		return sb.InstallSymlink("node_modules/"+e.Name, e.ResolvedLocation)

	case domain.OsToolEdge:
		resolved, err := b.cfg.OsTools.Locate(ctx, e.Executable)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "locate os-tool dependency"), "executable", e.Executable)
		}
		return sb.InstallExecutable(e.RenameTo, resolved)

	default:
		return zerr.With(domain.ErrUnknownDependencyKind, "kind", string(edge.Kind()))
	}
}

func (b *Builder) installDependencies(ctx context.Context, sb ports.Sandbox, unit domain.Unit, deps DependencyOutputs) error {
	for _, edge := range unit.Dependencies {
		if err := b.installEdge(ctx, sb, edge, deps); err != nil {
			return err
		}
	}
	return nil
}

// installEdgeCopy is installEdge's counterpart for extract units: a
// link-npm or external-npm edge is materialized as real copied files
// rather than a symlink, since InSourceArtifacts walks the sandbox tree
// with filepath.WalkDir, which never descends into a symlinked directory.
// A regular build's artifact snapshot always excludes node_modules/
// wholesale (artifactExcludePatterns), so the symlink shortcut in
// installEdge is harmless there; an extract unit's entire purpose is to
// select files out of node_modules, so its files must be real.
func (b *Builder) installEdgeCopy(ctx context.Context, sb ports.Sandbox, edge domain.DependencyEdge, deps DependencyOutputs) error {
	switch e := edge.(type) {
	case domain.LinkNpmEdge:
		producer, ok := deps[e.NodeID]
		if !ok {
			return zerr.With(domain.ErrMissingDependency, "unit", e.NodeID.String())
		}
		subdir := "node_modules/" + e.NodeID.String()
		return sb.AddSrcFiles(
			prefixFileSet(producer.Artifact.Files, subdir),
			prefixResolver(producer.Artifact.Files.Root(), subdir),
		)

	case domain.ExternalNpmEdge:
		files, err := b.cfg.Walker.Walk(e.ResolvedLocation, []string{"node_modules/"})
		if err != nil {
			return zerr.With(zerr.Wrap(err, "walk external npm dependency"), "name", e.Name)
		}
		subdir := "node_modules/" + e.Name
		return sb.AddSrcFiles(prefixFileSet(files, subdir), prefixResolver(files.Root(), subdir))

	case domain.CopyEdge, domain.OsToolEdge:
		return b.installEdge(ctx, sb, edge, deps)

	default:
		return zerr.With(domain.ErrUnknownDependencyKind, "kind", string(edge.Kind()))
	}
}

func (b *Builder) installExtractDependencies(ctx context.Context, sb ports.Sandbox, unit domain.Unit, deps DependencyOutputs) error {
	for _, edge := range unit.Dependencies {
		if err := b.installEdgeCopy(ctx, sb, edge, deps); err != nil {
			return err
		}
	}
	return nil
}

// prefixFileSet returns a FileSet whose relative paths are all prefixed
// with subdir (used to stage a copy-edge producer's output at a
// subdirectory of the consumer's source tree), rooted at the producer's own
// root so callers can still resolve a prefixed path's original file by
// trimming the prefix back off (see prefixResolver). An empty subdir still
// gets a "." prefix so the trim is always well defined.
func prefixFileSet(files *domain.FileSet, subdir string) *domain.FileSet {
	prefix := subdir
	if prefix == "" {
		prefix = "."
	}
	entries := make(map[string]string, files.Len())
	for _, p := range files.Paths() {
		hash, _ := files.FileHash(p)
		entries[prefix+"/"+p] = hash
	}
	return domain.NewFileSet(files.Root(), entries)
}

// prefixResolver returns the resolve callback AddSrcFiles needs for a
// FileSet built by prefixFileSet: it strips prefix back off the relative
// path AddSrcFiles hands back and joins the remainder onto producerRoot to
// find the real file.
func prefixResolver(producerRoot, subdir string) func(relPath string) (string, error) {
	prefix := subdir
	if prefix == "" {
		prefix = "."
	}
	prefix += "/"
	return func(relPath string) (string, error) {
		orig := strings.TrimPrefix(relPath, prefix)
		return filepath.Join(producerRoot, orig), nil
	}
}
