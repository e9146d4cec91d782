package domain

// UnitKind discriminates the three buildable shapes spec.md §3 names.
type UnitKind string

const (
	// UnitKindCommand runs an arbitrary shell build command in a sandbox.
	UnitKindCommand UnitKind = "command"
	// UnitKindTypeScriptBuild is a command unit that additionally gets its
	// tsconfig.json patched before the build command runs.
	UnitKindTypeScriptBuild UnitKind = "typescript-build"
	// UnitKindExtract repackages another unit's output as a glob-selected subset.
	UnitKindExtract UnitKind = "extract"
)

// Unit is one buildable node in the graph. All three kinds share this shape;
// fields meaningful only to one kind are documented as such. This mirrors
// the teacher's flat TaskDTO-style shape (one struct, a discriminant field)
// rather than three disjoint Go types, since every field still participates
// in input-hash computation uniformly regardless of kind.
type Unit struct {
	Identifier InternedString
	Kind       UnitKind

	// Root is the unit's source directory, relative to the monorepo root.
	Root string

	// NonSources are additional gitignore-style patterns (beyond .gitignore
	// and .nzm-*) excluded from the unit's source FileSet.
	NonSources []string

	// NonArtifacts are additional patterns excluded when snapshotting the
	// sandbox's src/ tree into the build artifact.
	NonArtifacts []string

	// BuildCommand is the shell command run inside the sandbox. Nil for
	// extract units, which never execute anything.
	BuildCommand []string

	// TestCommand is run after BuildCommand when testing is enabled. Its
	// outputs are excluded from the artifact; in a hermetic build they stay
	// in the sandbox and are not copied back to the source tree.
	TestCommand []string

	Dependencies []DependencyEdge

	// Env maps environment variable name to value-or-directive. A value
	// beginning with '|' means "inherit from the process environment,
	// defaulting to the remainder of the string if unset"; a key beginning
	// with '&' is passed to the child process but excluded from the input hash.
	Env map[string]string

	// PatchTsconfig is meaningful only for UnitKindTypeScriptBuild: strip
	// references/composite/inlineSourceMap/inlineSources from tsconfig.json
	// before building.
	PatchTsconfig bool

	// ExtractPatterns is meaningful only for UnitKindExtract: the glob include
	// list selecting which of the (single) dependency's output files become
	// this unit's artifact.
	ExtractPatterns []string
}

// DependencyIdentifiers returns the identifiers of every monorepo unit this
// unit's dependency edges reference (link-npm and copy edges; external-npm
// and os-tool edges do not reference graph nodes).
func (u *Unit) DependencyIdentifiers() []InternedString {
	var ids []InternedString
	for _, edge := range u.Dependencies {
		if id, ok := NodeDependency(edge); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
