package domain

// NpmDependencyInput is one of the three ways a unit's transitive NPM
// dependency contributes to its input Merkle (spec.md §4.6). Each hermetic
// variant commits to a filesIdentifier plus the dependency's own file
// contents; MonoRepoInPlace carries no hashable identity at all.
type NpmDependencyInput interface {
	// Hermetic reports whether this dependency has a stable hashable
	// identity. Only MonoRepoInPlace returns false.
	Hermetic() bool
}

// NpmRegistryDependency is an NPM dependency installed from a registry and
// resolved to a location on disk under some ancestor node_modules/.
// filesIdentifier is its declared version, guaranteed unique by registry
// conventions, so the dependency's files only need to be walked (not
// content-hashed against history) to notice an unexpected on-disk edit.
type NpmRegistryDependency struct {
	Version string
	Files   *FileSet
}

var (
	_ NpmDependencyInput = NpmRegistryDependency{}
	_ CompositeHashable  = NpmRegistryDependency{}
)

// Hermetic implements NpmDependencyInput.
func (NpmRegistryDependency) Hermetic() bool { return true }

// Children implements CompositeHashable.
func (d NpmRegistryDependency) Children() map[string]Hashable {
	return map[string]Hashable{
		"filesIdentifier": DirectHash(HashString(d.Version)),
		"files":           d.Files,
	}
}

// Hash implements Hashable.
func (d NpmRegistryDependency) Hash() string { return hashComposite(d.Children()) }

// MonoRepoBuild is another monorepo package built by nozem itself.
// filesIdentifier is the downstream artifact hash, and files is the
// post-build artifact set after transformMonoRepoArtifact's stripping, so
// an edit to a producer's implementation that doesn't change its public
// surface can still change a consumer's input hash exactly once, not twice.
type MonoRepoBuild struct {
	ArtifactHash string
	Files        *FileSet
}

var (
	_ NpmDependencyInput = MonoRepoBuild{}
	_ CompositeHashable  = MonoRepoBuild{}
)

// Hermetic implements NpmDependencyInput.
func (MonoRepoBuild) Hermetic() bool { return true }

// Children implements CompositeHashable.
func (d MonoRepoBuild) Children() map[string]Hashable {
	return map[string]Hashable{
		"filesIdentifier": DirectHash(d.ArtifactHash),
		"files":           d.Files,
	}
}

// Hash implements Hashable.
func (d MonoRepoBuild) Hash() string { return hashComposite(d.Children()) }

// MonoRepoInPlace is a monorepo package marked uncacheable. It produces no
// hashable identity; any package depending on one transitively becomes
// uncacheable too (internal/build's hermeticity propagation).
type MonoRepoInPlace struct {
	Identifier InternedString
}

var _ NpmDependencyInput = MonoRepoInPlace{}

// Hermetic implements NpmDependencyInput.
func (MonoRepoInPlace) Hermetic() bool { return false }
