package domain

import "go.trai.ch/zerr"

var (
	// ErrUnitAlreadyExists is returned when two units in nozem.json declare the same identifier.
	ErrUnitAlreadyExists = zerr.New("unit already exists")

	// ErrMissingDependency is returned when a unit references a dependency identifier that
	// was never declared in nozem.json.
	ErrMissingDependency = zerr.New("missing dependency")

	// ErrCycleDetected is returned when the declared dependency edges form a cycle.
	ErrCycleDetected = zerr.New("cycle detected")

	// ErrUnitNotFound is returned when a requested unit identifier is not present in the graph.
	ErrUnitNotFound = zerr.New("unit not found")

	// ErrNoTargetsSpecified is returned when a build is given targets but none of them
	// names a unit or a directory containing a unit's root.
	ErrNoTargetsSpecified = zerr.New("no targets specified")

	// ErrEmptyGraph is returned when nozem.json declares zero units.
	ErrEmptyGraph = zerr.New("no nodes are buildable")

	// ErrHashMismatch is returned when a cached artifact's recomputed hash no longer
	// matches the hash recorded alongside it; the entry is treated as a cache miss.
	ErrHashMismatch = zerr.New("cached artifact hash mismatch")

	// ErrSerializedHashMismatch is returned by Merkle tree deserialization when the
	// reconstructed tree's hash does not equal the hash recorded in the serialized form.
	ErrSerializedHashMismatch = zerr.New("serialized merkle hash mismatch")

	// ErrUnknownDependencyKind is returned when a BuildDepSpec's "type" tag is not recognized.
	ErrUnknownDependencyKind = zerr.New("unknown dependency kind")

	// ErrUnknownUnitKind is returned when a Unit's "kind" tag is not recognized.
	ErrUnknownUnitKind = zerr.New("unknown unit kind")

	// ErrOsToolNotFound is returned when an os-tool dependency cannot be located on $PATH.
	ErrOsToolNotFound = zerr.New("os tool not found")

	// ErrNonHermeticDependency is returned when a hermetic package build discovers a
	// transitive dependency that is not hashable (MonoRepoInPlace), which makes the
	// package itself non-hermetic.
	ErrNonHermeticDependency = zerr.New("dependency is not hermetic")

	// ErrConfigNotFound is returned when nozem.json cannot be located at or above
	// the search directory.
	ErrConfigNotFound = zerr.New("nozem.json not found")

	// ErrConfigReadFailed is returned when a configuration file exists but cannot be read.
	ErrConfigReadFailed = zerr.New("failed to read configuration file")

	// ErrConfigParseFailed is returned when a configuration file's contents are not
	// valid JSON/YAML for its expected schema.
	ErrConfigParseFailed = zerr.New("failed to parse configuration file")

	// ErrUnknownOverrideUnit is returned when nozem.local.yaml references a unit
	// identifier that nozem.json never declared.
	ErrUnknownOverrideUnit = zerr.New("local override references unknown unit")
)
