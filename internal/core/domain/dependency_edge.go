package domain

// DependencyEdgeKind discriminates the four ways one unit can depend on
// something else, per spec.md §3's BuildDepSpec.
type DependencyEdgeKind string

const (
	// DependencyKindLinkNpm symlinks another monorepo unit's built artifact
	// into this unit's node_modules, optionally exposing its executables.
	DependencyKindLinkNpm DependencyEdgeKind = "link-npm"
	// DependencyKindCopy copies another unit's build output into a subdirectory
	// of this unit's source tree rather than node_modules.
	DependencyKindCopy DependencyEdgeKind = "copy"
	// DependencyKindExternalNpm references a registry package that already
	// lives on disk (under some ancestor node_modules) at a resolved location.
	DependencyKindExternalNpm DependencyEdgeKind = "external-npm"
	// DependencyKindOsTool references an executable that must be located on
	// the invoking process's $PATH and installed into the sandbox's bin/.
	DependencyKindOsTool DependencyEdgeKind = "os-tool"
)

// DependencyEdge is the uniform interface every dependency-edge variant
// implements (spec.md §9's "single dispatch point ... uniform interface").
// The concrete install/availability behavior (which needs filesystem and
// sandbox access) lives in internal/build, keyed off Kind(); domain itself
// only carries the declarative shape.
type DependencyEdge interface {
	Kind() DependencyEdgeKind
}

// LinkNpmEdge is the link-npm variant.
type LinkNpmEdge struct {
	NodeID             InternedString
	IncludeExecutables bool
}

// Kind implements DependencyEdge.
func (LinkNpmEdge) Kind() DependencyEdgeKind { return DependencyKindLinkNpm }

// CopyEdge is the copy variant.
type CopyEdge struct {
	NodeID InternedString
	Subdir string // optional; empty means "at the root of the source tree"
}

// Kind implements DependencyEdge.
func (CopyEdge) Kind() DependencyEdgeKind { return DependencyKindCopy }

// ExternalNpmEdge is the external-npm variant.
type ExternalNpmEdge struct {
	Name             string
	ResolvedLocation string
	VersionRange     string
}

// Kind implements DependencyEdge.
func (ExternalNpmEdge) Kind() DependencyEdgeKind { return DependencyKindExternalNpm }

// OsToolEdge is the os-tool variant.
type OsToolEdge struct {
	Executable string
	RenameTo   string // optional; empty means "install under its own name"
}

// Kind implements DependencyEdge.
func (OsToolEdge) Kind() DependencyEdgeKind { return DependencyKindOsTool }

// NodeDependency reports the identifier of the monorepo unit this edge
// points at, and whether it points at one at all (external-npm and os-tool
// do not reference another unit in the graph).
func NodeDependency(e DependencyEdge) (InternedString, bool) {
	switch edge := e.(type) {
	case LinkNpmEdge:
		return edge.NodeID, true
	case CopyEdge:
		return edge.NodeID, true
	default:
		return InternedString{}, false
	}
}
