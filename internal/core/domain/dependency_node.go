package domain

// PackageRef is the minimal identity of an npm package carried by a
// DependencyNode: enough to resolve it to files and to compare versions.
type PackageRef struct {
	Name    string
	Version string
}

// DependencyNode is a node in the NPM-style dependency tree the hoister
// flattens. The input tree may contain cycles (real npm graphs do, e.g.
// through peer/optional dependencies); those are broken before the tree
// reaches the hoister by the NPM-tree builder's recursion-breaker set —
// DependencyNode itself has no back-pointers and so cannot represent a
// cycle, only a tree or DAG expressed via shared child pointers.
type DependencyNode struct {
	Pkg      PackageRef
	Children map[string]*DependencyNode

	// originalDependencies is a snapshot of Children's keys, taken before any
	// hoisting mutation, as name@version strings. The hoister's cleanup phase
	// consults this snapshot (not the live, mutated Children map) to decide
	// whether a hoisted dependency is still necessary anywhere in the subtree.
	originalDependencies map[string]string
}

// NewDependencyNode constructs a node and snapshots its initial children as
// originalDependencies. Call this once per node when building the input
// tree; the hoister relies on the snapshot reflecting the pre-hoist shape.
func NewDependencyNode(pkg PackageRef, children map[string]*DependencyNode) *DependencyNode {
	n := &DependencyNode{
		Pkg:      pkg,
		Children: make(map[string]*DependencyNode, len(children)),
	}
	for name, child := range children {
		n.Children[name] = child
	}
	n.snapshotOriginal()
	return n
}

func (n *DependencyNode) snapshotOriginal() {
	n.originalDependencies = make(map[string]string, len(n.Children))
	for name, child := range n.Children {
		n.originalDependencies[name] = child.Pkg.Version
	}
}

// OriginallyRequired reports whether name@version appeared among this node's
// children before any hoisting mutation took place.
func (n *DependencyNode) OriginallyRequired(name, version string) bool {
	v, ok := n.originalDependencies[name]
	return ok && v == version
}
