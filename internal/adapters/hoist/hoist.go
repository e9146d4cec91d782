// Package hoist implements the two-phase monotone dependency hoisting
// algorithm that flattens a recursive package->dependency tree into a
// node_modules-equivalent layout (spec.md §4.3).
//
// There is no ecosystem library to ground this on: spec.md gives an exact,
// order-sensitive algorithm with snapshot-based necessity checks that no
// generic tree-flattening package could substitute for, and none of the
// example repos in the retrieval pack implement an npm-style dependency
// hoister. This package is therefore the one piece of nozem's domain logic
// built directly against the standard library.
package hoist

import "go.nozem.dev/nozem/internal/core/domain"

// ShouldHoistInside constrains recursion into specific node kinds (spec.md
// §4.3's optional shouldHoistInside predicate), used to skip re-linking of
// registry packages whose own node_modules are already correct. A nil
// predicate means "recurse everywhere".
type ShouldHoistInside func(node *domain.DependencyNode) bool

// Hoist flattens root's dependency tree in place and returns root.
func Hoist(root *domain.DependencyNode, shouldHoistInside ShouldHoistInside) *domain.DependencyNode {
	if shouldHoistInside == nil {
		shouldHoistInside = func(*domain.DependencyNode) bool { return true }
	}

	moveUp(root, shouldHoistInside)
	removeDuplicates(root, nil)
	removeUseless(root, root)
	pruneEmpty(root)

	return root
}

// moveUp is Phase A: until no change occurs in a full pass, for every node
// with a parent, any dependency the parent doesn't already declare is added
// to the parent (the descendant remains under the child too, for now).
func moveUp(root *domain.DependencyNode, shouldHoistInside ShouldHoistInside) {
	for {
		changed := false
		visit(root, nil, func(node, parent *domain.DependencyNode) {
			if parent == nil || !shouldHoistInside(parent) {
				return
			}
			for name, child := range node.Children {
				if _, exists := parent.Children[name]; !exists {
					parent.Children[name] = child
					changed = true
				}
			}
		})
		if !changed {
			return
		}
	}
}

// removeDuplicates is Phase B pass 1: delete (name, child) from a node if
// an ancestor already provides that exact (name, version) pair. A
// same-named but different-versioned ancestor entry is a conflict, not a
// duplicate, and must be left in place (spec.md §8 case 3).
func removeDuplicates(node *domain.DependencyNode, ancestorVersions map[string]string) {
	if ancestorVersions == nil {
		ancestorVersions = make(map[string]string)
	}

	for name, child := range node.Children {
		if v, provided := ancestorVersions[name]; provided && v == child.Pkg.Version {
			delete(node.Children, name)
		}
	}

	childAncestorVersions := make(map[string]string, len(ancestorVersions)+len(node.Children))
	for k, v := range ancestorVersions {
		childAncestorVersions[k] = v
	}
	for name, child := range node.Children {
		childAncestorVersions[name] = child.Pkg.Version
	}

	for _, child := range node.Children {
		removeDuplicates(child, childAncestorVersions)
	}
}

// removeUseless is Phase B pass 2: a hoisted (name, child) is kept only if
// name@child.Pkg.Version appears in some node's originalDependencies within
// the subtree rooted at the candidate (including the candidate itself).
func removeUseless(root, node *domain.DependencyNode) {
	for name, child := range node.Children {
		if !neededSomewhereIn(node, name, child.Pkg.Version) {
			delete(node.Children, name)
		}
	}
	for _, child := range node.Children {
		removeUseless(root, child)
	}
}

// neededSomewhereIn reports whether name@version was originally required by
// subtree (rooted at subtree, inclusive).
func neededSomewhereIn(subtree *domain.DependencyNode, name, version string) bool {
	if subtree.OriginallyRequired(name, version) {
		return true
	}
	for _, child := range subtree.Children {
		if neededSomewhereIn(child, name, version) {
			return true
		}
	}
	return false
}

// pruneEmpty deletes a node's Children map entirely once it's empty, for
// canonical output (spec.md §4.3: "Empty dependencies maps are deleted for
// canonical output").
func pruneEmpty(node *domain.DependencyNode) {
	for _, child := range node.Children {
		pruneEmpty(child)
	}
	if len(node.Children) == 0 {
		node.Children = nil
	}
}

// visit walks node and its descendants depth-first, invoking fn(node,
// parent) for every node including root (parent nil for root). fn runs on a
// node before its children are ranged over. A child that moveUp adds to a
// map while that map is being ranged over may or may not be visited in the
// same pass (Go's map iteration does not define it); any child it misses is
// visited by moveUp's next pass.
func visit(node, parent *domain.DependencyNode, fn func(node, parent *domain.DependencyNode)) {
	fn(node, parent)
	for _, child := range node.Children {
		visit(child, node, fn)
	}
}
