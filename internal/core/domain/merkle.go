package domain

import (
	"encoding/json"
	"sort"

	"go.trai.ch/zerr"
)

// DiffKind identifies the shape of one MerkleDifference.
type DiffKind string

const (
	// DiffAdd means a path exists in the new tree but not the old one.
	DiffAdd DiffKind = "add"
	// DiffRemove means a path exists in the old tree but not the new one.
	DiffRemove DiffKind = "remove"
	// DiffChange means a path exists in both trees but with different hashes.
	DiffChange DiffKind = "change"
)

// MerkleDifference explains one discrepancy between two Hashable trees,
// reported by Compare. It is the mechanism by which a cache miss can be
// explained to the user instead of just reported.
type MerkleDifference struct {
	Kind    DiffKind
	Path    string
	OldHash string
	NewHash string
}

// CompareResult is either "same" (Differences is empty) or carries the list
// of differences found.
type CompareResult struct {
	Differences []MerkleDifference
}

// Same reports whether the two trees compared equal.
func (r CompareResult) Same() bool { return len(r.Differences) == 0 }

// Compare walks two Hashable trees and reports every path at which they
// differ. The recursion rule: when both corresponding children are
// Composite and their hashes differ, descend into them; when either side is
// a leaf (Direct) or the Composite-ness differs, emit a single "change" at
// that path rather than descending further.
func Compare(a, b Hashable) CompareResult {
	var diffs []MerkleDifference
	compareAt("", a, b, &diffs)
	return CompareResult{Differences: diffs}
}

func compareAt(path string, a, b Hashable, diffs *[]MerkleDifference) {
	if a == nil && b == nil {
		return
	}
	if a == nil {
		*diffs = append(*diffs, MerkleDifference{Kind: DiffAdd, Path: path, NewHash: b.Hash()})
		return
	}
	if b == nil {
		*diffs = append(*diffs, MerkleDifference{Kind: DiffRemove, Path: path, OldHash: a.Hash()})
		return
	}

	if a.Hash() == b.Hash() {
		return
	}

	ac, aOK := asComposite(a)
	bc, bOK := asComposite(b)
	if !aOK || !bOK {
		*diffs = append(*diffs, MerkleDifference{Kind: DiffChange, Path: path, OldHash: a.Hash(), NewHash: b.Hash()})
		return
	}

	compareChildren(path, ac.Children(), bc.Children(), diffs)
}

func compareChildren(path string, aChildren, bChildren map[string]Hashable, diffs *[]MerkleDifference) {
	keys := make(map[string]struct{}, len(aChildren)+len(bChildren))
	for k := range aChildren {
		keys[k] = struct{}{}
	}
	for k := range bChildren {
		keys[k] = struct{}{}
	}

	sorted := make([]string, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Strings(sorted)

	for _, k := range sorted {
		childPath := k
		if path != "" {
			childPath = path + "/" + k
		}
		compareAt(childPath, aChildren[k], bChildren[k], diffs)
	}
}

// SerializedNode is the JSON-shaped value produced by Serialize. Elements
// whose nested tree was truncated by depth carry only their leaf hash
// string; elements still within depth carry a nested SerializedNode.
type SerializedNode struct {
	Hash     string                    `json:"hash"`
	Elements map[string]ElementOrHash  `json:"elements,omitempty"`
}

// ElementOrHash is either a nested SerializedNode (subtree within depth) or a
// bare hash string (subtree collapsed at the truncation boundary, or a leaf).
type ElementOrHash struct {
	Node *SerializedNode
	Leaf string
}

// MarshalJSON renders the nested node if present, otherwise the bare string.
func (e ElementOrHash) MarshalJSON() ([]byte, error) {
	if e.Node != nil {
		return json.Marshal(e.Node)
	}
	return json.Marshal(e.Leaf)
}

// UnmarshalJSON accepts either a JSON string (leaf hash) or a JSON object
// (nested SerializedNode).
func (e *ElementOrHash) UnmarshalJSON(data []byte) error {
	var leaf string
	if err := json.Unmarshal(data, &leaf); err == nil {
		e.Leaf = leaf
		e.Node = nil
		return nil
	}
	var node SerializedNode
	if err := json.Unmarshal(data, &node); err != nil {
		return zerr.Wrap(err, "failed to decode merkle element")
	}
	e.Node = &node
	return nil
}

// Serialize produces a JSON-shaped SerializedNode for h. Beyond depth levels
// of composite nesting, subtrees are collapsed to their leaf hash string.
// depth <= 0 collapses the root itself to a leaf.
func Serialize(h Hashable, depth int) SerializedNode {
	node := SerializedNode{Hash: h.Hash()}

	if depth <= 0 {
		return node
	}

	c, ok := asComposite(h)
	if !ok {
		return node
	}

	children := c.Children()
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	node.Elements = make(map[string]ElementOrHash, len(keys))
	for _, k := range keys {
		child := children[k]
		if _, childIsComposite := asComposite(child); childIsComposite && depth-1 > 0 {
			sub := Serialize(child, depth-1)
			node.Elements[k] = ElementOrHash{Node: &sub}
		} else {
			node.Elements[k] = ElementOrHash{Leaf: child.Hash()}
		}
	}

	return node
}

// Deserialize reconstructs a Hashable from a SerializedNode. Truncated
// subtrees (bare leaf hashes) become DirectHash leaves; subtrees that were
// fully serialized are reconstructed as MerkleNode composites and validated:
// if the reconstructed composite's own hash does not match node.Hash, an
// ErrSerializedHashMismatch error is returned so a corrupted sidecar file is
// never silently trusted.
func Deserialize(node SerializedNode) (Hashable, error) {
	if len(node.Elements) == 0 {
		return DirectHash(node.Hash), nil
	}

	children := make(map[string]Hashable, len(node.Elements))
	for k, el := range node.Elements {
		if el.Node != nil {
			child, err := Deserialize(*el.Node)
			if err != nil {
				return nil, err
			}
			children[k] = child
		} else {
			children[k] = DirectHash(el.Leaf)
		}
	}

	composite := NewComposite(children)
	if composite.Hash() != node.Hash {
		err := zerr.With(ErrSerializedHashMismatch, "expected", node.Hash)
		err = zerr.With(err, "recomputed", composite.Hash())
		return nil, err
	}
	return composite, nil
}
