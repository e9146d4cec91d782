package domain

import (
	"crypto/sha1" //nolint:gosec // spec mandates SHA-1 as the canonical content-hash algorithm
	"encoding/hex"
	"io"
	"sort"
	"sync"
)

// Hashable is the capability to produce a stable, lowercase-hex content hash.
// Equality of Hash() values is equality of content modulo the canonicalization
// rules below.
type Hashable interface {
	Hash() string
}

// CompositeHashable is a Hashable whose hash is derived from a named set of
// child Hashables rather than from raw bytes. Graph comparison and Merkle
// serialization both need to see the children, not just the final digest.
type CompositeHashable interface {
	Hashable
	// Children returns the named child hashables this node's hash commits to.
	Children() map[string]Hashable
}

// DirectHash wraps a caller-supplied hex digest (e.g. the SHA-1 of a file's
// bytes) as a leaf Hashable.
type DirectHash string

// Hash returns the wrapped digest unchanged.
func (d DirectHash) Hash() string { return string(d) }

// MerkleNode is a Composite whose children may themselves be Composite. Its
// hash is memoized on first computation, per process, keyed by the node's
// own identity (sync.Once on the struct, not a global cache).
type MerkleNode struct {
	children map[string]Hashable

	once sync.Once
	hash string
}

// NewComposite builds a MerkleNode over the given named children.
func NewComposite(children map[string]Hashable) *MerkleNode {
	cp := make(map[string]Hashable, len(children))
	for k, v := range children {
		cp[k] = v
	}
	return &MerkleNode{children: cp}
}

// Children returns the node's named children.
func (n *MerkleNode) Children() map[string]Hashable {
	return n.children
}

// Hash computes SHA1(concat_i "${k_i}=${hash(C[k_i])}\n") over children sorted
// by key ascending, memoizing the result.
func (n *MerkleNode) Hash() string {
	n.once.Do(func() {
		n.hash = hashComposite(n.children)
	})
	return n.hash
}

// hashComposite is the canonical digest function shared by MerkleNode and by
// anything else (FileSet, env maps, dependency maps) that wants composite
// semantics without paying for a second type. Sorting keys before hashing
// makes the digest order-independent for mapping-typed containers; the
// explicit "=" and "\n" separators prevent prefix ambiguity between
// neighboring keys.
func hashComposite(children map[string]Hashable) string {
	keys := make([]string, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha1.New() //nolint:gosec // see package-level note
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		h.Write([]byte(children[k].Hash()))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HashString returns the lowercase-hex SHA-1 digest of s, for callers that
// need to fold a plain string (a dependency version, a resolved tool path,
// an environment value) into a Composite tree as a DirectHash leaf.
func HashString(s string) string {
	h := sha1.New() //nolint:gosec // see package-level note
	_, _ = io.WriteString(h, s)
	return hex.EncodeToString(h.Sum(nil))
}

// asComposite is a convenience type assertion used by Compare and Serialize.
func asComposite(h Hashable) (CompositeHashable, bool) {
	c, ok := h.(CompositeHashable)
	return c, ok
}
