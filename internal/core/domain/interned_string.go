// Package domain contains the core domain model of nozem: the Merkle/hash
// primitives, the file set and dependency models, the unit schema, and the
// build graph that the scheduler walks.
package domain

import "unique"

// InternedString is a value object wrapping a unique.Handle[string]. Unit
// identifiers, relative paths, and dependency names repeat heavily across a
// large monorepo graph; interning keeps their memory cost to one copy.
type InternedString struct {
	h unique.Handle[string]
}

// NewInternedString interns s and returns the handle.
func NewInternedString(s string) InternedString {
	return InternedString{h: unique.Make(s)}
}

// String returns the underlying string value.
func (is InternedString) String() string {
	var zero unique.Handle[string]
	if is.h == zero {
		return ""
	}
	return is.h.Value()
}

// MarshalText implements encoding.TextMarshaler.
func (is InternedString) MarshalText() ([]byte, error) {
	return []byte(is.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (is *InternedString) UnmarshalText(text []byte) error {
	is.h = unique.Make(string(text))
	return nil
}
