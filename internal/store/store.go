// Package store persists function blueprints: the prototype recorded for every
// name the code generator has declared, and whether a body was committed.
package store

import (
	"fmt"
	"strings"
)

// Blueprint is the recipe needed to re-declare a function in a later
// compilation unit.
type Blueprint struct {
	Name    string
	Params  []string
	Defined bool // a body was committed under this name
}

// Arity returns the number of parameters.
func (b *Blueprint) Arity() int { return len(b.Params) }

func (b *Blueprint) String() string {
	return fmt.Sprintf("%s(%s)", b.Name, strings.Join(b.Params, " "))
}

// Clone returns a deep copy.
func (b *Blueprint) Clone() *Blueprint {
	c := *b
	c.Params = append([]string(nil), b.Params...)
	return &c
}

// Store is the interface for blueprint persistence.
type Store interface {
	// Get retrieves a blueprint by name. Returns nil if not found.
	Get(name string) (*Blueprint, error)
	// Put stores a blueprint, overwriting any entry with the same name.
	Put(bp *Blueprint) error
	// Delete removes a blueprint by name.
	Delete(name string) error
	// List returns every blueprint ordered by name.
	List() ([]*Blueprint, error)
	// Close releases resources.
	Close() error
}

// MetadataStore is implemented by stores that keep key/value metadata.
type MetadataStore interface {
	GetMetadata(key string) (string, error)
	SetMetadata(key, value string) error
}

// encodeParams joins parameter names with single spaces. Names never contain
// whitespace, so the encoding is unambiguous.
func encodeParams(params []string) string {
	return strings.Join(params, " ")
}

func decodeParams(s string) []string {
	return strings.Fields(s)
}
