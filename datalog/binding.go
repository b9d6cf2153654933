package datalog

import (
	"sort"
	"strings"
)

// Binding is a single projected output value: a scalar TypedValue, a
// Vector produced by collection aggregates, or a StructuredMap produced by
// pull expressions.
type Binding interface {
	isBinding()
	String() string
}

func (TypedValue) isBinding()    {}
func (Vector) isBinding()        {}
func (StructuredMap) isBinding() {}

// Vector is an ordered collection of bindings.
type Vector []Binding

func (v Vector) String() string {
	parts := make([]string, len(v))
	for i, b := range v {
		parts[i] = b.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// StructuredMap is a nested document keyed by attribute keyword.
type StructuredMap map[Keyword]Binding

// Keys returns the keys in keyword order.
func (m StructuredMap) Keys() []Keyword {
	keys := make([]Keyword, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	return keys
}

func (m StructuredMap) String() string {
	keys := m.Keys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k.String() + " " + m[k].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
