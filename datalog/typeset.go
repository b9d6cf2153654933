package datalog

import (
	"math/bits"
	"strings"
)

// ValueTypeSet is the set of types a variable may still take during
// inference. Narrowing is intersection; an empty set is a contradiction.
type ValueTypeSet uint16

const (
	// EmptyTypes contains no types.
	EmptyTypes ValueTypeSet = 0
	// AllTypes contains every valid ValueType.
	AllTypes ValueTypeSet = (1<<(TypeUUID+1) - 1) &^ 1
	// NumericTypes is {long, double}.
	NumericTypes = ValueTypeSet(1<<TypeLong | 1<<TypeDouble)
)

// TypeSetOf builds a set from individual types.
func TypeSetOf(types ...ValueType) ValueTypeSet {
	var s ValueTypeSet
	for _, t := range types {
		if t.IsValid() {
			s |= 1 << t
		}
	}
	return s
}

// Contains reports membership.
func (s ValueTypeSet) Contains(t ValueType) bool {
	return t.IsValid() && s&(1<<t) != 0
}

// Intersect narrows s to the types also in other.
func (s ValueTypeSet) Intersect(other ValueTypeSet) ValueTypeSet {
	return s & other
}

// Union widens s by other.
func (s ValueTypeSet) Union(other ValueTypeSet) ValueTypeSet {
	return s | other
}

// IsSubsetOf reports whether every type of s is in other.
func (s ValueTypeSet) IsSubsetOf(other ValueTypeSet) bool {
	return s&^other == 0
}

// IsEmpty reports whether no type remains.
func (s ValueTypeSet) IsEmpty() bool {
	return s == 0
}

// IsUnit reports whether exactly one type remains.
func (s ValueTypeSet) IsUnit() bool {
	return bits.OnesCount16(uint16(s)) == 1
}

// Len returns the number of types in the set.
func (s ValueTypeSet) Len() int {
	return bits.OnesCount16(uint16(s))
}

// IsOnlyNumeric reports whether s is non-empty and contains only long and double.
func (s ValueTypeSet) IsOnlyNumeric() bool {
	return !s.IsEmpty() && s.IsSubsetOf(NumericTypes)
}

// Exemplar returns the lowest type in the set.
func (s ValueTypeSet) Exemplar() (ValueType, bool) {
	if s.IsEmpty() {
		return 0, false
	}
	return ValueType(bits.TrailingZeros16(uint16(s))), true
}

// Types lists the members in tag order.
func (s ValueTypeSet) Types() []ValueType {
	types := make([]ValueType, 0, s.Len())
	for t := TypeRef; t <= TypeUUID; t++ {
		if s.Contains(t) {
			types = append(types, t)
		}
	}
	return types
}

func (s ValueTypeSet) String() string {
	types := s.Types()
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = t.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
