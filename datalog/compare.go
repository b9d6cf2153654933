package datalog

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CompareValues compares two values and returns:
//
//	-1 if left < right
//	 0 if left == right
//	 1 if left > right
//
// Longs and doubles compare numerically with each other. Any other pair of
// differing types orders by type tag, so the result is a total order usable
// for sorting mixed columns.
func CompareValues(left, right TypedValue) int {
	if left.Type != right.Type {
		if NumericTypes.Contains(left.Type) && NumericTypes.Contains(right.Type) {
			l, _ := left.AsFloat()
			r, _ := right.AsFloat()
			return compareFloats(l, r)
		}
		return compareInt64s(int64(left.Type), int64(right.Type))
	}

	switch l := left.V.(type) {
	case Entid:
		r, _ := right.V.(Entid)
		return compareInt64s(int64(l), int64(r))
	case int64:
		r, _ := right.V.(int64)
		return compareInt64s(l, r)
	case float64:
		r, _ := right.V.(float64)
		return compareFloats(l, r)
	case string:
		r, _ := right.V.(string)
		return strings.Compare(l, r)
	case bool:
		r, _ := right.V.(bool)
		if !l && r {
			return -1
		} else if l && !r {
			return 1
		}
		return 0
	case time.Time:
		r, _ := right.V.(time.Time)
		if l.Before(r) {
			return -1
		} else if l.After(r) {
			return 1
		}
		return 0
	case Keyword:
		r, _ := right.V.(Keyword)
		return l.Compare(r)
	case uuid.UUID:
		r, _ := right.V.(uuid.UUID)
		return bytes.Compare(l[:], r[:])
	}

	// Handle nil: nil is less than any non-nil value
	if left.V == nil && right.V == nil {
		return 0
	}
	if left.V == nil {
		return -1
	}
	return 1
}

// compareInt64s compares two int64 values
func compareInt64s(a, b int64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// compareFloats compares two float64 values
func compareFloats(a, b float64) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

// WriteValueKey appends a self-delimiting encoding of v: the type tag, a
// 32-bit length and the encoded value. Concatenated keys of different rows
// never collide.
func WriteValueKey(b *strings.Builder, v TypedValue) {
	enc := EncodeValue(v)
	n := len(enc)
	b.WriteByte(byte(v.Type))
	b.WriteByte(byte(n >> 24))
	b.WriteByte(byte(n >> 16))
	b.WriteByte(byte(n >> 8))
	b.WriteByte(byte(n))
	b.Write(enc)
}

// RowKey returns a string that is equal for rows of equal typed values.
func RowKey(vals []TypedValue) string {
	var b strings.Builder
	for _, v := range vals {
		WriteValueKey(&b, v)
	}
	return b.String()
}

// ValueKey returns a string that is equal for equal typed values. It is used
// for hashing rows (distinct, grouping) without allocating comparators.
func ValueKey(v TypedValue) string {
	var b strings.Builder
	b.WriteByte(byte(v.Type))
	b.Write(EncodeValue(v))
	return b.String()
}
