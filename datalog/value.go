package datalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValueType tags the domain of a stored value.
// The zero value is not a valid type; it prints as :db.type/unknown.
type ValueType uint8

const (
	TypeRef ValueType = iota + 1
	TypeBoolean
	TypeInstant
	TypeLong
	TypeDouble
	TypeString
	TypeKeyword
	TypeUUID
)

// valueTypeNames is indexed by ValueType.
var valueTypeNames = [...]string{
	"unknown",
	"ref",
	"boolean",
	"instant",
	"long",
	"double",
	"string",
	"keyword",
	"uuid",
}

// Name returns the bare type name, e.g. "long".
func (t ValueType) Name() string {
	if int(t) < len(valueTypeNames) {
		return valueTypeNames[t]
	}
	return valueTypeNames[0]
}

// String returns the type as a schema keyword, e.g. ":db.type/long".
func (t ValueType) String() string {
	return ":db.type/" + t.Name()
}

// IsValid reports whether t is one of the known value types.
func (t ValueType) IsValid() bool {
	return t >= TypeRef && t <= TypeUUID
}

// ParseValueType accepts "long", "db.type/long" and ":db.type/long".
func ParseValueType(s string) (ValueType, error) {
	name := strings.TrimPrefix(strings.TrimPrefix(s, ":"), "db.type/")
	for i := TypeRef; i <= TypeUUID; i++ {
		if valueTypeNames[i] == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown value type %q", s)
}

// TypedValue is a value together with the type it is stored as.
//
// Representations:
//   - TypeRef: Entid
//   - TypeBoolean: bool
//   - TypeInstant: time.Time (UTC, microsecond precision)
//   - TypeLong: int64
//   - TypeDouble: float64
//   - TypeString: string
//   - TypeKeyword: Keyword
//   - TypeUUID: uuid.UUID
type TypedValue struct {
	Type ValueType
	V    interface{}
}

// Helper functions for creating typed values
func Ref(e Entid) TypedValue            { return TypedValue{Type: TypeRef, V: e} }
func Boolean(b bool) TypedValue         { return TypedValue{Type: TypeBoolean, V: b} }
func Instant(t time.Time) TypedValue    { return TypedValue{Type: TypeInstant, V: t.UTC().Truncate(time.Microsecond)} }
func Long(i int64) TypedValue           { return TypedValue{Type: TypeLong, V: i} }
func Double(f float64) TypedValue       { return TypedValue{Type: TypeDouble, V: f} }
func String(s string) TypedValue        { return TypedValue{Type: TypeString, V: s} }
func KeywordValue(k Keyword) TypedValue { return TypedValue{Type: TypeKeyword, V: k} }
func UUID(u uuid.UUID) TypedValue       { return TypedValue{Type: TypeUUID, V: u} }

// ValueOf converts a Go constant into a TypedValue. Plain integers become
// longs; use Entid to get a ref.
func ValueOf(v interface{}) (TypedValue, bool) {
	switch val := v.(type) {
	case TypedValue:
		return val, val.Type.IsValid()
	case Entid:
		return Ref(val), true
	case bool:
		return Boolean(val), true
	case time.Time:
		return Instant(val), true
	case int:
		return Long(int64(val)), true
	case int32:
		return Long(int64(val)), true
	case int64:
		return Long(val), true
	case float64:
		return Double(val), true
	case float32:
		return Double(float64(val)), true
	case string:
		return String(val), true
	case Keyword:
		return KeywordValue(val), true
	case *Keyword:
		if val == nil {
			return TypedValue{}, false
		}
		return KeywordValue(*val), true
	case uuid.UUID:
		return UUID(val), true
	default:
		return TypedValue{}, false
	}
}

// AsEntid returns the entid of a ref value.
func (v TypedValue) AsEntid() (Entid, bool) {
	e, ok := v.V.(Entid)
	return e, ok && v.Type == TypeRef
}

// AsLong returns the integer of a long value.
func (v TypedValue) AsLong() (int64, bool) {
	i, ok := v.V.(int64)
	return i, ok && v.Type == TypeLong
}

// AsFloat returns a numeric value widened to float64.
func (v TypedValue) AsFloat() (float64, bool) {
	switch n := v.V.(type) {
	case int64:
		return float64(n), v.Type == TypeLong
	case float64:
		return n, v.Type == TypeDouble
	}
	return 0, false
}

// Equal compares type and value.
func (v TypedValue) Equal(other TypedValue) bool {
	return v.Type == other.Type && CompareValues(v, other) == 0
}

// String renders the value the way it would appear in a query.
func (v TypedValue) String() string {
	switch val := v.V.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case time.Time:
		return "#inst \"" + val.Format(time.RFC3339Nano) + "\""
	case uuid.UUID:
		return "#uuid \"" + val.String() + "\""
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%v", val)
	}
}
