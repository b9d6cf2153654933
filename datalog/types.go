package datalog

import (
	"fmt"
	"strings"
)

// Entid is an entity identifier. Attributes, idents, and transactions are
// entities too, so every ref value is an Entid.
type Entid int64

// Datom is the fundamental unit of data in a Datalog system
// It represents a single fact: Entity-Attribute-Value-Transaction
type Datom struct {
	E     Entid      // Entity identifier
	A     Entid      // Attribute entid
	V     TypedValue // Value, tagged with its stored type
	Tx    Entid      // Transaction entid
	Added bool       // false for retractions in the transaction log
}

// Keyword represents an attribute keyword
// Unlike entities, keywords are interned strings, not hashes
type Keyword struct {
	value string // The keyword string (e.g., ":user/name")
}

// NewKeyword creates a keyword. A missing leading colon is added.
func NewKeyword(s string) Keyword {
	if s != "" && s[0] != ':' {
		s = ":" + s
	}
	return Keyword{value: s}
}

// String returns the keyword string
func (k Keyword) String() string {
	return k.value
}

// Namespace returns the part between the colon and the slash, if any.
func (k Keyword) Namespace() string {
	if i := strings.IndexByte(k.value, '/'); i > 0 {
		return k.value[1:i]
	}
	return ""
}

// Name returns the part after the slash (or after the colon).
func (k Keyword) Name() string {
	if i := strings.IndexByte(k.value, '/'); i > 0 {
		return k.value[i+1:]
	}
	if len(k.value) > 0 {
		return k.value[1:]
	}
	return ""
}

// IsZero reports whether k is the empty keyword.
func (k Keyword) IsZero() bool {
	return k.value == ""
}

// Compare compares two keywords
func (k Keyword) Compare(other Keyword) int {
	if k.value < other.value {
		return -1
	} else if k.value > other.value {
		return 1
	}
	return 0
}

// Bytes returns the keyword as bytes
func (k Keyword) Bytes() []byte {
	return []byte(k.value)
}

// String returns a string representation of the Datom
func (d Datom) String() string {
	op := ":db/add"
	if !d.Added {
		op = ":db/retract"
	}
	return fmt.Sprintf("[%s %d %d %s %d]", op, d.E, d.A, d.V, d.Tx)
}
