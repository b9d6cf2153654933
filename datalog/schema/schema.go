// Package schema provides the read-only attribute lookup used during query
// compilation, an in-memory implementation, and a YAML loader.
package schema

import (
	"fmt"
	"sort"

	"github.com/wbrown/janus-algebra/datalog"
)

// Unique is the uniqueness constraint of an attribute.
type Unique uint8

const (
	UniqueNone Unique = iota
	UniqueValue
	UniqueIdentity
)

// Attribute describes one schema attribute.
type Attribute struct {
	Entid     datalog.Entid
	Ident     datalog.Keyword
	ValueType datalog.ValueType
	Multival  bool // :db.cardinality/many
	Unique    Unique
	Index     bool
	Fulltext  bool
	Component bool
}

func (a *Attribute) String() string {
	card := "one"
	if a.Multival {
		card = "many"
	}
	return fmt.Sprintf("%s[%d] %s cardinality/%s", a.Ident, a.Entid, a.ValueType, card)
}

// Schema is the lookup the query compiler reads. Implementations must be
// safe for concurrent reads.
type Schema interface {
	AttributeForIdent(ident datalog.Keyword) (*Attribute, bool)
	AttributeForEntid(e datalog.Entid) (*Attribute, bool)
	EntidForIdent(ident datalog.Keyword) (datalog.Entid, bool)
	IdentForEntid(e datalog.Entid) (datalog.Keyword, bool)
}

// FirstUserEntid is the first entid handed out to attributes and idents
// declared without an explicit id.
const FirstUserEntid datalog.Entid = 65

// Memory is a map-backed Schema. It is built once and then only read;
// mutation after it is shared with queries is not synchronized.
type Memory struct {
	attributes map[datalog.Entid]*Attribute
	idents     map[datalog.Keyword]datalog.Entid
	entids     map[datalog.Entid]datalog.Keyword
	next       datalog.Entid
}

// NewMemory creates an empty schema.
func NewMemory() *Memory {
	return &Memory{
		attributes: make(map[datalog.Entid]*Attribute),
		idents:     make(map[datalog.Keyword]datalog.Entid),
		entids:     make(map[datalog.Entid]datalog.Keyword),
		next:       FirstUserEntid,
	}
}

// AddAttribute registers an attribute. A zero Entid allocates the next
// free one. The stored attribute is returned.
func (m *Memory) AddAttribute(attr Attribute) (*Attribute, error) {
	if attr.Ident.IsZero() {
		return nil, fmt.Errorf("attribute needs an ident")
	}
	if !attr.ValueType.IsValid() {
		return nil, fmt.Errorf("attribute %s: invalid value type", attr.Ident)
	}
	if attr.Fulltext && attr.ValueType != datalog.TypeString {
		return nil, fmt.Errorf("attribute %s: fulltext requires :db.type/string", attr.Ident)
	}
	if attr.Component && attr.ValueType != datalog.TypeRef {
		return nil, fmt.Errorf("attribute %s: component requires :db.type/ref", attr.Ident)
	}
	e, err := m.addIdent(attr.Ident, attr.Entid)
	if err != nil {
		return nil, err
	}
	attr.Entid = e
	stored := attr
	m.attributes[e] = &stored
	return &stored, nil
}

// AddIdent registers a plain ident (an enum value such as :color/red).
// A zero entid allocates the next free one.
func (m *Memory) AddIdent(ident datalog.Keyword, e datalog.Entid) (datalog.Entid, error) {
	return m.addIdent(ident, e)
}

func (m *Memory) addIdent(ident datalog.Keyword, e datalog.Entid) (datalog.Entid, error) {
	if _, dup := m.idents[ident]; dup {
		return 0, fmt.Errorf("ident %s is already defined", ident)
	}
	if e == 0 {
		for {
			if _, taken := m.entids[m.next]; !taken {
				break
			}
			m.next++
		}
		e = m.next
		m.next++
	} else if other, taken := m.entids[e]; taken {
		return 0, fmt.Errorf("entid %d is already used by %s", e, other)
	}
	m.idents[ident] = e
	m.entids[e] = ident
	return e, nil
}

// Attributes returns every attribute in entid order.
func (m *Memory) Attributes() []*Attribute {
	out := make([]*Attribute, 0, len(m.attributes))
	for _, a := range m.attributes {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Entid < out[j].Entid })
	return out
}

func (m *Memory) AttributeForIdent(ident datalog.Keyword) (*Attribute, bool) {
	e, ok := m.idents[ident]
	if !ok {
		return nil, false
	}
	a, ok := m.attributes[e]
	return a, ok
}

func (m *Memory) AttributeForEntid(e datalog.Entid) (*Attribute, bool) {
	a, ok := m.attributes[e]
	return a, ok
}

func (m *Memory) EntidForIdent(ident datalog.Keyword) (datalog.Entid, bool) {
	e, ok := m.idents[ident]
	return e, ok
}

func (m *Memory) IdentForEntid(e datalog.Entid) (datalog.Keyword, bool) {
	k, ok := m.entids[e]
	return k, ok
}
