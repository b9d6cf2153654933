package schema

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wbrown/janus-algebra/datalog"
)

// File is the YAML document accepted by Load:
//
//	attributes:
//	  - ident: :person/name
//	    type: string
//	    unique: identity
//	  - ident: :person/friend
//	    type: ref
//	    cardinality: many
//	idents:
//	  - ident: :color/red
type File struct {
	Attributes []AttributeSpec `yaml:"attributes"`
	Idents     []IdentSpec     `yaml:"idents,omitempty"`
}

// AttributeSpec is one attribute entry.
type AttributeSpec struct {
	Ident       string `yaml:"ident"`
	Type        string `yaml:"type"`
	Cardinality string `yaml:"cardinality,omitempty"` // one (default) or many
	Unique      string `yaml:"unique,omitempty"`      // value or identity
	Index       bool   `yaml:"index,omitempty"`
	Fulltext    bool   `yaml:"fulltext,omitempty"`
	Component   bool   `yaml:"component,omitempty"`
	ID          int64  `yaml:"id,omitempty"`
}

// IdentSpec is one plain ident entry.
type IdentSpec struct {
	Ident string `yaml:"ident"`
	ID    int64  `yaml:"id,omitempty"`
}

// LoadFile reads a YAML schema file.
func LoadFile(path string) (*Memory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	return Load(bytes.NewReader(data))
}

// Load parses a YAML schema. Unknown fields are rejected.
func Load(r io.Reader) (*Memory, error) {
	var f File
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return f.Build()
}

// Build turns the parsed document into a schema.
func (f *File) Build() (*Memory, error) {
	m := NewMemory()
	for i, spec := range f.Attributes {
		attr, err := spec.attribute()
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
		if _, err := m.AddAttribute(attr); err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
	}
	for i, spec := range f.Idents {
		if spec.Ident == "" {
			return nil, fmt.Errorf("ident %d: ident is required", i)
		}
		if _, err := m.AddIdent(datalog.NewKeyword(spec.Ident), datalog.Entid(spec.ID)); err != nil {
			return nil, fmt.Errorf("ident %d: %w", i, err)
		}
	}
	return m, nil
}

func (s AttributeSpec) attribute() (Attribute, error) {
	if s.Ident == "" {
		return Attribute{}, fmt.Errorf("ident is required")
	}
	vt, err := datalog.ParseValueType(s.Type)
	if err != nil {
		return Attribute{}, err
	}
	attr := Attribute{
		Entid:     datalog.Entid(s.ID),
		Ident:     datalog.NewKeyword(s.Ident),
		ValueType: vt,
		Index:     s.Index,
		Fulltext:  s.Fulltext,
		Component: s.Component,
	}
	switch s.Cardinality {
	case "", "one", ":db.cardinality/one":
	case "many", ":db.cardinality/many":
		attr.Multival = true
	default:
		return Attribute{}, fmt.Errorf("unknown cardinality %q", s.Cardinality)
	}
	switch s.Unique {
	case "":
	case "value", ":db.unique/value":
		attr.Unique = UniqueValue
	case "identity", ":db.unique/identity":
		attr.Unique = UniqueIdentity
	default:
		return Attribute{}, fmt.Errorf("unknown uniqueness %q", s.Unique)
	}
	return attr, nil
}
