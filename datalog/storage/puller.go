package storage

import (
	"context"
	"sort"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/projector"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

// Puller reads pull patterns from the current datoms of a store. Every
// result carries :db/id. Cardinality-many attributes become vectors in
// value order; absent attributes are left out.
type Puller struct {
	store  *BadgerStore
	schema schema.Schema
}

// NewPuller creates a puller resolving attribute idents through s.
func NewPuller(store *BadgerStore, s schema.Schema) *Puller {
	return &Puller{store: store, schema: s}
}

// Pull resolves pattern for entity e.
func (p *Puller) Pull(ctx context.Context, e datalog.Entid, pattern *query.PullPattern) (datalog.StructuredMap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	byAttr := make(map[datalog.Entid][]datalog.TypedValue)
	var order []datalog.Entid
	it := p.store.Scan(EncodePrefix(EAVT, []datalog.Entid{e}, nil))
	for it.Next() {
		d, err := it.Datom()
		if err != nil {
			it.Close()
			return nil, err
		}
		if _, ok := byAttr[d.A]; !ok {
			order = append(order, d.A)
		}
		byAttr[d.A] = append(byAttr[d.A], d.V)
	}
	it.Close()

	out := datalog.StructuredMap{projector.DBID: datalog.Ref(e)}
	put := func(key datalog.Keyword, attr *schema.Attribute) {
		vals := byAttr[attr.Entid]
		if len(vals) == 0 {
			return
		}
		if !attr.Multival {
			out[key] = vals[0]
			return
		}
		sort.Slice(vals, func(i, j int) bool { return datalog.CompareValues(vals[i], vals[j]) < 0 })
		vec := make(datalog.Vector, len(vals))
		for i, v := range vals {
			vec[i] = v
		}
		out[key] = vec
	}

	if pattern != nil && pattern.Wildcard {
		for _, a := range order {
			if attr, ok := p.schema.AttributeForEntid(a); ok {
				put(attr.Ident, attr)
			}
		}
	}
	if pattern == nil {
		return out, nil
	}
	for _, pa := range pattern.Attributes {
		if pa.Attr == projector.DBID {
			out[pa.Key()] = datalog.Ref(e)
			continue
		}
		attr, ok := p.schema.AttributeForIdent(pa.Attr)
		if !ok {
			return nil, &datalog.Error{Kind: datalog.ErrUnrecognizedIdent, Literal: pa.Attr.String()}
		}
		put(pa.Key(), attr)
	}
	return out, nil
}
