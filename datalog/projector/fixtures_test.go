package projector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/planner"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

func peopleSchema(t *testing.T) *schema.Memory {
	t.Helper()
	s := schema.NewMemory()
	for _, a := range []schema.Attribute{
		{Ident: datalog.NewKeyword(":person/name"), ValueType: datalog.TypeString, Unique: schema.UniqueIdentity},
		{Ident: datalog.NewKeyword(":person/age"), ValueType: datalog.TypeLong},
		{Ident: datalog.NewKeyword(":person/friend"), ValueType: datalog.TypeRef, Multival: true},
	} {
		_, err := s.AddAttribute(a)
		require.NoError(t, err)
	}
	return s
}

func pat(e, a, v query.PatternElement) *query.Pattern {
	return &query.Pattern{E: e, A: a, V: v}
}

func rel(elems ...query.Element) query.FindRel {
	return query.FindRel{Elems: elems}
}

func v(name string) query.ElemVariable {
	return query.ElemVariable{Var: query.Symbol(name)}
}

func names() []query.Clause {
	return []query.Clause{pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name"))}
}

func namesAndAges() []query.Clause {
	return []query.Clause{
		pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name")),
		pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?age")),
	}
}

func compile(t *testing.T, q *query.Query, inputs algebrizer.QueryInputs) *planner.Plan {
	t.Helper()
	aq, err := algebrizer.Algebrize(peopleSchema(t), q, inputs)
	require.NoError(t, err)
	return planner.Build(aq)
}

func rowsOf(rows ...[]datalog.TypedValue) *SliceRows {
	return NewSliceRows(rows)
}

func row(values ...datalog.TypedValue) []datalog.TypedValue {
	return values
}

func ref(e int64) datalog.TypedValue {
	return datalog.Ref(datalog.Entid(e))
}

// failingRows yields its rows and then fails.
type failingRows struct {
	*SliceRows
	err    error
	closed int
}

func (f *failingRows) Err() error {
	if f.pos >= len(f.rows) {
		return f.err
	}
	return nil
}

func (f *failingRows) Close() error {
	f.closed++
	return nil
}

// recordingPuller returns the entity's name, counting calls per entity.
type recordingPuller struct {
	names map[datalog.Entid]string
	calls map[datalog.Entid]int
	err   error
}

func newPuller(names map[datalog.Entid]string) *recordingPuller {
	return &recordingPuller{names: names, calls: make(map[datalog.Entid]int)}
}

func (p *recordingPuller) Pull(_ context.Context, e datalog.Entid, pattern *query.PullPattern) (datalog.StructuredMap, error) {
	p.calls[e]++
	if p.err != nil {
		return nil, p.err
	}
	m := datalog.StructuredMap{DBID: datalog.Ref(e)}
	for _, a := range pattern.Attributes {
		if a.Attr == datalog.NewKeyword(":person/name") {
			m[a.Key()] = datalog.String(p.names[e])
		}
	}
	return m, nil
}
