package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

const (
	nameAttr   = int64(schema.FirstUserEntid)
	ageAttr    = int64(schema.FirstUserEntid + 1)
	friendAttr = int64(schema.FirstUserEntid + 2)
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

func rel(names ...string) query.FindRel {
	elems := make([]query.Element, len(names))
	for i, n := range names {
		elems[i] = query.ElemVariable{Var: query.Symbol(n)}
	}
	return query.FindRel{Elems: elems}
}

func namesAndAges() []query.Clause {
	return []query.Clause{
		pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name")),
		pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?age")),
	}
}

func mustPlan(t *testing.T, q *query.Query, inputs algebrizer.QueryInputs) *Plan {
	t.Helper()
	aq, err := algebrizer.Algebrize(peopleSchema(t), q, inputs)
	require.NoError(t, err)
	return Build(aq)
}

func mustSQL(t *testing.T, p *Plan, params map[query.Symbol]datalog.TypedValue) (string, []interface{}) {
	t.Helper()
	sql, args, err := p.SQL(params)
	require.NoError(t, err)
	return sql, args
}
