package algebrizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

// Entids allocated by peopleSchema, in order.
const (
	nameAttr   datalog.Entid = schema.FirstUserEntid
	ageAttr    datalog.Entid = schema.FirstUserEntid + 1
	friendAttr datalog.Entid = schema.FirstUserEntid + 2
	scoreAttr  datalog.Entid = schema.FirstUserEntid + 3
	moodAttr   datalog.Entid = schema.FirstUserEntid + 4
	redIdent   datalog.Entid = schema.FirstUserEntid + 5
)

func peopleSchema(t *testing.T) *schema.Memory {
	t.Helper()
	s := schema.NewMemory()
	for _, a := range []schema.Attribute{
		{Ident: datalog.NewKeyword(":person/name"), ValueType: datalog.TypeString, Unique: schema.UniqueIdentity},
		{Ident: datalog.NewKeyword(":person/age"), ValueType: datalog.TypeLong},
		{Ident: datalog.NewKeyword(":person/friend"), ValueType: datalog.TypeRef, Multival: true},
		{Ident: datalog.NewKeyword(":person/score"), ValueType: datalog.TypeDouble},
		{Ident: datalog.NewKeyword(":person/mood"), ValueType: datalog.TypeKeyword},
	} {
		_, err := s.AddAttribute(a)
		require.NoError(t, err)
	}
	_, err := s.AddIdent(datalog.NewKeyword(":color/red"), 0)
	require.NoError(t, err)
	return s
}

func pat(e, a, v query.PatternElement) *query.Pattern {
	return &query.Pattern{E: e, A: a, V: v}
}

func sym(names ...string) []query.Symbol {
	out := make([]query.Symbol, len(names))
	for i, n := range names {
		out[i] = query.Symbol(n)
	}
	return out
}

func rel(names ...string) query.FindRel {
	elems := make([]query.Element, len(names))
	for i, n := range names {
		elems[i] = query.ElemVariable{Var: query.Symbol(n)}
	}
	return query.FindRel{Elems: elems}
}

func mustAlgebrize(t *testing.T, q *query.Query, inputs QueryInputs) *AlgebraicQuery {
	t.Helper()
	aq, err := Algebrize(peopleSchema(t), q, inputs)
	require.NoError(t, err)
	return aq
}

func requireKind(t *testing.T, err error, kind datalog.ErrorKind) *datalog.Error {
	t.Helper()
	require.Error(t, err)
	qe, ok := err.(*datalog.Error)
	require.True(t, ok, "expected *datalog.Error, got %T: %v", err, err)
	require.Equal(t, kind, qe.Kind, "unexpected error: %v", err)
	return qe
}
