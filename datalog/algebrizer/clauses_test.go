package algebrizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
)

func TestAlgebrizeOr(t *testing.T) {
	t.Run("branch types are unioned", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{&query.Or{Branches: [][]query.Clause{
				{pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?x"))},
				{pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?x"))},
			}}},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})

		cc := aq.CC
		require.Len(t, cc.From, 1)
		union := cc.From[0]
		assert.Equal(t, TableUnion, union.Kind)
		assert.Equal(t, "c02", union.Alias)
		assert.Equal(t, []query.Symbol{"?e", "?x"}, union.Computed.Vars)
		assert.Len(t, union.Computed.Branches, 2)
		assert.Equal(t, []QualifiedColumn{{Alias: "c02", Column: "?e"}}, cc.ColumnBindings["?e"])
		assert.Equal(t, datalog.TypeSetOf(datalog.TypeString, datalog.TypeLong), cc.TypesOf("?x"))
		assert.Equal(t, datalog.TypeSetOf(datalog.TypeRef), cc.TypesOf("?e"))
	})

	t.Run("branches with different variables", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{&query.Or{Branches: [][]query.Clause{
				{pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?x"))},
				{pat(query.Var("?e"), query.Kw(":person/age"), query.Const(30))},
			}}},
		}
		_, err := Algebrize(peopleSchema(t), q, QueryInputs{})
		qe := requireKind(t, err, datalog.ErrNonMatchingVariablesInOrClause)
		assert.Equal(t, "?x", qe.Var)
	})

	t.Run("missing variables are reported in source order", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{&query.Or{Branches: [][]query.Clause{
				{
					pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?x")),
					pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?y")),
					pat(query.Var("?e"), query.Kw(":person/friend"), query.Var("?z")),
				},
				{pat(query.Var("?e"), query.Kw(":person/age"), query.Const(30))},
			}}},
		}
		for i := 0; i < 20; i++ {
			_, err := Algebrize(peopleSchema(t), q, QueryInputs{})
			qe := requireKind(t, err, datalog.ErrNonMatchingVariablesInOrClause)
			require.Equal(t, "?x", qe.Var)
		}
	})

	t.Run("outer types narrow the branches", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{
				pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?x")),
				&query.Or{Branches: [][]query.Clause{
					{pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?x"))},
					{pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?x"))},
				}},
			},
		}
		_, err := Algebrize(peopleSchema(t), q, QueryInputs{})
		requireKind(t, err, datalog.ErrEmptyTypeIntersection)
	})

	t.Run("or-join keeps branch variables local", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{
				pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?n")),
				&query.OrJoin{Vars: sym("?e"), Branches: [][]query.Clause{
					{pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?a"))},
					{pat(query.Var("?e"), query.Kw(":person/score"), query.Var("?s"))},
				}},
			},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.False(t, aq.CC.IsBound("?a"))
		assert.False(t, aq.CC.IsBound("?s"))
		assert.Len(t, aq.CC.ColumnBindings["?e"], 2)
	})

	t.Run("or-join branch missing a join variable", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{&query.OrJoin{Vars: sym("?e", "?a"), Branches: [][]query.Clause{
				{pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?a"))},
				{pat(query.Var("?e"), query.Kw(":person/score"), query.Var("?s"))},
			}}},
		}
		_, err := Algebrize(peopleSchema(t), q, QueryInputs{})
		requireKind(t, err, datalog.ErrNonMatchingVariablesInOrClause)
	})

	t.Run("every branch empty", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?x"),
			Where: []query.Clause{&query.Or{Branches: [][]query.Clause{
				{
					&query.Ground{Value: query.Const(1), Binding: query.BindScalar{Var: "?x"}},
					&query.Ground{Value: query.Const(2), Binding: query.BindScalar{Var: "?x"}},
				},
			}}},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.True(t, aq.IsKnownEmpty())
	})
}

func TestAlgebrizeNot(t *testing.T) {
	t.Run("correlated to the outer column", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{
				&query.Not{Clauses: []query.Clause{pat(query.Var("?e"), query.Kw(":person/age"), query.Const(30))}},
				pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?n")),
			},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		require.NotEmpty(t, aq.CC.Wheres)
		ne, ok := aq.CC.Wheres[len(aq.CC.Wheres)-1].(NotExists)
		require.True(t, ok)
		assert.Equal(t, []QualifiedColumn{
			{Alias: "datoms00", Column: ColumnEntity},
			{Alias: "datoms01", Column: ColumnEntity},
		}, ne.CC.ColumnBindings["?e"])
		assert.Equal(t, []SourceTable{{Kind: TableDatoms, Alias: "datoms01"}}, ne.CC.From)
	})

	t.Run("unbound variable inside not", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{
				pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?n")),
				&query.Not{Clauses: []query.Clause{pat(query.Var("?f"), query.Kw(":person/age"), query.Const(30))}},
			},
		}
		_, err := Algebrize(peopleSchema(t), q, QueryInputs{})
		qe := requireKind(t, err, datalog.ErrNonMatchingVariablesInNotClause)
		assert.Equal(t, "?f", qe.Var)
	})

	t.Run("not-join with local variables", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{
				pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?n")),
				&query.Not{Unify: sym("?e"), Clauses: []query.Clause{
					pat(query.Var("?e"), query.Kw(":person/friend"), query.Var("?g")),
					pat(query.Var("?g"), query.Kw(":person/age"), query.Var("?age")),
				}},
			},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.False(t, aq.CC.IsBound("?g"))
		assert.IsType(t, NotExists{}, aq.CC.Wheres[len(aq.CC.Wheres)-1])
	})

	t.Run("types inside not do not leak", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{
				pat(query.Var("?e"), query.Var("?a"), query.Var("?v")),
				&query.Not{Clauses: []query.Clause{pat(query.Var("?x"), query.Kw(":person/age"), query.Var("?v"))}},
			},
		}
		_, err := Algebrize(peopleSchema(t), q, QueryInputs{})
		requireKind(t, err, datalog.ErrNonMatchingVariablesInNotClause)

		q.Where[1] = &query.Not{Clauses: []query.Clause{pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?v"))}}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.Equal(t, datalog.AllTypes, aq.CC.TypesOf("?v"))
	})

	t.Run("empty body is dropped", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{
				pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?n")),
				&query.Not{Unify: sym("?e"), Clauses: []query.Clause{
					&query.Ground{Value: query.Const(1), Binding: query.BindScalar{Var: "?z"}},
					&query.Ground{Value: query.Const(2), Binding: query.BindScalar{Var: "?z"}},
				}},
			},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		for _, w := range aq.CC.Wheres {
			_, isNot := w.(NotExists)
			assert.False(t, isNot)
		}
	})
}

func TestAlgebrizeGround(t *testing.T) {
	ageOf := pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?x"))

	t.Run("scalar", func(t *testing.T) {
		q := &query.Query{
			Find:  rel("?x"),
			Where: []query.Clause{&query.Ground{Value: query.Const(10), Binding: query.BindScalar{Var: "?x"}}},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.Equal(t, datalog.Long(10), aq.CC.ValueBindings["?x"])
		assert.Equal(t, datalog.TypeLong, aq.Elements[0].Type)
	})

	t.Run("ground function call", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{
				&query.FunctionCall{Fn: "ground", Args: []query.FnArg{query.Const(42)}, Binding: query.BindScalar{Var: "?x"}},
				ageOf,
			},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.Contains(t, aq.CC.Wheres, ValueEquals{
			Column: QualifiedColumn{Alias: "datoms00", Column: ColumnValue},
			Value:  datalog.Long(42),
		})
	})

	t.Run("collection becomes a values table", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{
				ageOf,
				&query.Ground{Value: query.Const([]interface{}{1, 2, 3}), Binding: query.BindColl{Var: "?x"}},
			},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		require.Len(t, aq.CC.From, 2)
		values := aq.CC.From[1]
		assert.Equal(t, TableValues, values.Kind)
		assert.Equal(t, "c01", values.Alias)
		assert.Equal(t, [][]datalog.TypedValue{{datalog.Long(1)}, {datalog.Long(2)}, {datalog.Long(3)}}, values.Computed.Rows)
		assert.Equal(t, []QualifiedColumn{
			{Alias: "datoms00", Column: ColumnValue},
			{Alias: "c01", Column: "?x"},
		}, aq.CC.ColumnBindings["?x"])
	})

	t.Run("relation", func(t *testing.T) {
		rows := []interface{}{[]interface{}{1, "a"}, []interface{}{2, "b"}}
		q := &query.Query{
			Find:  rel("?n", "?s"),
			Where: []query.Clause{&query.Ground{Value: query.Const(rows), Binding: query.BindRel{Vars: sym("?n", "?s")}}},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.Equal(t, datalog.TypeLong, aq.Elements[0].Type)
		assert.Equal(t, datalog.TypeString, aq.Elements[1].Type)
	})

	t.Run("single element collapses", func(t *testing.T) {
		q := &query.Query{
			Find:  rel("?x"),
			Where: []query.Clause{&query.Ground{Value: query.Const([]interface{}{7}), Binding: query.BindColl{Var: "?x"}}},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.Empty(t, aq.CC.From)
		assert.Equal(t, datalog.Long(7), aq.CC.ValueBindings["?x"])
	})

	t.Run("conflicting constants", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?x"),
			Where: []query.Clause{
				&query.Ground{Value: query.Const(1), Binding: query.BindScalar{Var: "?x"}},
				&query.Ground{Value: query.Const(2), Binding: query.BindScalar{Var: "?x"}},
			},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.True(t, aq.IsKnownEmpty())
	})

	errorCases := []struct {
		name    string
		value   interface{}
		binding query.Binding
		kind    datalog.ErrorKind
	}{
		{"tuple arity", []interface{}{1, 2}, query.BindTuple{Vars: sym("?a", "?b", "?c")}, datalog.ErrGroundBindingsMismatch},
		{"scalar for tuple", 1, query.BindTuple{Vars: sym("?a", "?b")}, datalog.ErrGroundBindingsMismatch},
		{"relation row arity", []interface{}{[]interface{}{1}}, query.BindRel{Vars: sym("?a", "?b")}, datalog.ErrGroundBindingsMismatch},
		{"vector for scalar", []interface{}{1}, query.BindScalar{Var: "?a"}, datalog.ErrInvalidGroundConstant},
		{"mixed column types", []interface{}{1, "a"}, query.BindColl{Var: "?a"}, datalog.ErrInvalidGroundConstant},
		{"empty collection", []interface{}{}, query.BindColl{Var: "?a"}, datalog.ErrInvalidGroundConstant},
		{"unconvertible value", struct{}{}, query.BindScalar{Var: "?a"}, datalog.ErrInvalidGroundConstant},
		{"repeated variable", []interface{}{1, 2}, query.BindTuple{Vars: sym("?a", "?a")}, datalog.ErrInvalidBinding},
		{"no variable", []interface{}{1, 2}, query.BindTuple{Vars: sym("_", "_")}, datalog.ErrInvalidBinding},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			q := &query.Query{
				Find:  rel("?e"),
				Where: []query.Clause{ageOf, &query.Ground{Value: query.Const(tc.value), Binding: tc.binding}},
			}
			_, err := Algebrize(peopleSchema(t), q, QueryInputs{})
			requireKind(t, err, tc.kind)
		})
	}
}

func TestAlgebrizePredicates(t *testing.T) {
	people := []query.Clause{
		pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name")),
		pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?age")),
	}
	with := func(p *query.Predicate) []query.Clause {
		// Predicates come first to show they still see pattern bindings.
		return append([]query.Clause{p}, people...)
	}

	t.Run("comparison", func(t *testing.T) {
		q := &query.Query{
			Find:  rel("?e"),
			Where: with(&query.Predicate{Fn: "<", Args: []query.FnArg{query.Var("?age"), query.Const(30)}}),
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.Equal(t, Comparison{
			Op:    "<",
			Left:  ColumnOperand{Column: QualifiedColumn{Alias: "datoms01", Column: ColumnValue}},
			Right: ValueOperand{Value: datalog.Long(30)},
		}, aq.CC.Wheres[len(aq.CC.Wheres)-1])
	})

	t.Run("string predicate", func(t *testing.T) {
		q := &query.Query{
			Find:  rel("?e"),
			Where: with(&query.Predicate{Fn: "str/starts-with?", Args: []query.FnArg{query.Var("?name"), query.Const("A")}}),
		}
		mustAlgebrize(t, q, QueryInputs{})
	})

	t.Run("narrows an untyped variable", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e"),
			Where: []query.Clause{
				pat(query.Var("?e"), query.Var("?a"), query.Var("?v")),
				&query.Predicate{Fn: ">", Args: []query.FnArg{query.Var("?v"), query.Const(10)}},
			},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		numericOrInstant := datalog.TypeSetOf(datalog.TypeLong, datalog.TypeDouble, datalog.TypeInstant)
		assert.Equal(t, numericOrInstant, aq.CC.TypesOf("?v"))
		assert.Contains(t, aq.CC.Wheres, TypeTagIn{
			Column: QualifiedColumn{Alias: "datoms00", Column: ColumnValue},
			Types:  numericOrInstant,
		})
	})

	errorCases := []struct {
		name string
		pred *query.Predicate
		kind datalog.ErrorKind
		check func(t *testing.T, qe *datalog.Error)
	}{
		{
			name: "unknown function",
			pred: &query.Predicate{Fn: "frobnicate", Args: []query.FnArg{query.Var("?age")}},
			kind: datalog.ErrUnknownFunction,
		},
		{
			name: "wrong arity",
			pred: &query.Predicate{Fn: "<", Args: []query.FnArg{query.Var("?age")}},
			kind: datalog.ErrInvalidNumberOfArguments,
			check: func(t *testing.T, qe *datalog.Error) {
				assert.Equal(t, "invalid number of arguments to <: expected 2, got 1.", qe.Error())
			},
		},
		{
			name: "wrong argument type",
			pred: &query.Predicate{Fn: "<", Args: []query.FnArg{query.Var("?name"), query.Const(30)}},
			kind: datalog.ErrInvalidArgumentType,
			check: func(t *testing.T, qe *datalog.Error) {
				assert.Equal(t, 0, qe.Position)
				assert.Equal(t, datalog.TypeSetOf(datalog.TypeLong, datalog.TypeDouble, datalog.TypeInstant), qe.ExpectedTypes)
			},
		},
		{
			name: "unorderable pair",
			pred: &query.Predicate{Fn: "<", Args: []query.FnArg{query.Var("?age"), query.Const(time.Unix(0, 0))}},
			kind: datalog.ErrInvalidArgumentType,
			check: func(t *testing.T, qe *datalog.Error) {
				assert.Equal(t, 1, qe.Position)
			},
		},
		{
			name: "unbound argument",
			pred: &query.Predicate{Fn: "<", Args: []query.FnArg{query.Var("?zz"), query.Const(30)}},
			kind: datalog.ErrUnboundVariable,
		},
		{
			name: "source argument",
			pred: &query.Predicate{Fn: "<", Args: []query.FnArg{query.SrcVar{Name: "$"}, query.Const(30)}},
			kind: datalog.ErrUnsupportedArgument,
		},
		{
			name: "binding function used as predicate",
			pred: &query.Predicate{Fn: "tx-data", Args: []query.FnArg{query.SrcVar{Name: "$"}, query.Var("?e")}},
			kind: datalog.ErrInvalidBinding,
		},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			q := &query.Query{Find: rel("?e"), Where: with(tc.pred)}
			_, err := Algebrize(peopleSchema(t), q, QueryInputs{})
			qe := requireKind(t, err, tc.kind)
			if tc.check != nil {
				tc.check(t, qe)
			}
		})
	}
}

func TestAlgebrizeFunctionCalls(t *testing.T) {
	src := query.SrcVar{Name: "$"}

	t.Run("tx-ids", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?tx"),
			Where: []query.Clause{&query.FunctionCall{
				Fn:      "tx-ids",
				Args:    []query.FnArg{src, query.Const(datalog.Entid(100)), query.Const(datalog.Entid(200))},
				Binding: query.BindColl{Var: "?tx"},
			}},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.Equal(t, []SourceTable{{Kind: TableTransactions, Alias: "transactions00"}}, aq.CC.From)
		tx := ColumnOperand{Column: QualifiedColumn{Alias: "transactions00", Column: ColumnTx}}
		assert.Equal(t, []Constraint{
			Comparison{Op: ">=", Left: tx, Right: ValueOperand{Value: datalog.Ref(100)}},
			Comparison{Op: "<", Left: tx, Right: ValueOperand{Value: datalog.Ref(200)}},
		}, aq.CC.Wheres)
		assert.Equal(t, datalog.TypeRef, aq.Elements[0].Type)
	})

	t.Run("tx-data", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?e", "?added"),
			Where: []query.Clause{&query.FunctionCall{
				Fn:      "tx-data",
				Args:    []query.FnArg{src, query.Const(datalog.Entid(100))},
				Binding: query.BindRel{Vars: sym("?e", "_", "?v", "_", "?added")},
			}},
		}
		aq := mustAlgebrize(t, q, QueryInputs{})
		assert.Equal(t, datalog.TypeBoolean, aq.Elements[1].Type)
		assert.Equal(t, []QualifiedColumn{{Alias: "transactions00", Column: ColumnAdded}}, aq.CC.ColumnBindings["?added"])
		assert.Equal(t, datalog.AllTypes, aq.CC.TypesOf("?v"))
	})

	errorCases := []struct {
		name    string
		call    *query.FunctionCall
		kind    datalog.ErrorKind
		binding datalog.BindingError
	}{
		{
			name: "tx-ids scalar binding",
			call: &query.FunctionCall{Fn: "tx-ids", Args: []query.FnArg{src, query.Const(1), query.Const(2)}, Binding: query.BindScalar{Var: "?tx"}},
			kind: datalog.ErrInvalidBinding, binding: datalog.BindingExpectedBindRelOrBindColl,
		},
		{
			name: "tx-ids wide relation",
			call: &query.FunctionCall{Fn: "tx-ids", Args: []query.FnArg{src, query.Const(1), query.Const(2)}, Binding: query.BindRel{Vars: sym("?a", "?b")}},
			kind: datalog.ErrInvalidBinding, binding: datalog.BindingInvalidNumberOfBindings,
		},
		{
			name: "tx-ids without source",
			call: &query.FunctionCall{Fn: "tx-ids", Args: []query.FnArg{query.Const(0), query.Const(1), query.Const(2)}, Binding: query.BindColl{Var: "?tx"}},
			kind: datalog.ErrInvalidArgument,
		},
		{
			name: "tx-data collection binding",
			call: &query.FunctionCall{Fn: "tx-data", Args: []query.FnArg{src, query.Const(1)}, Binding: query.BindColl{Var: "?e"}},
			kind: datalog.ErrInvalidBinding, binding: datalog.BindingExpectedBindRel,
		},
		{
			name: "tx-data too many bindings",
			call: &query.FunctionCall{Fn: "tx-data", Args: []query.FnArg{src, query.Const(1)}, Binding: query.BindRel{Vars: sym("?a", "?b", "?c", "?d", "?e", "?f")}},
			kind: datalog.ErrInvalidBinding, binding: datalog.BindingInvalidNumberOfBindings,
		},
		{
			name: "repeated bound variable",
			call: &query.FunctionCall{Fn: "tx-data", Args: []query.FnArg{src, query.Const(1)}, Binding: query.BindRel{Vars: sym("?a", "?a")}},
			kind: datalog.ErrInvalidBinding, binding: datalog.BindingRepeatedBoundVariable,
		},
		{
			name: "no bound variable",
			call: &query.FunctionCall{Fn: "tx-data", Args: []query.FnArg{src, query.Const(1)}, Binding: query.BindRel{Vars: sym("_")}},
			kind: datalog.ErrInvalidBinding, binding: datalog.BindingNoBoundVariable,
		},
		{
			name: "predicate with binding",
			call: &query.FunctionCall{Fn: "<", Args: []query.FnArg{query.Const(1), query.Const(2)}, Binding: query.BindScalar{Var: "?x"}},
			kind: datalog.ErrInvalidBinding, binding: datalog.BindingUnexpected,
		},
		{
			name: "fulltext",
			call: &query.FunctionCall{Fn: "fulltext", Args: []query.FnArg{src, query.Kw(":person/name"), query.Const("alice")}, Binding: query.BindRel{Vars: sym("?e")}},
			kind: datalog.ErrNotYetImplemented,
		},
		{
			name: "get-else",
			call: &query.FunctionCall{Fn: "get-else", Args: []query.FnArg{src, query.Var("?e"), query.Kw(":person/age"), query.Const(0)}, Binding: query.BindScalar{Var: "?age"}},
			kind: datalog.ErrNotYetImplemented,
		},
		{
			name: "unknown function",
			call: &query.FunctionCall{Fn: "frobnicate", Args: []query.FnArg{src}, Binding: query.BindScalar{Var: "?x"}},
			kind: datalog.ErrUnknownFunction,
		},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			q := &query.Query{Find: rel("?e"), Where: []query.Clause{
				pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?n")),
				tc.call,
			}}
			_, err := Algebrize(peopleSchema(t), q, QueryInputs{})
			qe := requireKind(t, err, tc.kind)
			if tc.binding != 0 {
				assert.Equal(t, tc.binding, qe.Binding)
			}
		})
	}
}
