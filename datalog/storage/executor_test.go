package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/projector"
	"github.com/wbrown/janus-algebra/datalog/query"
)

const seedTx = TxBase + 1

func TestExecutePatterns(t *testing.T) {
	db := seededDB(t, Options{})

	t.Run("single pattern", func(t *testing.T) {
		q := &query.Query{
			Find:  rel("?e", "?name"),
			Where: []query.Clause{pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name"))},
		}
		assert.Equal(t, [][]datalog.Binding{
			tuple(ref(alice), str("Alice")),
			tuple(ref(bob), str("Bob")),
			tuple(ref(carol), str("Carol")),
		}, rows(t, db, q, algebrizer.QueryInputs{}))
	})

	t.Run("join on entity", func(t *testing.T) {
		q := &query.Query{Find: rel("?name", "?age"), Where: namesAndAges()}
		assert.ElementsMatch(t, [][]datalog.Binding{
			tuple(str("Alice"), long(30)),
			tuple(str("Bob"), long(25)),
			tuple(str("Carol"), long(35)),
		}, rows(t, db, q, algebrizer.QueryInputs{}))
	})

	t.Run("constant value", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?age"),
			Where: []query.Clause{
				pat(query.Var("?e"), query.Kw(":person/name"), query.Const("Bob")),
				pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?age")),
			},
		}
		assert.Equal(t, [][]datalog.Binding{tuple(long(25))}, rows(t, db, q, algebrizer.QueryInputs{}))
	})

	t.Run("constant entity", func(t *testing.T) {
		q := &query.Query{
			Find:  rel("?name"),
			Where: []query.Clause{pat(query.Const(carol), query.Kw(":person/name"), query.Var("?name"))},
		}
		assert.Equal(t, [][]datalog.Binding{tuple(str("Carol"))}, rows(t, db, q, algebrizer.QueryInputs{}))
	})

	t.Run("ref value joins to entity", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?fname"),
			Where: []query.Clause{
				pat(query.Var("?a"), query.Kw(":person/name"), query.Const("Alice")),
				pat(query.Var("?a"), query.Kw(":person/friend"), query.Var("?f")),
				pat(query.Var("?f"), query.Kw(":person/name"), query.Var("?fname")),
			},
		}
		assert.ElementsMatch(t, [][]datalog.Binding{
			tuple(str("Bob")),
			tuple(str("Carol")),
		}, rows(t, db, q, algebrizer.QueryInputs{}))
	})

	t.Run("no match", func(t *testing.T) {
		q := &query.Query{
			Find:  rel("?e"),
			Where: []query.Clause{pat(query.Var("?e"), query.Kw(":person/name"), query.Const("Dave"))},
		}
		assert.Empty(t, rows(t, db, q, algebrizer.QueryInputs{}))
	})
}

func TestExecutePredicates(t *testing.T) {
	db := seededDB(t, Options{})

	tests := []struct {
		name string
		pred *query.Predicate
		want []string
	}{
		{
			name: "less than",
			pred: &query.Predicate{Fn: "<", Args: []query.FnArg{query.Var("?age"), query.Const(32)}},
			want: []string{"Alice", "Bob"},
		},
		{
			name: "greater or equal",
			pred: &query.Predicate{Fn: ">=", Args: []query.FnArg{query.Var("?age"), query.Const(30)}},
			want: []string{"Alice", "Carol"},
		},
		{
			name: "not equal",
			pred: &query.Predicate{Fn: "!=", Args: []query.FnArg{query.Var("?name"), query.Const("Bob")}},
			want: []string{"Alice", "Carol"},
		},
		{
			name: "starts with",
			pred: &query.Predicate{Fn: "str/starts-with?", Args: []query.FnArg{query.Var("?name"), query.Const("C")}},
			want: []string{"Carol"},
		},
		{
			name: "contains",
			pred: &query.Predicate{Fn: "str/contains?", Args: []query.FnArg{query.Var("?name"), query.Const("o")}},
			want: []string{"Bob", "Carol"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &query.Query{
				Find:  rel("?name"),
				Where: append(namesAndAges(), tt.pred),
			}
			var got []string
			for _, r := range rows(t, db, q, algebrizer.QueryInputs{}) {
				got = append(got, r[0].(datalog.TypedValue).V.(string))
			}
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestExecuteNot(t *testing.T) {
	db := seededDB(t, Options{})
	q := &query.Query{
		Find: rel("?name"),
		Where: []query.Clause{
			pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name")),
			&query.Not{Clauses: []query.Clause{
				pat(query.Var("?e"), query.Kw(":person/friend"), query.Blank{}),
			}},
		},
	}
	assert.Equal(t, [][]datalog.Binding{tuple(str("Carol"))}, rows(t, db, q, algebrizer.QueryInputs{}))
}

func TestExecuteOr(t *testing.T) {
	db := seededDB(t, Options{})
	q := &query.Query{
		Find: rel("?e"),
		Where: []query.Clause{
			&query.Or{Branches: [][]query.Clause{
				{pat(query.Var("?e"), query.Kw(":person/name"), query.Const("Bob"))},
				{pat(query.Var("?e"), query.Kw(":person/age"), query.Const(35))},
				{pat(query.Var("?e"), query.Kw(":person/name"), query.Const("Carol"))},
			}},
		},
	}
	assert.ElementsMatch(t, [][]datalog.Binding{
		tuple(ref(bob)),
		tuple(ref(carol)),
	}, rows(t, db, q, algebrizer.QueryInputs{}))
}

func TestExecuteGround(t *testing.T) {
	db := seededDB(t, Options{})

	t.Run("values table", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?name"),
			Where: append(namesAndAges(),
				&query.Ground{Value: query.Const([]interface{}{25, 35, 99}), Binding: query.BindColl{Var: "?age"}}),
		}
		assert.ElementsMatch(t, [][]datalog.Binding{
			tuple(str("Bob")),
			tuple(str("Carol")),
		}, rows(t, db, q, algebrizer.QueryInputs{}))
	})

	t.Run("scalar constant column", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?name", "?tag"),
			Where: []query.Clause{
				pat(query.Var("?e"), query.Kw(":person/age"), query.Const(30)),
				pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name")),
				&query.Ground{Value: query.Const("vip"), Binding: query.BindScalar{Var: "?tag"}},
			},
		}
		assert.Equal(t, [][]datalog.Binding{tuple(str("Alice"), str("vip"))}, rows(t, db, q, algebrizer.QueryInputs{}))
	})

	t.Run("known empty", func(t *testing.T) {
		q := &query.Query{
			Find: rel("?x"),
			Where: []query.Clause{
				&query.Ground{Value: query.Const(1), Binding: query.BindScalar{Var: "?x"}},
				&query.Ground{Value: query.Const(2), Binding: query.BindScalar{Var: "?x"}},
			},
		}
		assert.Empty(t, rows(t, db, q, algebrizer.QueryInputs{}))
	})
}

func TestExecuteOrderAndLimit(t *testing.T) {
	db := seededDB(t, Options{})
	q := &query.Query{
		Find:  rel("?name", "?age"),
		Where: namesAndAges(),
		Order: []query.Order{{Var: "?age", Descending: true}},
		Limit: query.LimitConstant{Value: 2},
	}
	assert.Equal(t, [][]datalog.Binding{
		tuple(str("Carol"), long(35)),
		tuple(str("Alice"), long(30)),
	}, rows(t, db, q, algebrizer.QueryInputs{}))

	t.Run("hidden order column", func(t *testing.T) {
		q := &query.Query{
			Find:  rel("?name"),
			Where: namesAndAges(),
			Order: []query.Order{{Var: "?age"}},
		}
		assert.Equal(t, [][]datalog.Binding{
			tuple(str("Bob")),
			tuple(str("Alice")),
			tuple(str("Carol")),
		}, rows(t, db, q, algebrizer.QueryInputs{}))
	})
}

func TestExecuteParams(t *testing.T) {
	db := seededDB(t, Options{})
	ctx := context.Background()

	t.Run("value input", func(t *testing.T) {
		q := &query.Query{
			Find:  rel("?age"),
			In:    []query.Symbol{"?name"},
			Where: namesAndAges(),
		}
		inputs := algebrizer.WithValues(map[query.Symbol]datalog.TypedValue{"?name": datalog.String("Bob")})
		assert.Equal(t, [][]datalog.Binding{tuple(long(25))}, rows(t, db, q, inputs))
	})

	q := &query.Query{
		Find:  rel("?age"),
		In:    []query.Symbol{"?name"},
		Where: namesAndAges(),
	}
	prepared, err := db.Prepare(q, algebrizer.WithTypes(map[query.Symbol]datalog.ValueType{"?name": datalog.TypeString}))
	require.NoError(t, err)

	run := func(params map[query.Symbol]datalog.TypedValue) ([][]datalog.Binding, error) {
		res, err := prepared.Run(ctx, params)
		if err != nil {
			return nil, err
		}
		return res.(*projector.RelResult).All()
	}

	t.Run("type-only input becomes a parameter", func(t *testing.T) {
		got, err := run(map[query.Symbol]datalog.TypedValue{"?name": datalog.String("Carol")})
		require.NoError(t, err)
		assert.Equal(t, [][]datalog.Binding{tuple(long(35))}, got)

		got, err = run(map[query.Symbol]datalog.TypedValue{"?name": datalog.String("Alice")})
		require.NoError(t, err)
		assert.Equal(t, [][]datalog.Binding{tuple(long(30))}, got)
	})

	t.Run("missing parameter", func(t *testing.T) {
		_, err := run(nil)
		require.Error(t, err)
		assert.True(t, datalog.IsKind(err, datalog.ErrUnboundVariable))
	})

	t.Run("parameter of the wrong type", func(t *testing.T) {
		_, err := run(map[query.Symbol]datalog.TypedValue{"?name": datalog.Long(1)})
		require.Error(t, err)
		assert.True(t, datalog.IsKind(err, datalog.ErrInputTypeDisagreement))
	})
}

func TestExecuteParamLimit(t *testing.T) {
	db := seededDB(t, Options{})
	q := &query.Query{
		Find:  rel("?name"),
		In:    []query.Symbol{"?n"},
		Where: namesAndAges(),
		Order: []query.Order{{Var: "?name"}},
		Limit: query.LimitVariable{Var: "?n"},
	}
	prepared, err := db.Prepare(q, algebrizer.WithTypes(map[query.Symbol]datalog.ValueType{"?n": datalog.TypeLong}))
	require.NoError(t, err)

	res, err := prepared.Run(context.Background(), map[query.Symbol]datalog.TypedValue{"?n": datalog.Long(2)})
	require.NoError(t, err)
	got, err := res.(*projector.RelResult).All()
	require.NoError(t, err)
	assert.Equal(t, [][]datalog.Binding{tuple(str("Alice")), tuple(str("Bob"))}, got)

	_, err = prepared.Run(context.Background(), map[query.Symbol]datalog.TypedValue{"?n": datalog.Long(0)})
	require.Error(t, err)
	assert.True(t, datalog.IsKind(err, datalog.ErrInvalidLimit))
}

func TestExecuteAggregates(t *testing.T) {
	db := seededDB(t, Options{})
	ctx := context.Background()

	t.Run("count", func(t *testing.T) {
		q := &query.Query{
			Find:  query.FindScalar{Elem: query.Aggregate("count", "?e")},
			Where: []query.Clause{pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name"))},
		}
		res, err := db.Query(ctx, q, algebrizer.QueryInputs{})
		require.NoError(t, err)
		assert.Equal(t, datalog.Long(3), res.(projector.ScalarResult).Value)
	})

	t.Run("max ignores limit", func(t *testing.T) {
		q := &query.Query{
			Find:  query.FindRel{Elems: []query.Element{query.Aggregate("max", "?age")}},
			Where: namesAndAges(),
			Limit: query.LimitConstant{Value: 1},
		}
		assert.Equal(t, [][]datalog.Binding{tuple(long(35))}, rows(t, db, q, algebrizer.QueryInputs{}))
	})

	t.Run("friends per person", func(t *testing.T) {
		q := &query.Query{
			Find: query.FindRel{Elems: []query.Element{
				query.ElemVariable{Var: "?name"},
				query.Aggregate("count", "?f"),
			}},
			Where: []query.Clause{
				pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name")),
				pat(query.Var("?e"), query.Kw(":person/friend"), query.Var("?f")),
			},
		}
		assert.ElementsMatch(t, [][]datalog.Binding{
			tuple(str("Alice"), long(2)),
			tuple(str("Bob"), long(1)),
		}, rows(t, db, q, algebrizer.QueryInputs{}))
	})
}

func TestExecuteTransactionFunctions(t *testing.T) {
	db := seededDB(t, Options{})
	tx := db.NewTransaction()
	require.NoError(t, tx.Retract(bob, personFriend, carol))
	second, err := tx.Commit()
	require.NoError(t, err)
	require.Equal(t, seedTx+1, second)

	src := query.SrcVar{Name: "$"}

	t.Run("tx-ids", func(t *testing.T) {
		q := &query.Query{
			Find: query.FindColl{Elem: query.ElemVariable{Var: "?tx"}},
			Where: []query.Clause{&query.FunctionCall{
				Fn:      "tx-ids",
				Args:    []query.FnArg{src, query.Const(TxBase), query.Const(TxBase + 100)},
				Binding: query.BindColl{Var: "?tx"},
			}},
		}
		res, err := db.Query(context.Background(), q, algebrizer.QueryInputs{})
		require.NoError(t, err)
		got, err := res.(*projector.CollResult).All()
		require.NoError(t, err)
		assert.ElementsMatch(t, []datalog.Binding{ref(seedTx), ref(second)}, got)
	})

	txData := func(tx datalog.Entid) *query.Query {
		return &query.Query{
			Find: rel("?e", "?added"),
			Where: []query.Clause{&query.FunctionCall{
				Fn:      "tx-data",
				Args:    []query.FnArg{src, query.Const(tx)},
				Binding: query.BindRel{Vars: []query.Symbol{"?e", "_", "_", "_", "?added"}},
			}},
		}
	}

	t.Run("tx-data", func(t *testing.T) {
		assert.ElementsMatch(t, [][]datalog.Binding{
			tuple(ref(alice), datalog.Boolean(true)),
			tuple(ref(bob), datalog.Boolean(true)),
			tuple(ref(carol), datalog.Boolean(true)),
			tuple(ref(seedTx), datalog.Boolean(true)),
		}, rows(t, db, txData(seedTx), algebrizer.QueryInputs{}))
	})

	t.Run("tx-data retraction", func(t *testing.T) {
		assert.ElementsMatch(t, [][]datalog.Binding{
			tuple(ref(bob), datalog.Boolean(false)),
			tuple(ref(second), datalog.Boolean(true)),
		}, rows(t, db, txData(second), algebrizer.QueryInputs{}))
	})
}

func TestExecuteCancelled(t *testing.T) {
	db := seededDB(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	q := &query.Query{Find: rel("?name", "?age"), Where: namesAndAges()}
	_, err := db.Query(ctx, q, algebrizer.QueryInputs{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, datalog.IsKind(err, datalog.ErrStorage))
}

func TestExecuteEvents(t *testing.T) {
	rec, collector := newRecorder()
	db := seededDB(t, Options{Collector: collector})
	rec.events = nil

	q := &query.Query{
		Find: rel("?e"),
		Where: []query.Clause{
			&query.Or{Branches: [][]query.Clause{
				{pat(query.Var("?e"), query.Kw(":person/name"), query.Const("Bob"))},
				{pat(query.Var("?e"), query.Kw(":person/age"), query.Const(35))},
			}},
		},
	}
	assert.Len(t, rows(t, db, q, algebrizer.QueryInputs{}), 2)

	names := rec.names()
	assert.Contains(t, names, annotations.TableMaterialized)
	assert.Contains(t, names, annotations.QueryExecuted)
	assert.Equal(t, annotations.QueryInvoked, names[0])

	for _, e := range rec.events {
		if e.Name == annotations.QueryExecuted {
			assert.Equal(t, Backend, e.Data["backend"])
			assert.Equal(t, 2, e.Data["rows"])
		}
	}
}
