package projector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/query"
)

func TestProjectRelation(t *testing.T) {
	q := &query.Query{Find: rel(v("?e"), v("?name")), Where: names()}
	plan := compile(t, q, algebrizer.QueryInputs{})

	res, err := Project(context.Background(), q.Find, plan, rowsOf(
		row(ref(1), datalog.String("Alice")),
		row(ref(2), datalog.String("Bob")),
	), Options{})
	require.NoError(t, err)

	r, ok := res.(*RelResult)
	require.True(t, ok)
	assert.Equal(t, []string{"?e", "?name"}, r.Columns())

	rows, err := r.All()
	require.NoError(t, err)
	assert.Equal(t, [][]datalog.Binding{
		{ref(1), datalog.String("Alice")},
		{ref(2), datalog.String("Bob")},
	}, rows)
}

func TestProjectScalarRowCount(t *testing.T) {
	q := &query.Query{Find: query.FindScalar{Elem: v("?name")}, Where: names()}
	plan := compile(t, q, algebrizer.QueryInputs{})

	t.Run("TwoRows", func(t *testing.T) {
		_, err := Project(context.Background(), q.Find, plan, rowsOf(
			row(datalog.String("Alice")),
			row(datalog.String("Bob")),
		), Options{})
		require.Error(t, err)
		assert.True(t, datalog.IsKind(err, datalog.ErrUnexpectedResultCount))
		assert.Equal(t, "expected exactly one row for scalar find, got 2", err.Error())
	})

	t.Run("NoRows", func(t *testing.T) {
		_, err := Project(context.Background(), q.Find, plan, rowsOf(), Options{})
		assert.True(t, datalog.IsKind(err, datalog.ErrUnexpectedResultCount))
		assert.Contains(t, err.Error(), "got none")
	})

	t.Run("OneRow", func(t *testing.T) {
		res, err := Project(context.Background(), q.Find, plan, rowsOf(row(datalog.String("Alice"))), Options{})
		require.NoError(t, err)
		assert.Equal(t, datalog.String("Alice"), res.(ScalarResult).Value)
	})
}

func TestProjectTuple(t *testing.T) {
	q := &query.Query{
		Find:  query.FindTuple{Elems: []query.Element{v("?e"), v("?name")}},
		Where: names(),
	}
	plan := compile(t, q, algebrizer.QueryInputs{})

	res, err := Project(context.Background(), q.Find, plan, rowsOf(row(ref(1), datalog.String("Alice"))), Options{})
	require.NoError(t, err)
	assert.Equal(t, []datalog.Binding{ref(1), datalog.String("Alice")}, res.(TupleResult).Values)

	_, err = Project(context.Background(), q.Find, plan, rowsOf(row(ref(1))), Options{})
	var qe *datalog.Error
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, datalog.ErrUnexpectedResultsTupleLength, qe.Kind)
	assert.Equal(t, 2, qe.Expected)
	assert.Equal(t, 1, qe.Actual)
}

func TestProjectTupleLengthIgnoresHiddenColumns(t *testing.T) {
	q := &query.Query{
		Find:  query.FindTuple{Elems: []query.Element{v("?name")}},
		Where: namesAndAges(),
		Order: []query.Order{{Var: "?age"}},
	}
	plan := compile(t, q, algebrizer.QueryInputs{})
	require.Len(t, plan.Columns, 2)
	require.True(t, plan.Columns[1].Hidden)

	res, err := Project(context.Background(), q.Find, plan, rowsOf(row(datalog.String("Bob"), datalog.Long(25))), Options{})
	require.NoError(t, err)
	assert.Equal(t, []datalog.Binding{datalog.String("Bob")}, res.(TupleResult).Values)

	_, err = Project(context.Background(), q.Find, plan,
		rowsOf(row(datalog.String("Bob"), datalog.Long(25), datalog.Long(1))), Options{})
	var qe *datalog.Error
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, datalog.ErrUnexpectedResultsTupleLength, qe.Kind)
	assert.Equal(t, 1, qe.Expected)
	assert.Equal(t, 2, qe.Actual)
}

func TestProjectRejectsMistypedRows(t *testing.T) {
	q := &query.Query{Find: rel(v("?e"), v("?name")), Where: names()}
	plan := compile(t, q, algebrizer.QueryInputs{})

	res, err := Project(context.Background(), q.Find, plan, rowsOf(row(ref(1), datalog.Long(3))), Options{})
	require.NoError(t, err)
	_, err = res.(*RelResult).All()
	var qe *datalog.Error
	require.True(t, errors.As(err, &qe))
	assert.True(t, qe.IsInternal())

	res, err = Project(context.Background(), q.Find, plan, rowsOf(row(ref(1))), Options{})
	require.NoError(t, err)
	_, err = res.(*RelResult).All()
	assert.True(t, datalog.IsKind(err, datalog.ErrInternalInvariant))
}

func TestProjectColl(t *testing.T) {
	q := &query.Query{Find: query.FindColl{Elem: v("?name")}, Where: names()}
	plan := compile(t, q, algebrizer.QueryInputs{})

	res, err := Project(context.Background(), q.Find, plan, rowsOf(
		row(datalog.String("Alice")),
		row(datalog.String("Bob")),
	), Options{})
	require.NoError(t, err)
	coll := res.(*CollResult)

	require.True(t, coll.Next())
	assert.Equal(t, datalog.String("Alice"), coll.Value())
	rest, err := coll.All()
	require.NoError(t, err)
	assert.Equal(t, []datalog.Binding{datalog.String("Bob")}, rest)
	assert.False(t, coll.Next())
	assert.Nil(t, coll.Value())
}

func TestProjectLazyFailure(t *testing.T) {
	q := &query.Query{Find: rel(v("?e"), v("?name")), Where: names()}
	plan := compile(t, q, algebrizer.QueryInputs{})
	cause := errors.New("disk on fire")
	rows := &failingRows{SliceRows: rowsOf(row(ref(1), datalog.String("Alice"))), err: cause}

	res, err := Project(context.Background(), q.Find, plan, rows, Options{})
	require.NoError(t, err)
	r := res.(*RelResult)

	require.True(t, r.Next())
	first := r.Row()
	assert.False(t, r.Next())

	err = r.Err()
	assert.True(t, datalog.IsKind(err, datalog.ErrRowSource))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, []datalog.Binding{ref(1), datalog.String("Alice")}, first, "earlier rows stay valid")

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, 1, rows.closed)
}

func TestProjectCloseStopsIteration(t *testing.T) {
	q := &query.Query{Find: rel(v("?e"), v("?name")), Where: names()}
	plan := compile(t, q, algebrizer.QueryInputs{})
	rows := &failingRows{SliceRows: rowsOf(
		row(ref(1), datalog.String("Alice")),
		row(ref(2), datalog.String("Bob")),
	)}

	res, err := Project(context.Background(), q.Find, plan, rows, Options{})
	require.NoError(t, err)
	r := res.(*RelResult)
	require.True(t, r.Next())
	require.NoError(t, r.Close())
	assert.False(t, r.Next())
	assert.NoError(t, r.Err())
	assert.Equal(t, 1, rows.closed)
}

func TestProjectAnnotations(t *testing.T) {
	var events []annotations.Event
	collector := annotations.NewCollector(func(e annotations.Event) { events = append(events, e) })
	q := &query.Query{Find: rel(v("?e"), v("?name")), Where: names()}
	plan := compile(t, q, algebrizer.QueryInputs{})

	res, err := Project(context.Background(), q.Find, plan, rowsOf(
		row(ref(1), datalog.String("Alice")),
		row(ref(2), datalog.String("Bob")),
	), Options{Collector: collector})
	require.NoError(t, err)
	assert.Empty(t, events, "nothing is reported before iteration ends")

	_, err = res.(*RelResult).All()
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, annotations.QueryProjected, events[0].Name)
	assert.Equal(t, 2, events[0].Data["rows"])
}

func TestProjectNilRowSource(t *testing.T) {
	q := &query.Query{Find: rel(v("?e")), Where: names()}
	plan := compile(t, q, algebrizer.QueryInputs{})

	res, err := Project(context.Background(), q.Find, plan, nil, Options{})
	require.NoError(t, err)
	rows, err := res.(*RelResult).All()
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestNewRejectsMismatchedPlan(t *testing.T) {
	q := &query.Query{Find: rel(v("?e"), v("?name")), Where: names()}
	plan := compile(t, q, algebrizer.QueryInputs{})

	_, err := New(rel(v("?e")), plan, Options{})
	assert.True(t, datalog.IsKind(err, datalog.ErrInternalInvariant))
}
