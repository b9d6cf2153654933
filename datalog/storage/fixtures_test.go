package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/projector"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

var (
	personName   = datalog.NewKeyword(":person/name")
	personAge    = datalog.NewKeyword(":person/age")
	personFriend = datalog.NewKeyword(":person/friend")
)

const (
	alice datalog.Entid = 1
	bob   datalog.Entid = 2
	carol datalog.Entid = 3
)

var seedTime = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func peopleSchema(t *testing.T) *schema.Memory {
	t.Helper()
	s := schema.NewMemory()
	for _, a := range []schema.Attribute{
		{Ident: personName, ValueType: datalog.TypeString, Unique: schema.UniqueIdentity},
		{Ident: personAge, ValueType: datalog.TypeLong},
		{Ident: personFriend, ValueType: datalog.TypeRef, Multival: true},
		{Ident: TxInstant, ValueType: datalog.TypeInstant},
	} {
		_, err := s.AddAttribute(a)
		require.NoError(t, err)
	}
	return s
}

func attrID(t *testing.T, s schema.Schema, k datalog.Keyword) datalog.Entid {
	t.Helper()
	e, ok := s.EntidForIdent(k)
	require.True(t, ok, "unknown attribute %s", k)
	return e
}

// newTestDB opens an in-memory database with the people schema.
func newTestDB(t *testing.T, opts Options) *Database {
	t.Helper()
	db, err := NewDatabase("", peopleSchema(t), opts)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// seededDB loads three people in one transaction. Alice is friends with
// Bob and Carol, Bob with Carol.
func seededDB(t *testing.T, opts Options) *Database {
	t.Helper()
	db := newTestDB(t, opts)
	tx := db.NewTransaction()
	tx.SetTime(seedTime)
	for _, p := range []struct {
		e    datalog.Entid
		name string
		age  int64
	}{
		{alice, "Alice", 30},
		{bob, "Bob", 25},
		{carol, "Carol", 35},
	} {
		require.NoError(t, tx.Add(p.e, personName, p.name))
		require.NoError(t, tx.Add(p.e, personAge, p.age))
	}
	require.NoError(t, tx.Add(alice, personFriend, bob))
	require.NoError(t, tx.Add(alice, personFriend, carol))
	require.NoError(t, tx.Add(bob, personFriend, carol))
	_, err := tx.Commit()
	require.NoError(t, err)
	return db
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

// rows runs a relation query and returns its rows.
func rows(t *testing.T, db *Database, q *query.Query, inputs algebrizer.QueryInputs) [][]datalog.Binding {
	t.Helper()
	res, err := db.Query(context.Background(), q, inputs)
	require.NoError(t, err)
	r, ok := res.(*projector.RelResult)
	require.True(t, ok, "expected a relation, got %T", res)
	out, err := r.All()
	require.NoError(t, err)
	return out
}

func tuple(values ...datalog.Binding) []datalog.Binding {
	return values
}

func str(s string) datalog.Binding        { return datalog.String(s) }
func long(n int64) datalog.Binding        { return datalog.Long(n) }
func ref(e datalog.Entid) datalog.Binding { return datalog.Ref(e) }

// recorder collects annotation events.
type recorder struct {
	events []annotations.Event
}

func (r *recorder) handle(e annotations.Event) {
	r.events = append(r.events, e)
}

func (r *recorder) names() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}

func newRecorder() (*recorder, *annotations.Collector) {
	r := &recorder{}
	return r, annotations.NewCollector(r.handle)
}
