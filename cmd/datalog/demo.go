package main

import (
	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
)

type fact struct {
	e datalog.Entid
	a string
	v interface{}
}

const (
	alice datalog.Entid = 1
	bob   datalog.Entid = 2
	carol datalog.Entid = 3
	dave  datalog.Entid = 4
)

var demoFacts = []fact{
	{alice, ":person/name", "Alice"},
	{alice, ":person/age", int64(30)},
	{alice, ":person/city", "New York"},
	{bob, ":person/name", "Bob"},
	{bob, ":person/age", int64(25)},
	{bob, ":person/city", "Boston"},
	{carol, ":person/name", "Carol"},
	{carol, ":person/age", int64(35)},
	{carol, ":person/city", "New York"},
	{dave, ":person/name", "Dave"},
	{dave, ":person/age", int64(41)},
	{dave, ":person/city", "Chicago"},
	{alice, ":person/friend", bob},
	{alice, ":person/friend", carol},
	{bob, ":person/friend", carol},
	{carol, ":person/friend", dave},
}

type demoQuery struct {
	title  string
	query  *query.Query
	params map[query.Symbol]datalog.TypedValue
}

func pat(e, a, v query.PatternElement) *query.Pattern {
	return &query.Pattern{E: e, A: a, V: v}
}

func vars(names ...string) []query.Element {
	elems := make([]query.Element, len(names))
	for i, n := range names {
		elems[i] = query.ElemVariable{Var: query.Symbol(n)}
	}
	return elems
}

func demoQueries() []demoQuery {
	return []demoQuery{
		{
			title: "People and ages, oldest first",
			query: &query.Query{
				Find: query.FindRel{Elems: vars("?name", "?age")},
				Where: []query.Clause{
					pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name")),
					pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?age")),
				},
				Order: []query.Order{{Var: "?age", Descending: true}},
			},
		},
		{
			title: "Friends of friends",
			query: &query.Query{
				Find: query.FindRel{Elems: vars("?name", "?fof")},
				Where: []query.Clause{
					pat(query.Var("?a"), query.Kw(":person/name"), query.Var("?name")),
					pat(query.Var("?a"), query.Kw(":person/friend"), query.Var("?b")),
					pat(query.Var("?b"), query.Kw(":person/friend"), query.Var("?c")),
					pat(query.Var("?c"), query.Kw(":person/name"), query.Var("?fof")),
				},
				Order: []query.Order{{Var: "?name"}, {Var: "?fof"}},
			},
		},
		{
			title: "People in a city older than 28",
			query: &query.Query{
				Find: query.FindColl{Elem: query.ElemVariable{Var: "?name"}},
				In:   []query.Symbol{"?city"},
				Where: []query.Clause{
					pat(query.Var("?e"), query.Kw(":person/city"), query.Var("?city")),
					pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?age")),
					&query.Predicate{Fn: ">", Args: []query.FnArg{query.Var("?age"), query.Const(28)}},
					pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name")),
				},
			},
			params: map[query.Symbol]datalog.TypedValue{"?city": datalog.String("New York")},
		},
		{
			title: "People without friends",
			query: &query.Query{
				Find: query.FindColl{Elem: query.ElemVariable{Var: "?name"}},
				Where: []query.Clause{
					pat(query.Var("?e"), query.Kw(":person/name"), query.Var("?name")),
					&query.Not{Clauses: []query.Clause{
						pat(query.Var("?e"), query.Kw(":person/friend"), nil),
					}},
				},
			},
		},
		{
			title: "Average age per city",
			query: &query.Query{
				Find: query.FindRel{Elems: []query.Element{
					query.ElemVariable{Var: "?city"},
					query.Aggregate("avg", "?age"),
					query.Aggregate("count", "?e"),
				}},
				Where: []query.Clause{
					pat(query.Var("?e"), query.Kw(":person/city"), query.Var("?city")),
					pat(query.Var("?e"), query.Kw(":person/age"), query.Var("?age")),
				},
				Order: []query.Order{{Var: "?city"}},
			},
		},
	}
}
