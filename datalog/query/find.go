package query

import (
	"strings"

	"github.com/wbrown/janus-algebra/datalog"
)

// FindSpec is the requested output shape: FindScalar, FindTuple, FindColl
// or FindRel.
type FindSpec interface {
	findSpec()
	Elements() []Element
	String() string
}

// FindScalar is [:find ?x .]
type FindScalar struct {
	Elem Element
}

// FindTuple is [:find [?x ?y]]
type FindTuple struct {
	Elems []Element
}

// FindColl is [:find [?x ...]]
type FindColl struct {
	Elem Element
}

// FindRel is [:find ?x ?y]
type FindRel struct {
	Elems []Element
}

func (FindScalar) findSpec() {}
func (FindTuple) findSpec()  {}
func (FindColl) findSpec()   {}
func (FindRel) findSpec()    {}

func (f FindScalar) Elements() []Element { return []Element{f.Elem} }
func (f FindTuple) Elements() []Element  { return f.Elems }
func (f FindColl) Elements() []Element   { return []Element{f.Elem} }
func (f FindRel) Elements() []Element    { return f.Elems }

func (f FindScalar) String() string { return f.Elem.String() + " ." }
func (f FindTuple) String() string  { return "[" + elementList(f.Elems) + "]" }
func (f FindColl) String() string   { return "[" + f.Elem.String() + " ...]" }
func (f FindRel) String() string    { return elementList(f.Elems) }

func elementList(elems []Element) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		parts[i] = e.String()
	}
	return strings.Join(parts, " ")
}

// Element is one projected item of a find spec.
type Element interface {
	element()
	String() string
}

// ElemVariable projects a variable.
type ElemVariable struct {
	Var Symbol
}

// ElemAggregate applies an aggregate function, e.g. (count ?e) or
// (sample 3 ?x).
type ElemAggregate struct {
	Fn   string
	Args []FnArg
}

// ElemCorresponding is (the ?x): the value of ?x from the row selected by
// the query's single min or max aggregate.
type ElemCorresponding struct {
	Var Symbol
}

// ElemPull is (pull ?e [...]).
type ElemPull struct {
	Var     Symbol
	Pattern *PullPattern
}

func (ElemVariable) element()      {}
func (ElemAggregate) element()     {}
func (ElemCorresponding) element() {}
func (ElemPull) element()          {}

func (e ElemVariable) String() string      { return e.Var.String() }
func (e ElemAggregate) String() string     { return "(" + e.Fn + argList(e.Args) + ")" }
func (e ElemCorresponding) String() string { return "(the " + e.Var.String() + ")" }
func (e ElemPull) String() string          { return "(pull " + e.Var.String() + " " + e.Pattern.String() + ")" }

// Aggregate is shorthand for a single-variable aggregate element.
func Aggregate(fn string, v Symbol) ElemAggregate {
	return ElemAggregate{Fn: fn, Args: []FnArg{Variable{Name: v}}}
}

// PullPattern is the attribute list of a pull expression.
type PullPattern struct {
	Wildcard   bool // [*]
	Attributes []PullAttribute
}

// PullAttribute names one attribute, optionally renamed with :as.
type PullAttribute struct {
	Attr datalog.Keyword
	As   datalog.Keyword
}

// Key returns the output key of the attribute.
func (a PullAttribute) Key() datalog.Keyword {
	if !a.As.IsZero() {
		return a.As
	}
	return a.Attr
}

func (p *PullPattern) String() string {
	if p == nil {
		return "[]"
	}
	var parts []string
	if p.Wildcard {
		parts = append(parts, "*")
	}
	for _, a := range p.Attributes {
		if a.As.IsZero() {
			parts = append(parts, a.Attr.String())
		} else {
			parts = append(parts, "["+a.Attr.String()+" :as "+a.As.String()+"]")
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}
