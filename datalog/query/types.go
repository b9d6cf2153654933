package query

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-algebra/datalog"
)

// Symbol represents a variable in a query (e.g., ?x, ?name), a source
// ($, $log) or the placeholder _.
type Symbol string

// Placeholder is the blank symbol accepted in tuple and relation bindings.
const Placeholder Symbol = "_"

// IsVariable returns true if this is a variable symbol (starts with ?)
func (s Symbol) IsVariable() bool {
	return len(s) > 0 && s[0] == '?'
}

// IsSource returns true if this names a data source (starts with $)
func (s Symbol) IsSource() bool {
	return len(s) > 0 && s[0] == '$'
}

// IsPlaceholder returns true for _
func (s Symbol) IsPlaceholder() bool {
	return s == Placeholder
}

// String returns the string representation
func (s Symbol) String() string {
	return string(s)
}

// PatternElement is a pattern slot: a Variable, a Constant, or a Blank.
type PatternElement interface {
	patternElement()
	String() string
}

// FnArg is a predicate or function argument: a Variable, a Constant, or a
// SrcVar.
type FnArg interface {
	fnArg()
	String() string
}

// Variable represents a query variable (e.g., ?x)
type Variable struct {
	Name Symbol
}

func (Variable) patternElement()  {}
func (Variable) fnArg()           {}
func (v Variable) String() string { return v.Name.String() }

// Blank represents a blank/wildcard (_)
type Blank struct{}

func (Blank) patternElement() {}
func (Blank) String() string  { return "_" }

// Constant represents a concrete value. Value is a Go constant accepted by
// datalog.ValueOf, a datalog.Keyword ident, or, for ground, a []interface{}
// of such values (nested one level for relations).
type Constant struct {
	Value interface{}
}

func (Constant) patternElement() {}
func (Constant) fnArg()          {}
func (c Constant) String() string {
	switch v := c.Value.(type) {
	case []interface{}:
		parts := make([]string, len(v))
		for i, e := range v {
			parts[i] = Constant{Value: e}.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	case string:
		return fmt.Sprintf("%q", v)
	case datalog.TypedValue:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// SrcVar names a data source passed as a function argument, e.g. $.
type SrcVar struct {
	Name Symbol
}

func (SrcVar) fnArg()           {}
func (s SrcVar) String() string { return s.Name.String() }

// Var is shorthand for a Variable element.
func Var(name string) Variable {
	return Variable{Name: Symbol(name)}
}

// Const is shorthand for a Constant element.
func Const(v interface{}) Constant {
	return Constant{Value: v}
}

// Kw is shorthand for a keyword constant such as an attribute ident.
func Kw(s string) Constant {
	return Constant{Value: datalog.NewKeyword(s)}
}

// Pattern is a data pattern [e a v tx]. A nil slot is a blank.
type Pattern struct {
	E, A, V, Tx PatternElement
}

// Slots returns the four slots with nil replaced by Blank.
func (p *Pattern) Slots() [4]PatternElement {
	slots := [4]PatternElement{p.E, p.A, p.V, p.Tx}
	for i, s := range slots {
		if s == nil {
			slots[i] = Blank{}
		}
	}
	return slots
}

// String returns a string representation of the data pattern
func (p *Pattern) String() string {
	slots := p.Slots()
	n := 4
	if p.Tx == nil {
		n = 3
	}
	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = slots[i].String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Order is a single :order clause entry.
type Order struct {
	Var        Symbol
	Descending bool
}

func (o Order) String() string {
	if o.Descending {
		return "(desc " + o.Var.String() + ")"
	}
	return "(asc " + o.Var.String() + ")"
}

// Limit is the :limit of a query: a LimitConstant or a LimitVariable.
// A nil Limit means unlimited.
type Limit interface {
	limit()
	String() string
}

// LimitConstant is a literal limit. Value is checked during compilation, so
// any Go constant is accepted here.
type LimitConstant struct {
	Value interface{}
}

// LimitVariable is a limit supplied through an :in variable.
type LimitVariable struct {
	Var Symbol
}

func (LimitConstant) limit()           {}
func (LimitVariable) limit()           {}
func (l LimitConstant) String() string { return Constant{Value: l.Value}.String() }
func (l LimitVariable) String() string { return l.Var.String() }

// Query is a parsed Datalog query.
type Query struct {
	Find  FindSpec
	In    []Symbol // input variables; source symbols are ignored
	With  []Symbol
	Where []Clause
	Order []Order
	Limit Limit
}

// String returns a string representation of the query
func (q *Query) String() string {
	var b strings.Builder
	b.WriteString("[:find ")
	if q.Find != nil {
		b.WriteString(q.Find.String())
	}
	if len(q.In) > 0 {
		b.WriteString(" :in")
		for _, s := range q.In {
			b.WriteString(" " + s.String())
		}
	}
	if len(q.With) > 0 {
		b.WriteString(" :with")
		for _, s := range q.With {
			b.WriteString(" " + s.String())
		}
	}
	b.WriteString(" :where")
	for _, c := range q.Where {
		b.WriteString(" " + c.String())
	}
	if len(q.Order) > 0 {
		b.WriteString(" :order")
		for _, o := range q.Order {
			b.WriteString(" " + o.String())
		}
	}
	if q.Limit != nil {
		b.WriteString(" :limit " + q.Limit.String())
	}
	b.WriteString("]")
	return b.String()
}
