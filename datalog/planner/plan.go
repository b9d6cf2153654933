// Package planner turns an algebrized query into an abstract relational
// plan: tables, equality joins, filters and projected columns. A Plan is
// executed by a storage backend, directly or through its SQL rendering.
package planner

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/query"
)

// TableRef is one FROM entry of a plan.
type TableRef struct {
	Kind  algebrizer.TableKind
	Alias string

	// Vars names the columns of a computed table.
	Vars []query.Symbol
	// Union holds one sub-plan per branch of a union table. Each branch
	// projects Vars in order.
	Union []*Plan
	// Rows holds the literal rows of a values table.
	Rows [][]datalog.TypedValue
}

// IsComputed reports whether the table is derived rather than stored.
func (t TableRef) IsComputed() bool {
	return t.Kind == algebrizer.TableUnion || t.Kind == algebrizer.TableValues
}

// Join requires two columns to hold equal values.
type Join struct {
	Left, Right algebrizer.QualifiedColumn
}

func (j Join) String() string {
	return j.Left.String() + " = " + j.Right.String()
}

// Filter is a row predicate: FilterEquals, FilterParam, FilterTypeTag,
// FilterCompare or FilterNotExists.
type Filter interface {
	filter()
	String() string
}

// FilterEquals requires a column to equal a constant.
type FilterEquals struct {
	Column algebrizer.QualifiedColumn
	Value  datalog.TypedValue
}

// FilterParam requires a column to equal a parameter supplied at execution.
type FilterParam struct {
	Column algebrizer.QualifiedColumn
	Var    query.Symbol
	Type   datalog.ValueType
}

// FilterTypeTag restricts the type tag of a value column.
type FilterTypeTag struct {
	Column algebrizer.QualifiedColumn
	Types  datalog.ValueTypeSet
}

// FilterCompare applies a predicate such as < or str/starts-with?.
type FilterCompare struct {
	Op          string
	Left, Right algebrizer.Operand
}

// FilterNotExists rejects rows for which the correlated sub-plan has a
// match. The sub-plan's joins may name columns of the enclosing plan.
type FilterNotExists struct {
	Sub *Plan
}

func (FilterEquals) filter()    {}
func (FilterParam) filter()     {}
func (FilterTypeTag) filter()   {}
func (FilterCompare) filter()   {}
func (FilterNotExists) filter() {}

func (f FilterEquals) String() string  { return fmt.Sprintf("%s = %s", f.Column, f.Value) }
func (f FilterParam) String() string   { return fmt.Sprintf("%s = %s", f.Column, f.Var) }
func (f FilterTypeTag) String() string { return fmt.Sprintf("type(%s) in %s", f.Column, f.Types) }
func (f FilterCompare) String() string { return fmt.Sprintf("(%s %s %s)", f.Op, f.Left, f.Right) }
func (f FilterNotExists) String() string {
	return "not exists (" + f.Sub.inline() + ")"
}

// SourceKind says where a projected column's values come from.
type SourceKind uint8

const (
	SourceTable    SourceKind = iota + 1 // a table column
	SourceConstant                       // a value known at compile time
	SourceParam                          // a parameter supplied at execution
)

// Column is one projected column.
type Column struct {
	Var    query.Symbol
	Source SourceKind
	Ref    algebrizer.QualifiedColumn // SourceTable
	Value  datalog.TypedValue         // SourceConstant

	// Type is the column's type when it is known to be unique; Types is
	// always set.
	Type  datalog.ValueType
	Types datalog.ValueTypeSet

	// Hidden columns feed :with grouping or ordering and are not part of
	// the result.
	Hidden bool
}

func (c Column) String() string {
	var src string
	switch c.Source {
	case SourceTable:
		src = c.Ref.String()
	case SourceConstant:
		src = c.Value.String()
	case SourceParam:
		src = "param"
	}
	s := c.Var.String() + "=" + src
	if c.Hidden {
		s += " (hidden)"
	}
	return s
}

// OrderBy sorts on a column of the plan.
type OrderBy struct {
	Column     int
	Descending bool
}

// Plan is the executable form of a query. Columns[i] carries Elements[i]
// for every element; later columns are hidden.
type Plan struct {
	Tables  []TableRef
	Joins   []Join
	Filters []Filter
	Columns []Column

	Elements []algebrizer.ProjectedElement
	Order    []OrderBy
	Limit    algebrizer.Limit

	// Distinct is always set: results have set semantics.
	Distinct bool
	// Aggregated is set when the projector groups rows. The executor then
	// returns every row and the projector applies Limit.
	Aggregated bool

	// EmptyBecause is set when no row can match; executors may skip the
	// plan entirely.
	EmptyBecause string
}

// IsKnownEmpty reports whether the plan cannot produce rows.
func (p *Plan) IsKnownEmpty() bool {
	return p.EmptyBecause != ""
}

// FreeVariables lists the projected variables whose values come from
// table columns, in element order.
func (p *Plan) FreeVariables() []query.Symbol {
	var out []query.Symbol
	seen := make(map[query.Symbol]bool)
	for i := range p.Elements {
		c := p.Columns[i]
		if c.Source == SourceTable && !seen[c.Var] {
			seen[c.Var] = true
			out = append(out, c.Var)
		}
	}
	return out
}

// VisibleColumns returns the number of non-hidden columns.
func (p *Plan) VisibleColumns() int {
	return len(p.Elements)
}

// Params returns the parameter variables the plan needs at execution,
// sorted.
func (p *Plan) Params() []query.Symbol {
	set := make(map[query.Symbol]bool)
	p.collectParams(set)
	if p.Limit.Kind == algebrizer.LimitParam {
		set[p.Limit.Var] = true
	}
	out := make([]query.Symbol, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sortSymbols(out)
	return out
}

func (p *Plan) collectParams(set map[query.Symbol]bool) {
	for _, t := range p.Tables {
		for _, sub := range t.Union {
			sub.collectParams(set)
		}
	}
	for _, f := range p.Filters {
		switch f := f.(type) {
		case FilterParam:
			set[f.Var] = true
		case FilterCompare:
			for _, op := range []algebrizer.Operand{f.Left, f.Right} {
				if po, ok := op.(algebrizer.ParamOperand); ok {
					set[po.Var] = true
				}
			}
		case FilterNotExists:
			f.Sub.collectParams(set)
		}
	}
	for _, c := range p.Columns {
		if c.Source == SourceParam {
			set[c.Var] = true
		}
	}
}

// String renders the plan for trace output.
func (p *Plan) String() string {
	var sb strings.Builder
	sb.WriteString("Plan:\n")
	cols := make([]string, len(p.Columns))
	for i, c := range p.Columns {
		cols[i] = c.String()
	}
	sb.WriteString(fmt.Sprintf("  Columns: %s\n", strings.Join(cols, ", ")))
	for _, t := range p.Tables {
		sb.WriteString("  Table: " + tableString(t) + "\n")
	}
	for _, j := range p.Joins {
		sb.WriteString("  Join: " + j.String() + "\n")
	}
	for _, f := range p.Filters {
		sb.WriteString("  Filter: " + f.String() + "\n")
	}
	if len(p.Order) > 0 {
		sb.WriteString("  Order:")
		for _, o := range p.Order {
			dir := "asc"
			if o.Descending {
				dir = "desc"
			}
			sb.WriteString(fmt.Sprintf(" %s %s", p.Columns[o.Column].Var, dir))
		}
		sb.WriteString("\n")
	}
	if p.Limit.Kind != algebrizer.LimitNone {
		sb.WriteString("  Limit: " + p.Limit.String() + "\n")
	}
	if p.Aggregated {
		sb.WriteString("  Aggregated\n")
	}
	if p.IsKnownEmpty() {
		sb.WriteString("  Empty: " + p.EmptyBecause + "\n")
	}
	return sb.String()
}

// inline renders a sub-plan on one line.
func (p *Plan) inline() string {
	var parts []string
	for _, t := range p.Tables {
		parts = append(parts, tableString(t))
	}
	for _, j := range p.Joins {
		parts = append(parts, j.String())
	}
	for _, f := range p.Filters {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, "; ")
}

func tableString(t TableRef) string {
	switch t.Kind {
	case algebrizer.TableUnion:
		branches := make([]string, len(t.Union))
		for i, b := range t.Union {
			branches[i] = "{" + b.inline() + "}"
		}
		return fmt.Sprintf("%s union%v %s", t.Alias, t.Vars, strings.Join(branches, " | "))
	case algebrizer.TableValues:
		return fmt.Sprintf("%s values%v (%d rows)", t.Alias, t.Vars, len(t.Rows))
	default:
		return t.Kind.String() + " " + t.Alias
	}
}
