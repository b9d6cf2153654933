package planner

import (
	"sort"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/query"
)

// Build translates an algebrized query into a plan. It never fails: every
// semantic decision was made during algebrization.
func Build(aq *algebrizer.AlgebraicQuery) *Plan {
	p := buildFrom(aq.CC)
	p.Elements = aq.Elements
	p.Limit = aq.Limit
	p.Distinct = true
	p.Aggregated = aq.HasAggregates()

	for _, el := range aq.Elements {
		c := columnFor(aq.CC, el.Var)
		switch el.Kind {
		case algebrizer.ElementAggregate:
			c.Types = el.Types
			c.Type = 0
			if el.Types.IsUnit() {
				c.Type, _ = el.Types.Exemplar()
			}
		default:
			c.Type = el.Type
			c.Types = datalog.TypeSetOf(el.Type)
		}
		p.Columns = append(p.Columns, c)
	}
	for _, v := range aq.With {
		c := columnFor(aq.CC, v)
		c.Hidden = true
		p.Columns = append(p.Columns, c)
	}
	for _, o := range aq.Order {
		idx := p.groupingColumn(o.Var)
		if idx < 0 {
			c := columnFor(aq.CC, o.Var)
			c.Hidden = true
			p.Columns = append(p.Columns, c)
			idx = len(p.Columns) - 1
		}
		p.Order = append(p.Order, OrderBy{Column: idx, Descending: o.Descending})
	}
	return p
}

// groupingColumn finds a non-aggregate column carrying v.
func (p *Plan) groupingColumn(v query.Symbol) int {
	for i, c := range p.Columns {
		if c.Var != v {
			continue
		}
		if i < len(p.Elements) && p.Elements[i].Kind == algebrizer.ElementAggregate {
			continue
		}
		return i
	}
	return -1
}

// buildFrom translates the tables, joins and filters of a context.
func buildFrom(cc *algebrizer.ConstraintContext) *Plan {
	p := &Plan{EmptyBecause: cc.EmptyBecause}

	for _, src := range cc.From {
		t := TableRef{Kind: src.Kind, Alias: src.Alias}
		if ct := src.Computed; ct != nil {
			t.Vars = ct.Vars
			t.Rows = ct.Rows
			for _, branch := range ct.Branches {
				sub := buildFrom(branch)
				for _, v := range ct.Vars {
					sub.Columns = append(sub.Columns, columnFor(branch, v))
				}
				sub.Distinct = true
				t.Union = append(t.Union, sub)
			}
		}
		p.Tables = append(p.Tables, t)
	}

	for _, v := range cc.BindingOrder {
		cols := cc.ColumnBindings[v]
		for _, c := range cols[1:] {
			p.Joins = append(p.Joins, Join{Left: cols[0], Right: c})
		}
	}

	var equals, params, tags, compares, negations []Filter
	for _, w := range cc.Wheres {
		switch w := w.(type) {
		case algebrizer.ValueEquals:
			equals = append(equals, FilterEquals{Column: w.Column, Value: w.Value})
		case algebrizer.ParamEquals:
			params = append(params, FilterParam{Column: w.Column, Var: w.Var, Type: w.Type})
		case algebrizer.TypeTagIn:
			tags = append(tags, FilterTypeTag{Column: w.Column, Types: w.Types})
		case algebrizer.Comparison:
			compares = append(compares, FilterCompare{Op: w.Op, Left: w.Left, Right: w.Right})
		case algebrizer.NotExists:
			negations = append(negations, FilterNotExists{Sub: buildFrom(w.CC)})
		}
	}
	for _, group := range [][]Filter{equals, params, tags, compares, negations} {
		p.Filters = append(p.Filters, group...)
	}
	return p
}

// columnFor sources a bound variable: its canonical column, else its
// value, else its parameter.
func columnFor(cc *algebrizer.ConstraintContext, v query.Symbol) Column {
	c := Column{Var: v, Types: cc.TypesOf(v)}
	if c.Types.IsUnit() {
		c.Type, _ = c.Types.Exemplar()
	}
	if cols := cc.ColumnBindings[v]; len(cols) > 0 {
		c.Source = SourceTable
		c.Ref = cols[0]
		return c
	}
	if val, ok := cc.ValueBindings[v]; ok {
		c.Source = SourceConstant
		c.Value = val
		c.Type = val.Type
		c.Types = datalog.TypeSetOf(val.Type)
		return c
	}
	c.Source = SourceParam
	return c
}

func sortSymbols(syms []query.Symbol) {
	sort.Slice(syms, func(i, j int) bool { return syms[i] < syms[j] })
}
