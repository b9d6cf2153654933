package algebrizer

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

// aliaser hands out table aliases. One counter is shared by a query and
// all of its sub-contexts so aliases never collide.
type aliaser struct {
	n int
}

func (a *aliaser) next(kind TableKind) string {
	alias := fmt.Sprintf("%s%02d", kind, a.n)
	a.n++
	return alias
}

// untypedValue is a v column whose attribute is not known statically.
type untypedValue struct {
	Var    query.Symbol
	Column QualifiedColumn
}

// ConstraintContext accumulates what algebrization learns about a query or
// a nested or/not body.
type ConstraintContext struct {
	schema   schema.Schema
	registry *query.FunctionRegistry
	aliases  *aliaser

	From []SourceTable

	// ColumnBindings lists, per variable, the columns that must be equal.
	// The first entry is the canonical source of the variable.
	ColumnBindings map[query.Symbol][]QualifiedColumn
	// BindingOrder lists column-bound variables in first-appearance order.
	BindingOrder []query.Symbol

	ValueBindings map[query.Symbol]datalog.TypedValue
	Params        map[query.Symbol]datalog.ValueType
	Inputs        map[query.Symbol]bool

	// KnownTypes holds the narrowed types; an absent variable may be any type.
	KnownTypes map[query.Symbol]datalog.ValueTypeSet

	Wheres []Constraint

	// EmptyBecause is set when the result is known to be empty.
	EmptyBecause string

	untyped []untypedValue
}

func newConstraintContext(s schema.Schema, registry *query.FunctionRegistry, aliases *aliaser) *ConstraintContext {
	return &ConstraintContext{
		schema:         s,
		registry:       registry,
		aliases:        aliases,
		ColumnBindings: make(map[query.Symbol][]QualifiedColumn),
		ValueBindings:  make(map[query.Symbol]datalog.TypedValue),
		Params:         make(map[query.Symbol]datalog.ValueType),
		Inputs:         make(map[query.Symbol]bool),
		KnownTypes:     make(map[query.Symbol]datalog.ValueTypeSet),
	}
}

// child creates an empty context sharing schema, functions and aliases.
func (cc *ConstraintContext) child() *ConstraintContext {
	return newConstraintContext(cc.schema, cc.registry, cc.aliases)
}

// inherit copies what cc knows about v into the child.
func (cc *ConstraintContext) inherit(child *ConstraintContext, v query.Symbol) {
	if t, ok := cc.KnownTypes[v]; ok {
		child.KnownTypes[v] = t
	}
	if val, ok := cc.ValueBindings[v]; ok {
		child.ValueBindings[v] = val
	}
	if t, ok := cc.Params[v]; ok {
		child.Params[v] = t
	}
	if cc.Inputs[v] {
		child.Inputs[v] = true
	}
}

// IsKnownEmpty reports whether no row can match.
func (cc *ConstraintContext) IsKnownEmpty() bool {
	return cc.EmptyBecause != ""
}

func (cc *ConstraintContext) markEmpty(format string, args ...interface{}) {
	if cc.EmptyBecause == "" {
		cc.EmptyBecause = fmt.Sprintf(format, args...)
	}
}

// TypesOf returns the possible types of v.
func (cc *ConstraintContext) TypesOf(v query.Symbol) datalog.ValueTypeSet {
	if t, ok := cc.KnownTypes[v]; ok {
		return t
	}
	return datalog.AllTypes
}

// IsBound reports whether v has a column, a value, or a parameter.
func (cc *ConstraintContext) IsBound(v query.Symbol) bool {
	if len(cc.ColumnBindings[v]) > 0 {
		return true
	}
	if _, ok := cc.ValueBindings[v]; ok {
		return true
	}
	_, ok := cc.Params[v]
	return ok
}

// narrow intersects the types of v with types.
func (cc *ConstraintContext) narrow(v query.Symbol, types datalog.ValueTypeSet) error {
	cur := cc.TypesOf(v)
	next := cur.Intersect(types)
	if next.IsEmpty() {
		if val, ok := cc.ValueBindings[v]; ok {
			return &datalog.Error{
				Kind:          datalog.ErrInputTypeDisagreement,
				Var:           v.String(),
				Literal:       val.String(),
				Type:          val.Type,
				ExpectedTypes: types,
			}
		}
		return &datalog.Error{
			Kind:          datalog.ErrEmptyTypeIntersection,
			Var:           v.String(),
			Types:         cur,
			ExpectedTypes: types,
		}
	}
	cc.KnownTypes[v] = next
	return nil
}

func (cc *ConstraintContext) addTable(kind TableKind, computed *ComputedTable) string {
	alias := cc.aliases.next(kind)
	cc.From = append(cc.From, SourceTable{Kind: kind, Alias: alias, Computed: computed})
	return alias
}

// bindColumn records that col carries v. A variable that already has a
// value or a parameter constrains the column instead.
func (cc *ConstraintContext) bindColumn(v query.Symbol, col QualifiedColumn) {
	if val, ok := cc.ValueBindings[v]; ok {
		cc.Wheres = append(cc.Wheres, ValueEquals{Column: col, Value: val})
		return
	}
	if t, ok := cc.Params[v]; ok {
		cc.Wheres = append(cc.Wheres, ParamEquals{Column: col, Var: v, Type: t})
		return
	}
	if len(cc.ColumnBindings[v]) == 0 {
		cc.BindingOrder = append(cc.BindingOrder, v)
	}
	cc.ColumnBindings[v] = append(cc.ColumnBindings[v], col)
}

// bindValue binds v to a constant. A different existing constant makes the
// context known-empty.
func (cc *ConstraintContext) bindValue(v query.Symbol, val datalog.TypedValue) error {
	if existing, ok := cc.ValueBindings[v]; ok {
		if !existing.Equal(val) {
			cc.markEmpty("%s is bound to both %s and %s", v, existing, val)
		}
		return nil
	}
	if err := cc.narrow(v, datalog.TypeSetOf(val.Type)); err != nil {
		return err
	}
	if t, ok := cc.Params[v]; ok {
		cc.Wheres = append(cc.Wheres, Comparison{
			Op:    "=",
			Left:  ParamOperand{Var: v, Type: t},
			Right: ValueOperand{Value: val},
		})
	}
	if cols := cc.ColumnBindings[v]; len(cols) > 0 {
		cc.Wheres = append(cc.Wheres, ValueEquals{Column: cols[0], Value: val})
	}
	cc.ValueBindings[v] = val
	return nil
}

// operandFor returns how a bound variable is referenced in a comparison.
func (cc *ConstraintContext) operandFor(v query.Symbol) (Operand, bool) {
	if cols := cc.ColumnBindings[v]; len(cols) > 0 {
		return ColumnOperand{Column: cols[0]}, true
	}
	if val, ok := cc.ValueBindings[v]; ok {
		return ValueOperand{Value: val}, true
	}
	if t, ok := cc.Params[v]; ok {
		return ParamOperand{Var: v, Type: t}, true
	}
	return nil, false
}

// finalize emits type tag filters for value columns whose attribute was
// not known when the column was bound.
func (cc *ConstraintContext) finalize() {
	for _, u := range cc.untyped {
		if types := cc.TypesOf(u.Var); types != datalog.AllTypes {
			cc.Wheres = append(cc.Wheres, TypeTagIn{Column: u.Column, Types: types})
		}
	}
	cc.untyped = nil
}

// String renders a compact description of the context.
func (cc *ConstraintContext) String() string {
	var b strings.Builder
	b.WriteString("{from [")
	for i, t := range cc.From {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(t.Alias)
	}
	b.WriteString("]")
	for _, v := range cc.BindingOrder {
		cols := cc.ColumnBindings[v]
		parts := make([]string, len(cols))
		for i, c := range cols {
			parts[i] = c.String()
		}
		fmt.Fprintf(&b, " %s=%s", v, strings.Join(parts, "="))
	}
	for _, w := range cc.Wheres {
		b.WriteString(" " + w.String())
	}
	if cc.EmptyBecause != "" {
		b.WriteString(" empty: " + cc.EmptyBecause)
	}
	b.WriteString("}")
	return b.String()
}
