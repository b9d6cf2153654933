package algebrizer

import (
	"fmt"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
)

const groundFn = "ground"

// checkBindingVars rejects bindings with no variable or a repeated one.
func checkBindingVars(fn string, b query.Binding) error {
	if len(b.Variables()) == 0 {
		return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: fn, Binding: datalog.BindingNoBoundVariable}
	}
	if v, dup := query.RepeatedVariable(b); dup {
		return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: fn, Var: v.String(), Binding: datalog.BindingRepeatedBoundVariable}
	}
	return nil
}

func (cc *ConstraintContext) applyGround(value query.Constant, b query.Binding) error {
	if err := checkBindingVars(groundFn, b); err != nil {
		return err
	}

	switch b := b.(type) {
	case query.BindScalar:
		val, err := cc.groundScalar(value.Value, b.Var)
		if err != nil {
			return err
		}
		return cc.bindValue(b.Var, val)

	case query.BindTuple:
		items, ok := value.Value.([]interface{})
		if !ok {
			return groundMismatch("expected a vector for a tuple binding")
		}
		if len(items) != len(b.Vars) {
			return groundMismatch(fmt.Sprintf("expected %d values, got %d", len(b.Vars), len(items)))
		}
		return cc.groundRow(b.Vars, items)

	case query.BindColl:
		items, ok := value.Value.([]interface{})
		if !ok {
			return groundMismatch("expected a vector for a collection binding")
		}
		rows := make([][]interface{}, len(items))
		for i, item := range items {
			rows[i] = []interface{}{item}
		}
		return cc.groundTable([]query.Symbol{b.Var}, rows)

	case query.BindRel:
		items, ok := value.Value.([]interface{})
		if !ok {
			return groundMismatch("expected a vector of vectors for a relation binding")
		}
		rows := make([][]interface{}, len(items))
		for i, item := range items {
			row, ok := item.([]interface{})
			if !ok {
				return groundMismatch(fmt.Sprintf("row %d is not a vector", i))
			}
			if len(row) != len(b.Vars) {
				return groundMismatch(fmt.Sprintf("row %d has %d values, expected %d", i, len(row), len(b.Vars)))
			}
			rows[i] = row
		}
		return cc.groundTable(b.Vars, rows)
	}
	return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: groundFn, Binding: datalog.BindingUnexpected}
}

func groundMismatch(msg string) error {
	return &datalog.Error{Kind: datalog.ErrGroundBindingsMismatch, Msg: msg}
}

// groundScalar converts one literal, coercing it to the types v already has.
func (cc *ConstraintContext) groundScalar(raw interface{}, v query.Symbol) (datalog.TypedValue, error) {
	if _, isVector := raw.([]interface{}); isVector {
		return datalog.TypedValue{}, &datalog.Error{Kind: datalog.ErrInvalidGroundConstant, Literal: query.Constant{Value: raw}.String()}
	}
	val, ok, err := cc.coerceToTypes(raw, cc.TypesOf(v))
	if err != nil {
		return datalog.TypedValue{}, err
	}
	if !ok && !val.Type.IsValid() {
		return datalog.TypedValue{}, &datalog.Error{Kind: datalog.ErrInvalidGroundConstant, Literal: fmt.Sprintf("%v", raw)}
	}
	// A convertible value of a disallowed type is reported by narrowing.
	return val, nil
}

// groundRow binds each non-placeholder slot to its value.
func (cc *ConstraintContext) groundRow(vars []query.Symbol, row []interface{}) error {
	for i, v := range vars {
		if !v.IsVariable() {
			continue
		}
		val, err := cc.groundScalar(row[i], v)
		if err != nil {
			return err
		}
		if err := cc.bindValue(v, val); err != nil {
			return err
		}
	}
	return nil
}

// groundTable binds a literal relation. A single row collapses to value
// bindings; more rows become a computed values table.
func (cc *ConstraintContext) groundTable(vars []query.Symbol, rows [][]interface{}) error {
	if len(rows) == 0 {
		return &datalog.Error{Kind: datalog.ErrInvalidGroundConstant, Msg: "empty collection", Literal: "[]"}
	}
	if len(rows) == 1 {
		return cc.groundRow(vars, rows[0])
	}

	var kept []int
	for i, v := range vars {
		if v.IsVariable() {
			kept = append(kept, i)
		}
	}

	table := &ComputedTable{Kind: TableValues}
	colTypes := make([]datalog.ValueType, len(kept))
	for r, row := range rows {
		out := make([]datalog.TypedValue, len(kept))
		for j, i := range kept {
			val, err := cc.groundScalar(row[i], vars[i])
			if err != nil {
				return err
			}
			if r == 0 {
				colTypes[j] = val.Type
			} else if val.Type != colTypes[j] {
				return &datalog.Error{
					Kind:    datalog.ErrInvalidGroundConstant,
					Literal: val.String(),
					Msg:     fmt.Sprintf("mixed types %s and %s for %s", colTypes[j], val.Type, vars[i]),
				}
			}
			out[j] = val
		}
		table.Rows = append(table.Rows, out)
	}

	for j, i := range kept {
		if err := cc.narrow(vars[i], datalog.TypeSetOf(colTypes[j])); err != nil {
			return err
		}
		table.Vars = append(table.Vars, vars[i])
	}
	alias := cc.addTable(TableValues, table)
	for _, v := range table.Vars {
		cc.bindColumn(v, QualifiedColumn{Alias: alias, Column: string(v)})
	}
	return nil
}
