package algebrizer

import (
	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
)

// txDataColumns are the columns bound by tx-data, in binding order.
var txDataColumns = []struct {
	name  string
	types datalog.ValueTypeSet
}{
	{ColumnEntity, refTypes},
	{ColumnAttribute, refTypes},
	{ColumnValue, datalog.AllTypes},
	{ColumnTx, refTypes},
	{ColumnAdded, datalog.TypeSetOf(datalog.TypeBoolean)},
}

const fulltextColumns = 4 // entity, value, tx, score

func (cc *ConstraintContext) applyFunctionCall(f *query.FunctionCall) error {
	if f.Fn == groundFn {
		if len(f.Args) != 1 {
			return &datalog.Error{Kind: datalog.ErrInvalidNumberOfArguments, Fn: groundFn, Expected: 1, Actual: len(f.Args)}
		}
		c, ok := f.Args[0].(query.Constant)
		if !ok {
			return &datalog.Error{Kind: datalog.ErrInvalidGroundConstant, Literal: f.Args[0].String()}
		}
		return cc.applyGround(c, f.Binding)
	}

	meta, err := cc.registry.Validate(f.Fn, len(f.Args))
	if err != nil {
		return err
	}
	if meta.Kind != query.KindBinding {
		return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: f.Fn, Binding: datalog.BindingUnexpected}
	}
	if err := checkBindingVars(f.Fn, f.Binding); err != nil {
		return err
	}
	for i, spec := range meta.Args {
		if spec.Source {
			if _, ok := f.Args[i].(query.SrcVar); !ok {
				return &datalog.Error{Kind: datalog.ErrInvalidArgument, Fn: f.Fn, Msg: "a source such as $", Position: i}
			}
		}
	}

	switch f.Fn {
	case "tx-ids":
		return cc.applyTxIDs(f)
	case "tx-data":
		return cc.applyTxData(f)
	case "fulltext":
		rel, ok := f.Binding.(query.BindRel)
		if !ok {
			return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: f.Fn, Binding: datalog.BindingExpectedBindRel}
		}
		if len(rel.Vars) > fulltextColumns {
			return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: f.Fn, Binding: datalog.BindingInvalidNumberOfBindings,
				Actual: len(rel.Vars), Expected: fulltextColumns}
		}
		return datalog.NotYetImplemented("fulltext")
	case "get-else":
		if _, ok := f.Binding.(query.BindScalar); !ok {
			return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: f.Fn, Binding: datalog.BindingUnexpected}
		}
		return datalog.NotYetImplemented("get-else")
	}
	return &datalog.Error{Kind: datalog.ErrUnknownFunction, Fn: f.Fn}
}

// applyTxIDs binds the transactions in [from, to).
func (cc *ConstraintContext) applyTxIDs(f *query.FunctionCall) error {
	var v query.Symbol
	switch b := f.Binding.(type) {
	case query.BindColl:
		v = b.Var
	case query.BindRel:
		if len(b.Vars) != 1 {
			return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: f.Fn, Binding: datalog.BindingInvalidNumberOfBindings,
				Actual: len(b.Vars), Expected: 1}
		}
		v = b.Vars[0]
	default:
		return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: f.Fn, Binding: datalog.BindingExpectedBindRelOrBindColl}
	}

	from, _, err := cc.argOperand(f.Fn, 1, f.Args[1], refTypes)
	if err != nil {
		return err
	}
	to, _, err := cc.argOperand(f.Fn, 2, f.Args[2], refTypes)
	if err != nil {
		return err
	}

	alias := cc.addTable(TableTransactions, nil)
	tx := QualifiedColumn{Alias: alias, Column: ColumnTx}
	cc.Wheres = append(cc.Wheres,
		Comparison{Op: ">=", Left: ColumnOperand{Column: tx}, Right: from},
		Comparison{Op: "<", Left: ColumnOperand{Column: tx}, Right: to},
	)
	if err := cc.narrow(v, refTypes); err != nil {
		return err
	}
	cc.bindColumn(v, tx)
	return nil
}

// applyTxData binds [[?e ?a ?v ?tx ?added]] for one transaction.
func (cc *ConstraintContext) applyTxData(f *query.FunctionCall) error {
	rel, ok := f.Binding.(query.BindRel)
	if !ok {
		return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: f.Fn, Binding: datalog.BindingExpectedBindRel}
	}
	if len(rel.Vars) > len(txDataColumns) {
		return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: f.Fn, Binding: datalog.BindingInvalidNumberOfBindings,
			Actual: len(rel.Vars), Expected: len(txDataColumns)}
	}

	txArg, _, err := cc.argOperand(f.Fn, 1, f.Args[1], refTypes)
	if err != nil {
		return err
	}

	alias := cc.addTable(TableTransactions, nil)
	cc.Wheres = append(cc.Wheres, Comparison{
		Op:    "=",
		Left:  ColumnOperand{Column: QualifiedColumn{Alias: alias, Column: ColumnTx}},
		Right: txArg,
	})
	for i, v := range rel.Vars {
		if !v.IsVariable() {
			continue
		}
		col := QualifiedColumn{Alias: alias, Column: txDataColumns[i].name}
		if err := cc.narrow(v, txDataColumns[i].types); err != nil {
			return err
		}
		if col.Column == ColumnValue {
			cc.untyped = append(cc.untyped, untypedValue{Var: v, Column: col})
		}
		cc.bindColumn(v, col)
	}
	return nil
}
