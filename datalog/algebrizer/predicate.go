package algebrizer

import (
	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
)

// orderedComparisons must compare values of a common domain.
var orderedComparisons = map[string]bool{"<": true, ">": true, "<=": true, ">=": true}

func (cc *ConstraintContext) applyPredicate(p *query.Predicate) error {
	meta, err := cc.registry.Validate(p.Fn, len(p.Args))
	if err != nil {
		return err
	}
	if meta.Kind != query.KindPredicate {
		return &datalog.Error{Kind: datalog.ErrInvalidBinding, Fn: p.Fn, Binding: datalog.BindingNoBoundVariable}
	}

	operands := make([]Operand, len(p.Args))
	types := make([]datalog.ValueTypeSet, len(p.Args))
	for i, arg := range p.Args {
		op, t, err := cc.argOperand(p.Fn, i, arg, meta.Args[i].Types)
		if err != nil {
			return err
		}
		operands[i] = op
		types[i] = t
	}

	if orderedComparisons[p.Fn] && !orderable(types[0], types[1]) {
		return &datalog.Error{
			Kind:          datalog.ErrInvalidArgumentType,
			Fn:            p.Fn,
			ExpectedTypes: orderableWith(types[0]),
			Position:      1,
		}
	}

	cc.Wheres = append(cc.Wheres, Comparison{Op: p.Fn, Left: operands[0], Right: operands[1]})
	return nil
}

// argOperand validates one argument against its allowed types and returns
// the operand with the argument's possible types.
func (cc *ConstraintContext) argOperand(fn string, pos int, arg query.FnArg, allowed datalog.ValueTypeSet) (Operand, datalog.ValueTypeSet, error) {
	switch a := arg.(type) {
	case query.SrcVar:
		return nil, 0, &datalog.Error{Kind: datalog.ErrUnsupportedArgument, Fn: fn, Literal: a.String(), Position: pos}

	case query.Variable:
		if !cc.IsBound(a.Name) {
			return nil, 0, &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: a.Name.String(), Msg: "in " + fn}
		}
		if cc.TypesOf(a.Name).Intersect(allowed).IsEmpty() {
			return nil, 0, &datalog.Error{Kind: datalog.ErrInvalidArgumentType, Fn: fn, ExpectedTypes: allowed, Position: pos}
		}
		if err := cc.narrow(a.Name, allowed); err != nil {
			return nil, 0, err
		}
		op, _ := cc.operandFor(a.Name)
		return op, cc.TypesOf(a.Name), nil

	case query.Constant:
		val, ok, err := cc.coerceToTypes(a.Value, allowed)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			return nil, 0, &datalog.Error{Kind: datalog.ErrInvalidArgumentType, Fn: fn, ExpectedTypes: allowed, Position: pos}
		}
		return ValueOperand{Value: val}, datalog.TypeSetOf(val.Type), nil
	}
	return nil, 0, &datalog.Error{Kind: datalog.ErrUnsupportedArgument, Fn: fn, Literal: arg.String(), Position: pos}
}

// orderable reports whether values of the two sets can be ordered against
// each other. Longs and doubles compare numerically.
func orderable(a, b datalog.ValueTypeSet) bool {
	if !a.Intersect(b).IsEmpty() {
		return true
	}
	return !a.Intersect(datalog.NumericTypes).IsEmpty() && !b.Intersect(datalog.NumericTypes).IsEmpty()
}

func orderableWith(a datalog.ValueTypeSet) datalog.ValueTypeSet {
	if !a.Intersect(datalog.NumericTypes).IsEmpty() {
		return a.Union(datalog.NumericTypes)
	}
	return a
}
