package algebrizer

import (
	"fmt"
	"sort"
	"time"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

// Options configures algebrization. The zero value is usable.
type Options struct {
	// Collector receives query/algebrized and error events. Nil disables
	// tracing.
	Collector *annotations.Collector
	// Registry overrides the predicate and function table.
	Registry *query.FunctionRegistry
}

// AlgebraicQuery is a compiled query ready for plan building.
type AlgebraicQuery struct {
	Find     query.FindSpec
	CC       *ConstraintContext
	Elements []ProjectedElement
	With     []query.Symbol
	Order    []query.Order
	Limit    Limit
	Inputs   QueryInputs
}

// HasAggregates reports whether any element aggregates.
func (aq *AlgebraicQuery) HasAggregates() bool {
	for _, e := range aq.Elements {
		if e.Kind == ElementAggregate {
			return true
		}
	}
	return false
}

// IsKnownEmpty reports whether the query can return no rows.
func (aq *AlgebraicQuery) IsKnownEmpty() bool {
	return aq.CC.IsKnownEmpty()
}

// Algebrize compiles q against s with default options.
func Algebrize(s schema.Schema, q *query.Query, inputs QueryInputs) (*AlgebraicQuery, error) {
	return AlgebrizeWithOptions(s, q, inputs, Options{})
}

// AlgebrizeWithOptions compiles q against s. Any error aborts compilation;
// no partial result is returned.
func AlgebrizeWithOptions(s schema.Schema, q *query.Query, inputs QueryInputs, opts Options) (*AlgebraicQuery, error) {
	start := time.Now()
	aq, err := algebrize(s, q, inputs, opts)
	if err != nil {
		name := annotations.ErrorQueryBinding
		if datalog.IsKind(err, datalog.ErrInternalInvariant) {
			name = annotations.ErrorQueryInternal
		}
		opts.Collector.AddError(name, start, err)
		return nil, err
	}
	if opts.Collector.Enabled() {
		data := opts.Collector.GetDataMap()
		data["query"] = q.String()
		data["tables"] = len(aq.CC.From)
		data["constraints"] = len(aq.CC.Wheres)
		data["elements"] = len(aq.Elements)
		if aq.IsKnownEmpty() {
			data["empty"] = aq.CC.EmptyBecause
		}
		opts.Collector.AddTiming(annotations.QueryAlgebrized, start, data)
	}
	return aq, nil
}

func algebrize(s schema.Schema, q *query.Query, inputs QueryInputs, opts Options) (*AlgebraicQuery, error) {
	if q.Find == nil || len(q.Find.Elements()) == 0 {
		return nil, &datalog.Error{Kind: datalog.ErrInvalidProjection, Msg: "empty :find"}
	}
	registry := opts.Registry
	if registry == nil {
		registry = query.DefaultRegistry
	}

	in, err := validateInputs(q, inputs)
	if err != nil {
		return nil, err
	}
	if err := validateFindAndWith(q); err != nil {
		return nil, err
	}
	limit, err := resolveLimit(q.Limit, in, inputs)
	if err != nil {
		return nil, err
	}

	cc := newConstraintContext(s, registry, &aliaser{})
	for _, v := range inputs.Variables() {
		cc.Inputs[v] = true
		cc.KnownTypes[v] = datalog.TypeSetOf(inputs.Types[v])
		if val, ok := inputs.Values[v]; ok {
			cc.ValueBindings[v] = val
		} else {
			cc.Params[v] = inputs.Types[v]
		}
	}

	if err := cc.applyClauses(q.Where); err != nil {
		return nil, err
	}

	elements, err := cc.projectFind(q.Find)
	if err != nil {
		return nil, err
	}
	aq := &AlgebraicQuery{
		Find:     q.Find,
		CC:       cc,
		Elements: elements,
		With:     q.With,
		Order:    q.Order,
		Limit:    limit,
		Inputs:   inputs,
	}
	for _, v := range q.With {
		if !cc.IsBound(v) {
			return nil, &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: v.String(), Msg: "in :with"}
		}
	}
	if err := validateOrder(aq); err != nil {
		return nil, err
	}

	// Find projection may narrow types, so tag filters come last.
	cc.finalize()
	return aq, nil
}

// validateInputs checks :in against the supplied inputs and returns the
// set of declared input variables.
func validateInputs(q *query.Query, inputs QueryInputs) (map[query.Symbol]bool, error) {
	in := make(map[query.Symbol]bool, len(q.In))
	for _, v := range q.In {
		if v.IsSource() {
			continue
		}
		if in[v] {
			return nil, &datalog.Error{Kind: datalog.ErrDuplicateVariable, Role: ":in", Var: v.String()}
		}
		in[v] = true
	}
	for _, v := range inputs.Variables() {
		if !in[v] {
			return nil, &datalog.Error{Kind: datalog.ErrInvalidArgumentName, Var: v.String()}
		}
	}
	for _, v := range q.In {
		if v.IsSource() {
			continue
		}
		if _, ok := inputs.Types[v]; !ok {
			return nil, &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: v.String(), Msg: "in :in has no value or type"}
		}
	}
	return in, nil
}

func validateFindAndWith(q *query.Query) error {
	found := make(map[query.Symbol]bool)
	for _, e := range q.Find.Elements() {
		if v, ok := e.(query.ElemVariable); ok {
			if found[v.Var] {
				return &datalog.Error{Kind: datalog.ErrDuplicateVariable, Role: ":find", Var: v.Var.String()}
			}
			found[v.Var] = true
		}
	}
	with := make(map[query.Symbol]bool, len(q.With))
	for _, v := range q.With {
		if with[v] {
			return &datalog.Error{Kind: datalog.ErrDuplicateVariable, Role: ":with", Var: v.String()}
		}
		if found[v] {
			return &datalog.Error{Kind: datalog.ErrDuplicateVariable, Role: ":find/:with", Var: v.String()}
		}
		with[v] = true
	}
	return nil
}

func resolveLimit(l query.Limit, in map[query.Symbol]bool, inputs QueryInputs) (Limit, error) {
	switch l := l.(type) {
	case nil:
		return Limit{}, nil
	case query.LimitConstant:
		n, err := naturalLimit(l.Value)
		if err != nil {
			return Limit{}, err
		}
		return Limit{Kind: LimitFixed, N: n}, nil
	case query.LimitVariable:
		if !in[l.Var] {
			return Limit{}, &datalog.Error{Kind: datalog.ErrUnknownLimitVar, Var: l.Var.String()}
		}
		if val, ok := inputs.Values[l.Var]; ok {
			n, err := naturalLimit(val)
			if err != nil {
				return Limit{}, err
			}
			return Limit{Kind: LimitFixed, N: n}, nil
		}
		if t := inputs.Types[l.Var]; t != datalog.TypeLong {
			return Limit{}, &datalog.Error{Kind: datalog.ErrInvalidLimit, Literal: l.Var.String(), Type: t}
		}
		return Limit{Kind: LimitParam, Var: l.Var}, nil
	}
	return Limit{}, &datalog.Error{Kind: datalog.ErrInvalidLimit, Literal: fmt.Sprintf("%v", l)}
}

func naturalLimit(raw interface{}) (int64, error) {
	tv, ok := datalog.ValueOf(raw)
	if !ok {
		return 0, &datalog.Error{Kind: datalog.ErrInvalidLimit, Literal: fmt.Sprintf("%v", raw)}
	}
	n, isLong := tv.AsLong()
	if !isLong || n < 1 {
		return 0, &datalog.Error{Kind: datalog.ErrInvalidLimit, Literal: tv.String(), Type: tv.Type}
	}
	return n, nil
}

// clausePhase orders clauses so that binders run before consumers.
func clausePhase(c query.Clause) int {
	switch c := c.(type) {
	case *query.Pattern:
		return 0
	case *query.Ground:
		return 1
	case *query.FunctionCall:
		if c.Fn == groundFn {
			return 1
		}
		return 3
	case *query.Or, *query.OrJoin:
		return 2
	case *query.Predicate:
		return 4
	case *query.Not:
		return 5
	default:
		return 6
	}
}

// applyClauses algebrizes a conjunction in phase order.
func (cc *ConstraintContext) applyClauses(clauses []query.Clause) error {
	ordered := make([]query.Clause, len(clauses))
	copy(ordered, clauses)
	sort.SliceStable(ordered, func(i, j int) bool {
		return clausePhase(ordered[i]) < clausePhase(ordered[j])
	})

	for _, c := range ordered {
		var err error
		switch c := c.(type) {
		case *query.Pattern:
			err = cc.applyPattern(c)
		case *query.Ground:
			err = cc.applyGround(c.Value, c.Binding)
		case *query.Or:
			err = cc.applyOr(c)
		case *query.OrJoin:
			err = cc.applyOrJoin(c)
		case *query.FunctionCall:
			err = cc.applyFunctionCall(c)
		case *query.Predicate:
			err = cc.applyPredicate(c)
		case *query.Not:
			err = cc.applyNot(c)
		case *query.RuleExpansion:
			err = datalog.NotYetImplemented("rule expansion %s", c.Name)
		default:
			err = datalog.NotYetImplemented("clause %s", c)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// unitType returns the single type of a bound variable.
func (cc *ConstraintContext) unitType(v query.Symbol) (datalog.ValueType, error) {
	if !cc.IsBound(v) {
		return 0, &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: v.String()}
	}
	types := cc.TypesOf(v)
	t, ok := types.Exemplar()
	if !ok || !types.IsUnit() {
		return 0, &datalog.Error{
			Kind:  datalog.ErrUnboundVariable,
			Var:   v.String(),
			Types: types,
			Msg:   fmt.Sprintf("(possible types %s; expected exactly one)", types),
		}
	}
	return t, nil
}

func (cc *ConstraintContext) projectFind(find query.FindSpec) ([]ProjectedElement, error) {
	elems := find.Elements()
	out := make([]ProjectedElement, 0, len(elems))
	for _, e := range elems {
		switch e := e.(type) {
		case query.ElemVariable:
			t, err := cc.unitType(e.Var)
			if err != nil {
				return nil, err
			}
			out = append(out, ProjectedElement{Kind: ElementVariable, Var: e.Var, Type: t})

		case query.ElemCorresponding:
			t, err := cc.unitType(e.Var)
			if err != nil {
				return nil, err
			}
			out = append(out, ProjectedElement{Kind: ElementCorresponding, Var: e.Var, Type: t})

		case query.ElemPull:
			if !cc.IsBound(e.Var) {
				return nil, &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: e.Var.String(), Msg: "in pull"}
			}
			if e.Pattern == nil {
				return nil, &datalog.Error{Kind: datalog.ErrInvalidProjection, Msg: "pull of " + e.Var.String() + " has no pattern"}
			}
			if !cc.TypesOf(e.Var).Contains(datalog.TypeRef) {
				return nil, &datalog.Error{Kind: datalog.ErrInvalidProjection,
					Msg: fmt.Sprintf("cannot pull %s of types %s", e.Var, cc.TypesOf(e.Var))}
			}
			if err := cc.narrow(e.Var, refTypes); err != nil {
				return nil, err
			}
			out = append(out, ProjectedElement{Kind: ElementPull, Var: e.Var, Type: datalog.TypeRef, Pull: e.Pattern})

		case query.ElemAggregate:
			pe, err := cc.projectAggregate(e)
			if err != nil {
				return nil, err
			}
			out = append(out, pe)

		default:
			return nil, &datalog.Error{Kind: datalog.ErrInvalidProjection, Msg: "unknown element " + e.String()}
		}
	}
	return out, nil
}

func (cc *ConstraintContext) projectAggregate(e query.ElemAggregate) (ProjectedElement, error) {
	op, ok := query.ParseAggregateOp(e.Fn)
	if !ok {
		return ProjectedElement{}, &datalog.Error{Kind: datalog.ErrUnknownFunction, Fn: e.Fn}
	}
	want := 1
	if op.TakesCount() {
		want = 2
	}
	if len(e.Args) != want {
		return ProjectedElement{}, &datalog.Error{Kind: datalog.ErrInvalidNumberOfArguments, Fn: e.Fn, Expected: want, Actual: len(e.Args)}
	}

	pe := ProjectedElement{Kind: ElementAggregate, Op: op}
	if op.TakesCount() {
		c, ok := e.Args[0].(query.Constant)
		var n int64
		if ok {
			if tv, conv := datalog.ValueOf(c.Value); conv {
				n, _ = tv.AsLong()
			}
		}
		if n < 1 {
			return ProjectedElement{}, &datalog.Error{Kind: datalog.ErrInvalidArgument, Fn: e.Fn, Msg: "a positive count", Position: 0}
		}
		pe.N = n
	}

	arg, ok := e.Args[want-1].(query.Variable)
	if !ok {
		return ProjectedElement{}, &datalog.Error{Kind: datalog.ErrInvalidArgument, Fn: e.Fn, Msg: "a variable", Position: want - 1}
	}
	if !cc.IsBound(arg.Name) {
		return ProjectedElement{}, &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: arg.Name.String(), Msg: "in " + e.String()}
	}
	pe.Var = arg.Name
	pe.Types = cc.TypesOf(arg.Name)
	if pe.Types.IsUnit() {
		pe.Type, _ = pe.Types.Exemplar()
	}
	return pe, nil
}

// validateOrder requires bound order variables, and grouping variables
// when the query aggregates.
func validateOrder(aq *AlgebraicQuery) error {
	grouping := make(map[query.Symbol]bool)
	for _, e := range aq.Elements {
		if e.Kind == ElementVariable || e.Kind == ElementPull {
			grouping[e.Var] = true
		}
	}
	aggregated := aq.HasAggregates()
	for _, o := range aq.Order {
		if !aq.CC.IsBound(o.Var) {
			return &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: o.Var.String(), Msg: "in :order"}
		}
		if aggregated && !grouping[o.Var] {
			return datalog.NotYetImplemented("ordering by %s, which is not a grouping variable of an aggregate query", o.Var)
		}
	}
	return nil
}
