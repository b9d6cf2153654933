package algebrizer

import (
	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
)

func (cc *ConstraintContext) applyOr(o *query.Or) error {
	if len(o.Branches) == 0 {
		cc.markEmpty("empty 'or'")
		return nil
	}
	joinVars := query.BranchVariables(o.Branches[0])
	for _, br := range o.Branches[1:] {
		got := query.BranchVariables(br)
		if v, ok := setDifference(joinVars, got); ok {
			return &datalog.Error{Kind: datalog.ErrNonMatchingVariablesInOrClause, Var: v.String()}
		}
	}
	return cc.applyDisjunction(joinVars, o.Branches)
}

func (cc *ConstraintContext) applyOrJoin(o *query.OrJoin) error {
	if len(o.Branches) == 0 {
		cc.markEmpty("empty 'or-join'")
		return nil
	}
	for _, br := range o.Branches {
		mentioned := symbolSet(query.BranchVariables(br))
		for _, v := range o.Vars {
			if !mentioned[v] {
				return &datalog.Error{Kind: datalog.ErrNonMatchingVariablesInOrClause, Var: v.String()}
			}
		}
	}
	return cc.applyDisjunction(o.Vars, o.Branches)
}

// applyDisjunction algebrizes each branch separately and joins the union
// of their join-variable columns back into cc.
func (cc *ConstraintContext) applyDisjunction(joinVars []query.Symbol, branches [][]query.Clause) error {
	table := &ComputedTable{Kind: TableUnion, Vars: joinVars}
	unionTypes := make(map[query.Symbol]datalog.ValueTypeSet, len(joinVars))

	for _, br := range branches {
		child := cc.child()
		for _, v := range joinVars {
			cc.inherit(child, v)
		}
		if err := child.applyClauses(br); err != nil {
			return err
		}
		for _, v := range joinVars {
			if !child.IsBound(v) {
				return &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: v.String(), Msg: "in 'or' branch"}
			}
		}
		child.finalize()
		for _, v := range joinVars {
			unionTypes[v] = unionTypes[v].Union(child.TypesOf(v))
		}
		if !child.IsKnownEmpty() {
			table.Branches = append(table.Branches, child)
		}
	}
	if len(table.Branches) == 0 {
		cc.markEmpty("every 'or' branch is empty")
	}

	for _, v := range joinVars {
		if err := cc.narrow(v, unionTypes[v]); err != nil {
			return err
		}
	}
	alias := cc.addTable(TableUnion, table)
	for _, v := range joinVars {
		cc.bindColumn(v, QualifiedColumn{Alias: alias, Column: string(v)})
	}
	return nil
}

func (cc *ConstraintContext) applyNot(n *query.Not) error {
	unify := n.Unify
	if unify == nil {
		unify = query.BranchVariables(n.Clauses)
	}
	for _, v := range unify {
		if !cc.IsBound(v) {
			return &datalog.Error{Kind: datalog.ErrNonMatchingVariablesInNotClause, Var: v.String()}
		}
	}

	child := cc.child()
	for _, v := range unify {
		cc.inherit(child, v)
		if cols := cc.ColumnBindings[v]; len(cols) > 0 {
			child.ColumnBindings[v] = []QualifiedColumn{cols[0]}
			child.BindingOrder = append(child.BindingOrder, v)
		}
	}
	if err := child.applyClauses(n.Clauses); err != nil {
		return err
	}
	child.finalize()

	// An empty body never matches, so the negation always holds.
	if !child.IsKnownEmpty() {
		cc.Wheres = append(cc.Wheres, NotExists{CC: child})
	}
	return nil
}

func symbolSet(syms []query.Symbol) map[query.Symbol]bool {
	set := make(map[query.Symbol]bool, len(syms))
	for _, s := range syms {
		set[s] = true
	}
	return set
}

// setDifference returns the first variable, in source order, present in
// exactly one of the two.
func setDifference(want, got []query.Symbol) (query.Symbol, bool) {
	wantSet, gotSet := symbolSet(want), symbolSet(got)
	for _, s := range got {
		if !wantSet[s] {
			return s, true
		}
	}
	for _, s := range want {
		if !gotSet[s] {
			return s, true
		}
	}
	return "", false
}
