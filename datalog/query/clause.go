package query

import (
	"strings"
)

// Clause represents anything that can appear in a query's :where clause
type Clause interface {
	clause() // Private marker method
	String() string
}

// Ensure our types implement Clause
func (*Pattern) clause()       {}
func (*Not) clause()           {}
func (*Or) clause()            {}
func (*OrJoin) clause()        {}
func (*Predicate) clause()     {}
func (*FunctionCall) clause()  {}
func (*Ground) clause()        {}
func (*RuleExpansion) clause() {}

// Not is (not ...) when Unify is nil and (not-join [vars] ...) otherwise.
type Not struct {
	Unify   []Symbol
	Clauses []Clause
}

func (n *Not) String() string {
	head := "(not"
	if n.Unify != nil {
		head = "(not-join " + symbolVector(n.Unify)
	}
	return head + " " + clauseList(n.Clauses) + ")"
}

// Or is a disjunction. Each branch is a conjunction of clauses.
type Or struct {
	Branches [][]Clause
}

func (o *Or) String() string {
	return "(or " + branchList(o.Branches) + ")"
}

// OrJoin is a disjunction that only unifies Vars with the enclosing query;
// other variables in the branches are local.
type OrJoin struct {
	Vars     []Symbol
	Branches [][]Clause
}

func (o *OrJoin) String() string {
	return "(or-join " + symbolVector(o.Vars) + " " + branchList(o.Branches) + ")"
}

// Predicate is a filter expression such as [(< ?age 30)].
type Predicate struct {
	Fn   string
	Args []FnArg
}

func (p *Predicate) String() string {
	return "[(" + p.Fn + argList(p.Args) + ")]"
}

// FunctionCall binds the output of a function, e.g.
// [(tx-ids $ ?from ?to) [?tx ...]].
type FunctionCall struct {
	Fn      string
	Args    []FnArg
	Binding Binding
}

func (f *FunctionCall) String() string {
	return "[(" + f.Fn + argList(f.Args) + ") " + f.Binding.String() + "]"
}

// Ground binds literal data: [(ground [1 2 3]) [?x ...]].
type Ground struct {
	Value   Constant
	Binding Binding
}

func (g *Ground) String() string {
	return "[(ground " + g.Value.String() + ") " + g.Binding.String() + "]"
}

// RuleExpansion invokes a named rule.
type RuleExpansion struct {
	Name string
	Args []FnArg
}

func (r *RuleExpansion) String() string {
	return "(" + r.Name + argList(r.Args) + ")"
}

func argList(args []FnArg) string {
	var b strings.Builder
	for _, a := range args {
		b.WriteString(" " + a.String())
	}
	return b.String()
}

func clauseList(clauses []Clause) string {
	parts := make([]string, len(clauses))
	for i, c := range clauses {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

func branchList(branches [][]Clause) string {
	parts := make([]string, len(branches))
	for i, br := range branches {
		if len(br) == 1 {
			parts[i] = br[0].String()
		} else {
			parts[i] = "(and " + clauseList(br) + ")"
		}
	}
	return strings.Join(parts, " ")
}

func symbolVector(syms []Symbol) string {
	parts := make([]string, len(syms))
	for i, s := range syms {
		parts[i] = s.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Variables returns the variables a clause mentions, in first-appearance
// order, descending into nested clauses. Function call bindings count.
func Variables(c Clause) []Symbol {
	var out []Symbol
	seen := make(map[Symbol]bool)
	add := func(s Symbol) {
		if s.IsVariable() && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	var walk func(Clause)
	walk = func(c Clause) {
		switch c := c.(type) {
		case *Pattern:
			for _, s := range c.Slots() {
				if v, ok := s.(Variable); ok {
					add(v.Name)
				}
			}
		case *Not:
			if c.Unify != nil {
				for _, s := range c.Unify {
					add(s)
				}
				return
			}
			for _, inner := range c.Clauses {
				walk(inner)
			}
		case *Or:
			for _, br := range c.Branches {
				for _, inner := range br {
					walk(inner)
				}
			}
		case *OrJoin:
			for _, s := range c.Vars {
				add(s)
			}
		case *Predicate:
			for _, a := range c.Args {
				if v, ok := a.(Variable); ok {
					add(v.Name)
				}
			}
		case *FunctionCall:
			for _, a := range c.Args {
				if v, ok := a.(Variable); ok {
					add(v.Name)
				}
			}
			for _, s := range c.Binding.Variables() {
				add(s)
			}
		case *Ground:
			for _, s := range c.Binding.Variables() {
				add(s)
			}
		case *RuleExpansion:
			for _, a := range c.Args {
				if v, ok := a.(Variable); ok {
					add(v.Name)
				}
			}
		}
	}
	walk(c)
	return out
}

// BranchVariables returns the variables mentioned anywhere in a conjunction.
func BranchVariables(clauses []Clause) []Symbol {
	var out []Symbol
	seen := make(map[Symbol]bool)
	for _, c := range clauses {
		for _, s := range Variables(c) {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
