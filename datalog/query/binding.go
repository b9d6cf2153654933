package query

// Binding describes how a function's output is destructured into
// variables: BindScalar, BindTuple, BindColl or BindRel.
type Binding interface {
	isBinding()
	String() string
	// Variables lists the bound variables, skipping placeholders.
	Variables() []Symbol
}

// BindScalar binds a single value: ?x
type BindScalar struct {
	Var Symbol
}

// BindTuple binds one fixed-arity row: [?a ?b]
type BindTuple struct {
	Vars []Symbol
}

// BindColl binds each element of a collection: [?x ...]
type BindColl struct {
	Var Symbol
}

// BindRel binds each row of a relation: [[?a ?b]]
type BindRel struct {
	Vars []Symbol
}

func (BindScalar) isBinding() {}
func (BindTuple) isBinding()  {}
func (BindColl) isBinding()   {}
func (BindRel) isBinding()    {}

func (b BindScalar) String() string { return b.Var.String() }
func (b BindTuple) String() string  { return symbolVector(b.Vars) }
func (b BindColl) String() string   { return "[" + b.Var.String() + " ...]" }
func (b BindRel) String() string    { return "[" + symbolVector(b.Vars) + "]" }

func (b BindScalar) Variables() []Symbol { return variablesOf([]Symbol{b.Var}) }
func (b BindTuple) Variables() []Symbol  { return variablesOf(b.Vars) }
func (b BindColl) Variables() []Symbol   { return variablesOf([]Symbol{b.Var}) }
func (b BindRel) Variables() []Symbol    { return variablesOf(b.Vars) }

func variablesOf(syms []Symbol) []Symbol {
	out := make([]Symbol, 0, len(syms))
	for _, s := range syms {
		if s.IsVariable() {
			out = append(out, s)
		}
	}
	return out
}

// RepeatedVariable returns the first variable bound more than once.
func RepeatedVariable(b Binding) (Symbol, bool) {
	seen := make(map[Symbol]bool)
	for _, s := range b.Variables() {
		if seen[s] {
			return s, true
		}
		seen[s] = true
	}
	return "", false
}
