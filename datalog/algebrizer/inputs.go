package algebrizer

import (
	"sort"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
)

// QueryInputs are the external bindings of :in variables. A variable with
// only a type is a parameter: its value arrives when the plan executes.
type QueryInputs struct {
	Types  map[query.Symbol]datalog.ValueType
	Values map[query.Symbol]datalog.TypedValue
}

// NewQueryInputs combines declared types and values. Every value's type is
// recorded; a declared type that disagrees with the value fails.
func NewQueryInputs(types map[query.Symbol]datalog.ValueType, values map[query.Symbol]datalog.TypedValue) (QueryInputs, error) {
	in := QueryInputs{
		Types:  make(map[query.Symbol]datalog.ValueType, len(types)+len(values)),
		Values: make(map[query.Symbol]datalog.TypedValue, len(values)),
	}
	for v, t := range types {
		in.Types[v] = t
	}
	for _, v := range sortedSymbols(values) {
		val := values[v]
		if t, ok := in.Types[v]; ok && t != val.Type {
			return QueryInputs{}, &datalog.Error{
				Kind:          datalog.ErrInputTypeDisagreement,
				Var:           v.String(),
				Literal:       val.String(),
				Type:          val.Type,
				ExpectedTypes: datalog.TypeSetOf(t),
			}
		}
		in.Types[v] = val.Type
		in.Values[v] = val
	}
	return in, nil
}

// WithValues builds inputs from values alone.
func WithValues(values map[query.Symbol]datalog.TypedValue) QueryInputs {
	in, _ := NewQueryInputs(nil, values)
	return in
}

// WithTypes builds parameter-only inputs.
func WithTypes(types map[query.Symbol]datalog.ValueType) QueryInputs {
	in, _ := NewQueryInputs(types, nil)
	return in
}

// Variables returns every input variable in sorted order.
func (in QueryInputs) Variables() []query.Symbol {
	return sortedSymbols(in.Types)
}

// IsParam reports whether v has a type but no value.
func (in QueryInputs) IsParam(v query.Symbol) bool {
	_, typed := in.Types[v]
	_, valued := in.Values[v]
	return typed && !valued
}

func sortedSymbols[T any](m map[query.Symbol]T) []query.Symbol {
	out := make([]query.Symbol, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
