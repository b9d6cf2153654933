package query

import (
	"sort"
	"strings"

	"github.com/wbrown/janus-algebra/datalog"
)

// FunctionKind separates filter predicates from functions whose output is
// bound to variables.
type FunctionKind uint8

const (
	KindPredicate FunctionKind = iota + 1
	KindBinding
)

// ArgSpec describes one argument position.
type ArgSpec struct {
	Source bool                 // position takes a source such as $
	Types  datalog.ValueTypeSet // allowed types otherwise
}

// FunctionRegistry tracks which functions are supported
// This allows us to fail at query compilation time rather than at execution
type FunctionRegistry struct {
	functions map[string]FunctionMetadata
}

// FunctionMetadata describes a supported function
type FunctionMetadata struct {
	Name        string
	Kind        FunctionKind
	Args        []ArgSpec
	Description string
}

// Global registry - initialized at package load
var DefaultRegistry = NewFunctionRegistry()

var (
	orderedTypes = datalog.TypeSetOf(datalog.TypeLong, datalog.TypeDouble, datalog.TypeInstant)
	refTypes     = datalog.TypeSetOf(datalog.TypeRef)
	stringTypes  = datalog.TypeSetOf(datalog.TypeString)
	sourceArg    = ArgSpec{Source: true}
)

func twoArgs(types datalog.ValueTypeSet) []ArgSpec {
	return []ArgSpec{{Types: types}, {Types: types}}
}

func NewFunctionRegistry() *FunctionRegistry {
	r := &FunctionRegistry{
		functions: make(map[string]FunctionMetadata),
	}

	// Comparison predicates
	for _, op := range []string{"<", ">", "<=", ">="} {
		r.Register(FunctionMetadata{
			Name:        op,
			Kind:        KindPredicate,
			Args:        twoArgs(orderedTypes),
			Description: "Numeric or instant comparison",
		})
	}
	for _, op := range []string{"=", "!="} {
		r.Register(FunctionMetadata{
			Name:        op,
			Kind:        KindPredicate,
			Args:        twoArgs(datalog.AllTypes),
			Description: "Typed equality",
		})
	}

	// Transaction ordering
	r.Register(FunctionMetadata{
		Name:        "tx-after",
		Kind:        KindPredicate,
		Args:        twoArgs(refTypes),
		Description: "First transaction is after the second",
	})
	r.Register(FunctionMetadata{
		Name:        "tx-before",
		Kind:        KindPredicate,
		Args:        twoArgs(refTypes),
		Description: "First transaction is before the second",
	})

	// String functions
	r.Register(FunctionMetadata{
		Name:        "str/starts-with?",
		Kind:        KindPredicate,
		Args:        twoArgs(stringTypes),
		Description: "Check if string starts with prefix",
	})
	r.Register(FunctionMetadata{
		Name:        "str/ends-with?",
		Kind:        KindPredicate,
		Args:        twoArgs(stringTypes),
		Description: "Check if string ends with suffix",
	})
	r.Register(FunctionMetadata{
		Name:        "str/contains?",
		Kind:        KindPredicate,
		Args:        twoArgs(stringTypes),
		Description: "Check if string contains substring",
	})

	// Binding functions
	r.Register(FunctionMetadata{
		Name:        "ground",
		Kind:        KindBinding,
		Args:        []ArgSpec{{Types: datalog.AllTypes}},
		Description: "Bind literal data",
	})
	r.Register(FunctionMetadata{
		Name:        "tx-ids",
		Kind:        KindBinding,
		Args:        []ArgSpec{sourceArg, {Types: refTypes}, {Types: refTypes}},
		Description: "Transactions in [from, to)",
	})
	r.Register(FunctionMetadata{
		Name:        "tx-data",
		Kind:        KindBinding,
		Args:        []ArgSpec{sourceArg, {Types: refTypes}},
		Description: "Datoms asserted or retracted by a transaction",
	})
	r.Register(FunctionMetadata{
		Name:        "fulltext",
		Kind:        KindBinding,
		Args:        []ArgSpec{sourceArg, {Types: refTypes}, {Types: stringTypes}},
		Description: "Full-text search over an attribute",
	})
	r.Register(FunctionMetadata{
		Name:        "get-else",
		Kind:        KindBinding,
		Args:        []ArgSpec{sourceArg, {Types: refTypes}, {Types: refTypes}, {Types: datalog.AllTypes}},
		Description: "Attribute value or a default",
	})

	return r
}

// Register adds a function to the registry
func (r *FunctionRegistry) Register(meta FunctionMetadata) {
	r.functions[meta.Name] = meta
}

// IsRegistered checks if a function name is registered
func (r *FunctionRegistry) IsRegistered(name string) bool {
	_, ok := r.functions[name]
	return ok
}

// Validate checks the name and argument count of a call
func (r *FunctionRegistry) Validate(name string, argCount int) (FunctionMetadata, error) {
	meta, ok := r.functions[name]
	if !ok {
		return FunctionMetadata{}, &datalog.Error{Kind: datalog.ErrUnknownFunction, Fn: name}
	}
	if argCount != len(meta.Args) {
		return meta, &datalog.Error{
			Kind:     datalog.ErrInvalidNumberOfArguments,
			Fn:       name,
			Expected: len(meta.Args),
			Actual:   argCount,
		}
	}
	return meta, nil
}

// ListFunctions returns a comma-separated list of registered functions
func (r *FunctionRegistry) ListFunctions() string {
	names := make([]string, 0, len(r.functions))
	for name := range r.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// GetMetadata returns metadata for a function
func (r *FunctionRegistry) GetMetadata(name string) (FunctionMetadata, bool) {
	meta, ok := r.functions[name]
	return meta, ok
}
