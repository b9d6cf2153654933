// Package algebrizer compiles a parsed query into a typed constraint
// context: table aliases, join-key column bindings, filters, and a
// narrowed value type set for every variable.
package algebrizer

import (
	"fmt"
	"strings"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/query"
)

// Column names of the datoms and transactions tables.
const (
	ColumnEntity    = "e"
	ColumnAttribute = "a"
	ColumnValue     = "v"
	ColumnTx        = "tx"
	ColumnAdded     = "added"
	ColumnTypeTag   = "value_type_tag"
)

// TableKind is the kind of a FROM entry.
type TableKind uint8

const (
	TableDatoms TableKind = iota + 1
	TableTransactions
	TableUnion
	TableValues
)

func (k TableKind) String() string {
	switch k {
	case TableDatoms:
		return "datoms"
	case TableTransactions:
		return "transactions"
	case TableUnion, TableValues:
		return "c"
	default:
		return "unknown"
	}
}

// QualifiedColumn is a column of an aliased table, e.g. datoms00.v.
// Columns of computed tables are named after the variable they carry.
type QualifiedColumn struct {
	Alias  string
	Column string
}

func (c QualifiedColumn) String() string {
	return c.Alias + "." + c.Column
}

// IsValueColumn reports whether the column holds values of varying type,
// so a type tag accompanies it.
func (c QualifiedColumn) IsValueColumn() bool {
	return c.Column == ColumnValue || strings.HasPrefix(c.Column, "?")
}

// ComputedTable is a derived table: the union of or-branches or a literal
// table of ground values. Vars name its columns.
type ComputedTable struct {
	Kind     TableKind
	Vars     []query.Symbol
	Branches []*ConstraintContext  // TableUnion
	Rows     [][]datalog.TypedValue // TableValues
}

// SourceTable is a FROM entry.
type SourceTable struct {
	Kind     TableKind
	Alias    string
	Computed *ComputedTable // nil for datoms and transactions
}

// Operand is one side of a comparison: ColumnOperand, ValueOperand or
// ParamOperand.
type Operand interface {
	operand()
	String() string
}

type ColumnOperand struct{ Column QualifiedColumn }
type ValueOperand struct{ Value datalog.TypedValue }
type ParamOperand struct {
	Var  query.Symbol
	Type datalog.ValueType
}

func (ColumnOperand) operand() {}
func (ValueOperand) operand()  {}
func (ParamOperand) operand()  {}

func (o ColumnOperand) String() string { return o.Column.String() }
func (o ValueOperand) String() string  { return o.Value.String() }
func (o ParamOperand) String() string  { return o.Var.String() }

// Constraint is a WHERE entry.
type Constraint interface {
	constraint()
	String() string
}

// ValueEquals requires a column to hold a constant.
type ValueEquals struct {
	Column QualifiedColumn
	Value  datalog.TypedValue
}

// ParamEquals requires a column to equal an execution-time parameter.
type ParamEquals struct {
	Column QualifiedColumn
	Var    query.Symbol
	Type   datalog.ValueType
}

// TypeTagIn restricts the stored type of a value column.
type TypeTagIn struct {
	Column QualifiedColumn
	Types  datalog.ValueTypeSet
}

// Comparison applies a binary predicate from the function table.
type Comparison struct {
	Op          string
	Left, Right Operand
}

// NotExists excludes rows for which the sub-context has a match. The
// sub-context refers to outer columns through its column bindings.
type NotExists struct {
	CC *ConstraintContext
}

func (ValueEquals) constraint() {}
func (ParamEquals) constraint() {}
func (TypeTagIn) constraint()   {}
func (Comparison) constraint()  {}
func (NotExists) constraint()   {}

func (c ValueEquals) String() string { return fmt.Sprintf("%s = %s", c.Column, c.Value) }
func (c ParamEquals) String() string { return fmt.Sprintf("%s = %s", c.Column, c.Var) }
func (c TypeTagIn) String() string   { return fmt.Sprintf("type(%s) in %s", c.Column, c.Types) }
func (c Comparison) String() string  { return fmt.Sprintf("(%s %s %s)", c.Op, c.Left, c.Right) }
func (c NotExists) String() string   { return "not exists " + c.CC.String() }

// LimitKind is the resolved form of :limit.
type LimitKind uint8

const (
	LimitNone LimitKind = iota
	LimitFixed
	LimitParam
)

// Limit is a resolved :limit.
type Limit struct {
	Kind LimitKind
	N    int64        // LimitFixed
	Var  query.Symbol // LimitParam
}

func (l Limit) String() string {
	switch l.Kind {
	case LimitFixed:
		return fmt.Sprintf("%d", l.N)
	case LimitParam:
		return l.Var.String()
	default:
		return "none"
	}
}

// ElementKind is the kind of a projected element.
type ElementKind uint8

const (
	ElementVariable ElementKind = iota + 1
	ElementAggregate
	ElementCorresponding
	ElementPull
)

// ProjectedElement is one find element after compilation.
type ProjectedElement struct {
	Kind ElementKind
	Var  query.Symbol
	Type datalog.ValueType // resolved type of Var; ref for pull

	Op    query.AggregateOp    // ElementAggregate
	N     int64                // count argument of rand and sample
	Types datalog.ValueTypeSet // possible input types of an aggregate

	Pull *query.PullPattern // ElementPull
}

func (p ProjectedElement) String() string {
	switch p.Kind {
	case ElementAggregate:
		if p.Op.TakesCount() {
			return fmt.Sprintf("(%s %d %s)", p.Op, p.N, p.Var)
		}
		return fmt.Sprintf("(%s %s)", p.Op, p.Var)
	case ElementCorresponding:
		return "(the " + p.Var.String() + ")"
	case ElementPull:
		return "(pull " + p.Var.String() + " " + p.Pull.String() + ")"
	default:
		return p.Var.String()
	}
}
