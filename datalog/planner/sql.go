package planner

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/query"
)

// SQL table names. Both carry a value_type_tag column next to v.
const (
	DatomsTable       = "datoms"
	TransactionsTable = "transactions"
)

// TagSuffix names the type tag column of a projected or computed column.
const TagSuffix = "_tag"

// SQL renders the plan as a parameterized SQLite statement. Every
// projected column is rendered as a value column followed by its type tag
// column. All literals are bound as arguments; params supplies the value of
// every parameter the plan uses.
func (p *Plan) SQL(params map[query.Symbol]datalog.TypedValue) (string, []interface{}, error) {
	w := &sqlWriter{params: params}
	w.selectStatement(p)
	if w.err != nil {
		return "", nil, w.err
	}
	return w.sb.String(), w.args, nil
}

// SQLValue encodes a value for the v column: instants as microseconds since
// the epoch, booleans as 0 or 1, keywords as their text and uuids as 16-byte
// blobs.
func SQLValue(v datalog.TypedValue) interface{} {
	switch val := v.V.(type) {
	case datalog.Entid:
		return int64(val)
	case bool:
		if val {
			return int64(1)
		}
		return int64(0)
	case time.Time:
		return val.UnixMicro()
	case datalog.Keyword:
		return val.String()
	case uuid.UUID:
		b := make([]byte, len(val))
		copy(b, val[:])
		return b
	default:
		return val
	}
}

// ParseSQLValue decodes a v column read back from SQLite.
func ParseSQLValue(t datalog.ValueType, raw interface{}) (datalog.TypedValue, error) {
	switch t {
	case datalog.TypeRef, datalog.TypeLong, datalog.TypeBoolean, datalog.TypeInstant:
		n, ok := raw.(int64)
		if !ok {
			return datalog.TypedValue{}, fmt.Errorf("expected integer for %s, got %T", t, raw)
		}
		switch t {
		case datalog.TypeRef:
			return datalog.Ref(datalog.Entid(n)), nil
		case datalog.TypeBoolean:
			return datalog.Boolean(n != 0), nil
		case datalog.TypeInstant:
			return datalog.Instant(time.UnixMicro(n)), nil
		}
		return datalog.Long(n), nil
	case datalog.TypeDouble:
		switch f := raw.(type) {
		case float64:
			return datalog.Double(f), nil
		case int64:
			return datalog.Double(float64(f)), nil
		}
		return datalog.TypedValue{}, fmt.Errorf("expected real for %s, got %T", t, raw)
	case datalog.TypeString, datalog.TypeKeyword:
		var s string
		switch v := raw.(type) {
		case string:
			s = v
		case []byte:
			s = string(v)
		default:
			return datalog.TypedValue{}, fmt.Errorf("expected text for %s, got %T", t, raw)
		}
		if t == datalog.TypeKeyword {
			return datalog.KeywordValue(datalog.NewKeyword(s)), nil
		}
		return datalog.String(s), nil
	case datalog.TypeUUID:
		b, ok := raw.([]byte)
		if !ok {
			return datalog.TypedValue{}, fmt.Errorf("expected blob for %s, got %T", t, raw)
		}
		u, err := uuid.FromBytes(b)
		if err != nil {
			return datalog.TypedValue{}, fmt.Errorf("decoding uuid: %w", err)
		}
		return datalog.UUID(u), nil
	}
	return datalog.TypedValue{}, fmt.Errorf("unknown value type tag %d", t)
}

type sqlWriter struct {
	sb     strings.Builder
	args   []interface{}
	params map[query.Symbol]datalog.TypedValue
	err    error
}

func (w *sqlWriter) write(parts ...string) {
	for _, s := range parts {
		w.sb.WriteString(s)
	}
}

// bind writes a placeholder for v.
func (w *sqlWriter) bind(v datalog.TypedValue) {
	w.sb.WriteString("?")
	w.args = append(w.args, SQLValue(v))
}

// param resolves a parameter, recording the first failure.
func (w *sqlWriter) param(v query.Symbol, t datalog.ValueType) datalog.TypedValue {
	val, err := ResolveParam(w.params, v, t)
	if err != nil && w.err == nil {
		w.err = err
	}
	return val
}

// ResolveParam looks up the value of parameter v. A valid t must match
// the value's type.
func ResolveParam(params map[query.Symbol]datalog.TypedValue, v query.Symbol, t datalog.ValueType) (datalog.TypedValue, error) {
	val, ok := params[v]
	if !ok {
		return datalog.TypedValue{Type: t}, &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: v.String(), Msg: "has no parameter value"}
	}
	if t.IsValid() && val.Type != t {
		return val, &datalog.Error{
			Kind:          datalog.ErrInputTypeDisagreement,
			Var:           v.String(),
			Literal:       val.String(),
			Type:          val.Type,
			ExpectedTypes: datalog.TypeSetOf(t),
		}
	}
	return val, nil
}

func (w *sqlWriter) selectStatement(p *Plan) {
	w.write("SELECT ")
	if p.Distinct {
		w.write("DISTINCT ")
	}
	for i, c := range p.Columns {
		if i > 0 {
			w.write(", ")
		}
		w.column(c)
	}
	w.body(p)

	if len(p.Order) > 0 {
		w.write(" ORDER BY ")
		for i, o := range p.Order {
			if i > 0 {
				w.write(", ")
			}
			dir := ""
			if o.Descending {
				dir = " DESC"
			}
			valuePos := 2*o.Column + 1
			if !p.Columns[o.Column].Types.IsUnit() {
				w.write(strconv.Itoa(valuePos+1), dir, ", ")
			}
			w.write(strconv.Itoa(valuePos), dir)
		}
	}

	if !p.Aggregated {
		switch p.Limit.Kind {
		case algebrizer.LimitFixed:
			w.write(" LIMIT ")
			w.bind(datalog.Long(p.Limit.N))
		case algebrizer.LimitParam:
			w.write(" LIMIT ")
			w.bind(w.param(p.Limit.Var, datalog.TypeLong))
		}
	}
}

// column writes a projected column as value and tag.
func (w *sqlWriter) column(c Column) {
	name := quoteIdent(c.Var.String())
	tag := quoteIdent(c.Var.String() + TagSuffix)
	switch c.Source {
	case SourceTable:
		w.write(columnExpr(c.Ref), " AS ", name, ", ", tagExpr(c.Ref), " AS ", tag)
	case SourceConstant:
		w.bind(c.Value)
		w.write(" AS ", name, ", ", tagCode(c.Value.Type), " AS ", tag)
	case SourceParam:
		val := w.param(c.Var, c.Type)
		w.bind(val)
		w.write(" AS ", name, ", ", tagCode(val.Type), " AS ", tag)
	}
}

// body writes FROM and WHERE.
func (w *sqlWriter) body(p *Plan) {
	if len(p.Tables) > 0 {
		w.write(" FROM ")
		for i, t := range p.Tables {
			if i > 0 {
				w.write(", ")
			}
			w.table(t)
		}
	}

	first := true
	cond := func() {
		if first {
			w.write(" WHERE ")
			first = false
		} else {
			w.write(" AND ")
		}
	}
	if p.IsKnownEmpty() {
		cond()
		w.write("0")
	}
	for _, j := range p.Joins {
		cond()
		w.write(columnExpr(j.Left), " = ", columnExpr(j.Right))
		if j.Left.IsValueColumn() && j.Right.IsValueColumn() {
			w.write(" AND ", tagExpr(j.Left), " = ", tagExpr(j.Right))
		}
	}
	for _, f := range p.Filters {
		cond()
		w.filter(f)
	}
}

func (w *sqlWriter) table(t TableRef) {
	switch t.Kind {
	case algebrizer.TableDatoms:
		w.write(DatomsTable, " ", t.Alias)
	case algebrizer.TableTransactions:
		w.write(TransactionsTable, " ", t.Alias)
	case algebrizer.TableUnion:
		w.write("(")
		if len(t.Union) == 0 {
			w.write("SELECT ")
			for i, v := range t.Vars {
				if i > 0 {
					w.write(", ")
				}
				w.write("NULL AS ", quoteIdent(v.String()), ", NULL AS ", quoteIdent(v.String()+TagSuffix))
			}
			w.write(" WHERE 0")
		}
		for i, branch := range t.Union {
			if i > 0 {
				w.write(" UNION ")
			}
			w.write("SELECT ")
			for j, c := range branch.Columns {
				if j > 0 {
					w.write(", ")
				}
				w.column(c)
			}
			w.body(branch)
		}
		w.write(") AS ", t.Alias)
	case algebrizer.TableValues:
		w.write("(")
		for i, row := range t.Rows {
			if i > 0 {
				w.write(" UNION ALL ")
			}
			w.write("SELECT ")
			for j, val := range row {
				if j > 0 {
					w.write(", ")
				}
				w.bind(val)
				w.write(" AS ", quoteIdent(t.Vars[j].String()), ", ", tagCode(val.Type), " AS ", quoteIdent(t.Vars[j].String()+TagSuffix))
			}
		}
		w.write(") AS ", t.Alias)
	}
}

func (w *sqlWriter) filter(f Filter) {
	switch f := f.(type) {
	case FilterEquals:
		w.write(columnExpr(f.Column), " = ")
		w.bind(f.Value)
		if f.Column.IsValueColumn() {
			w.write(" AND ", tagExpr(f.Column), " = ", tagCode(f.Value.Type))
		}
	case FilterParam:
		w.write(columnExpr(f.Column), " = ")
		w.bind(w.param(f.Var, f.Type))
		if f.Column.IsValueColumn() {
			w.write(" AND ", tagExpr(f.Column), " = ", tagCode(f.Type))
		}
	case FilterTypeTag:
		types := f.Types.Types()
		codes := make([]string, len(types))
		for i, t := range types {
			codes[i] = tagCode(t)
		}
		w.write(tagExpr(f.Column), " IN (", strings.Join(codes, ", "), ")")
	case FilterCompare:
		w.compare(f)
	case FilterNotExists:
		w.write("NOT EXISTS (SELECT 1")
		w.body(f.Sub)
		w.write(")")
	}
}

func (w *sqlWriter) compare(f FilterCompare) {
	switch f.Op {
	case "str/starts-with?":
		w.write("instr(")
		w.operand(f.Left)
		w.write(", ")
		w.operand(f.Right)
		w.write(") = 1")
	case "str/contains?":
		w.write("instr(")
		w.operand(f.Left)
		w.write(", ")
		w.operand(f.Right)
		w.write(") > 0")
	case "str/ends-with?":
		w.write("substr(")
		w.operand(f.Left)
		w.write(", length(")
		w.operand(f.Left)
		w.write(") - length(")
		w.operand(f.Right)
		w.write(") + 1) = ")
		w.operand(f.Right)
	case "=", "!=":
		w.write("((")
		w.operand(f.Left)
		w.write(" ", sqlOperator(f.Op), " ")
		w.operand(f.Right)
		w.write(")")
		w.tagAgreement(f)
		w.write(")")
	default:
		w.write("(")
		w.operand(f.Left)
		w.write(" ", sqlOperator(f.Op), " ")
		w.operand(f.Right)
		w.write(")")
	}
}

// tagAgreement keeps = and != from matching values of different types
// that share a storage class, such as a ref and a long.
func (w *sqlWriter) tagAgreement(f FilterCompare) {
	col, ok := f.Left.(algebrizer.ColumnOperand)
	other := f.Right
	if !ok {
		col, ok = f.Right.(algebrizer.ColumnOperand)
		other = f.Left
	}
	if !ok || !col.Column.IsValueColumn() {
		return
	}
	var t datalog.ValueType
	switch o := other.(type) {
	case algebrizer.ValueOperand:
		t = o.Value.Type
	case algebrizer.ParamOperand:
		t = o.Type
	default:
		return
	}
	if f.Op == "!=" {
		// Values of different types are always unequal.
		w.write(" OR ", tagExpr(col.Column), " <> ", tagCode(t))
		return
	}
	w.write(" AND ", tagExpr(col.Column), " = ", tagCode(t))
}

func (w *sqlWriter) operand(o algebrizer.Operand) {
	switch o := o.(type) {
	case algebrizer.ColumnOperand:
		w.write(columnExpr(o.Column))
	case algebrizer.ValueOperand:
		w.bind(o.Value)
	case algebrizer.ParamOperand:
		w.bind(w.param(o.Var, o.Type))
	}
}

func sqlOperator(op string) string {
	switch op {
	case "!=":
		return "<>"
	case "tx-after":
		return ">"
	case "tx-before":
		return "<"
	default:
		return op
	}
}

func columnExpr(c algebrizer.QualifiedColumn) string {
	if strings.HasPrefix(c.Column, "?") {
		return c.Alias + "." + quoteIdent(c.Column)
	}
	return c.Alias + "." + c.Column
}

// tagExpr is the type tag of a column: stored for v, implied for the
// others.
func tagExpr(c algebrizer.QualifiedColumn) string {
	switch {
	case strings.HasPrefix(c.Column, "?"):
		return c.Alias + "." + quoteIdent(c.Column+TagSuffix)
	case c.Column == algebrizer.ColumnValue:
		return c.Alias + "." + algebrizer.ColumnTypeTag
	case c.Column == algebrizer.ColumnAdded:
		return tagCode(datalog.TypeBoolean)
	default:
		return tagCode(datalog.TypeRef)
	}
}

func tagCode(t datalog.ValueType) string {
	return strconv.Itoa(int(t))
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
