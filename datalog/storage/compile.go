package storage

import (
	"strings"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/planner"
)

// check is a join or filter evaluated against the bound rows.
type check func(*execution, *env) (bool, error)

// probe yields a value a table column must equal, known before the table
// is scanned.
type probe func(*execution, *env) (datalog.TypedValue, error)

// compiledPlan assigns every join and filter of a plan to the first
// table level at which all of its columns are bound.
type compiledPlan struct {
	pre   []check // only constants, params or enclosing columns
	steps []step
}

type step struct {
	table  planner.TableRef
	vars   map[string]int     // column positions of computed tables
	probes map[string][]probe // stored tables: known values by column
	checks []check
}

func compile(p *planner.Plan) *compiledPlan {
	cp := &compiledPlan{steps: make([]step, len(p.Tables))}
	levels := make(map[string]int, len(p.Tables))
	for i, t := range p.Tables {
		levels[t.Alias] = i
		st := step{table: t, probes: make(map[string][]probe)}
		if t.IsComputed() {
			st.vars = make(map[string]int, len(t.Vars))
			for j, v := range t.Vars {
				st.vars[v.String()] = j
			}
		}
		cp.steps[i] = st
	}

	levelOf := func(c algebrizer.QualifiedColumn) int {
		if l, ok := levels[c.Alias]; ok {
			return l
		}
		return -1
	}
	add := func(level int, c check) {
		if level < 0 {
			cp.pre = append(cp.pre, c)
			return
		}
		cp.steps[level].checks = append(cp.steps[level].checks, c)
	}
	addProbe := func(c algebrizer.QualifiedColumn, pr probe) {
		if l := levelOf(c); l >= 0 && !cp.steps[l].table.IsComputed() {
			cp.steps[l].probes[c.Column] = append(cp.steps[l].probes[c.Column], pr)
		}
	}

	for _, j := range p.Joins {
		j := j
		left, right := levelOf(j.Left), levelOf(j.Right)
		add(max(left, right), func(_ *execution, e *env) (bool, error) {
			l, err := e.lookup(j.Left)
			if err != nil {
				return false, err
			}
			r, err := e.lookup(j.Right)
			if err != nil {
				return false, err
			}
			return joinEqual(j, l, r), nil
		})
		// A value column is only probed with a typed value.
		typedJoin := j.Left.IsValueColumn() == j.Right.IsValueColumn()
		if right < left && (typedJoin || j.Left.Column != algebrizer.ColumnValue) {
			addProbe(j.Left, lookupProbe(j.Right))
		} else if left < right && (typedJoin || j.Right.Column != algebrizer.ColumnValue) {
			addProbe(j.Right, lookupProbe(j.Left))
		}
	}

	for _, f := range p.Filters {
		switch f := f.(type) {
		case planner.FilterEquals:
			add(levelOf(f.Column), func(_ *execution, e *env) (bool, error) {
				v, err := e.lookup(f.Column)
				return err == nil && v.Equal(f.Value), err
			})
			addProbe(f.Column, func(*execution, *env) (datalog.TypedValue, error) { return f.Value, nil })

		case planner.FilterParam:
			pr := func(ex *execution, _ *env) (datalog.TypedValue, error) {
				return planner.ResolveParam(ex.params, f.Var, f.Type)
			}
			add(levelOf(f.Column), func(ex *execution, e *env) (bool, error) {
				want, err := pr(ex, e)
				if err != nil {
					return false, err
				}
				v, err := e.lookup(f.Column)
				return err == nil && v.Equal(want), err
			})
			addProbe(f.Column, pr)

		case planner.FilterTypeTag:
			add(levelOf(f.Column), func(_ *execution, e *env) (bool, error) {
				v, err := e.lookup(f.Column)
				return err == nil && f.Types.Contains(v.Type), err
			})

		case planner.FilterCompare:
			level := -1
			for _, op := range []algebrizer.Operand{f.Left, f.Right} {
				if c, ok := op.(algebrizer.ColumnOperand); ok {
					level = max(level, levelOf(c.Column))
				}
			}
			typed := typedEquality(f)
			add(level, func(ex *execution, e *env) (bool, error) {
				l, err := ex.operand(f.Left, e)
				if err != nil {
					return false, err
				}
				r, err := ex.operand(f.Right, e)
				if err != nil {
					return false, err
				}
				return compareOp(f.Op, l, r, typed)
			})
			if f.Op == "=" {
				addEqualityProbe(f, levelOf, addProbe)
			}

		case planner.FilterNotExists:
			level := -1
			visitColumns(f.Sub, func(c algebrizer.QualifiedColumn) {
				level = max(level, levelOf(c))
			})
			if f.Sub.IsKnownEmpty() {
				continue
			}
			sub := compile(f.Sub)
			add(level, func(ex *execution, e *env) (bool, error) {
				found := false
				err := ex.run(sub, e, func(*env) (bool, error) {
					found = true
					return false, nil
				})
				return !found, err
			})
		}
	}
	return cp
}

// addEqualityProbe lets (= column x) narrow the scan of column's table
// when x is known before that table is bound.
func addEqualityProbe(f planner.FilterCompare, levelOf func(algebrizer.QualifiedColumn) int, addProbe func(algebrizer.QualifiedColumn, probe)) {
	for _, pair := range [][2]algebrizer.Operand{{f.Left, f.Right}, {f.Right, f.Left}} {
		col, ok := pair[0].(algebrizer.ColumnOperand)
		if !ok {
			continue
		}
		other := pair[1]
		if c, ok := other.(algebrizer.ColumnOperand); ok {
			if levelOf(c.Column) >= levelOf(col.Column) || col.Column.Column == algebrizer.ColumnValue {
				continue
			}
		}
		addProbe(col.Column, func(ex *execution, e *env) (datalog.TypedValue, error) {
			return ex.operand(other, e)
		})
	}
}

func lookupProbe(c algebrizer.QualifiedColumn) probe {
	return func(_ *execution, e *env) (datalog.TypedValue, error) {
		return e.lookup(c)
	}
}

// joinEqual compares joined columns. Type tags take part only when both
// sides are value columns; otherwise the ids compare numerically.
func joinEqual(j planner.Join, l, r datalog.TypedValue) bool {
	if j.Left.IsValueColumn() && j.Right.IsValueColumn() {
		return l.Equal(r)
	}
	return datalog.CompareValues(l, r) == 0 || sameID(l, r)
}

// sameID matches a ref against a long holding the same number.
func sameID(l, r datalog.TypedValue) bool {
	id := func(v datalog.TypedValue) (int64, bool) {
		switch n := v.V.(type) {
		case datalog.Entid:
			return int64(n), true
		case int64:
			return n, true
		}
		return 0, false
	}
	a, okA := id(l)
	b, okB := id(r)
	return okA && okB && a == b
}

// typedEquality reports whether = and != also compare the type tag: a
// value column against a constant or parameter.
func typedEquality(f planner.FilterCompare) bool {
	col, ok := f.Left.(algebrizer.ColumnOperand)
	other := f.Right
	if !ok {
		col, ok = f.Right.(algebrizer.ColumnOperand)
		other = f.Left
	}
	if !ok || !col.Column.IsValueColumn() {
		return false
	}
	switch other.(type) {
	case algebrizer.ValueOperand, algebrizer.ParamOperand:
		return true
	}
	return false
}

func (ex *execution) operand(o algebrizer.Operand, e *env) (datalog.TypedValue, error) {
	switch o := o.(type) {
	case algebrizer.ColumnOperand:
		return e.lookup(o.Column)
	case algebrizer.ValueOperand:
		return o.Value, nil
	case algebrizer.ParamOperand:
		return planner.ResolveParam(ex.params, o.Var, o.Type)
	}
	return datalog.TypedValue{}, datalog.Internal("unknown operand %T", o)
}

// compareOp evaluates a comparison predicate.
func compareOp(op string, l, r datalog.TypedValue, typed bool) (bool, error) {
	switch op {
	case "<":
		return datalog.CompareValues(l, r) < 0, nil
	case "<=":
		return datalog.CompareValues(l, r) <= 0, nil
	case ">", "tx-after":
		return datalog.CompareValues(l, r) > 0, nil
	case ">=":
		return datalog.CompareValues(l, r) >= 0, nil
	case "tx-before":
		return datalog.CompareValues(l, r) < 0, nil
	case "=", "!=":
		eq := l.Equal(r)
		if !typed {
			eq = datalog.CompareValues(l, r) == 0 || sameID(l, r)
		}
		return eq == (op == "="), nil
	case "str/starts-with?", "str/ends-with?", "str/contains?":
		s, ok1 := l.V.(string)
		sub, ok2 := r.V.(string)
		if !ok1 || !ok2 {
			return false, nil
		}
		switch op {
		case "str/starts-with?":
			return strings.HasPrefix(s, sub), nil
		case "str/ends-with?":
			return strings.HasSuffix(s, sub), nil
		}
		return strings.Contains(s, sub), nil
	}
	return false, datalog.NotYetImplemented("predicate %s", op)
}

// visitColumns calls fn for every column a plan reads, sub-plans included.
func visitColumns(p *planner.Plan, fn func(algebrizer.QualifiedColumn)) {
	for _, j := range p.Joins {
		fn(j.Left)
		fn(j.Right)
	}
	for _, f := range p.Filters {
		switch f := f.(type) {
		case planner.FilterEquals:
			fn(f.Column)
		case planner.FilterParam:
			fn(f.Column)
		case planner.FilterTypeTag:
			fn(f.Column)
		case planner.FilterCompare:
			for _, op := range []algebrizer.Operand{f.Left, f.Right} {
				if c, ok := op.(algebrizer.ColumnOperand); ok {
					fn(c.Column)
				}
			}
		case planner.FilterNotExists:
			visitColumns(f.Sub, fn)
		}
	}
}
