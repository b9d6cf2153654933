package storage

import (
	"context"
	"sort"
	"time"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/planner"
	"github.com/wbrown/janus-algebra/datalog/projector"
	"github.com/wbrown/janus-algebra/datalog/query"
)

// Backend names this executor in trace events.
const Backend = "badger"

// Executor evaluates plans against a BadgerStore. Tables are joined with
// nested loops in plan order; every join and filter runs as soon as the
// tables it reads are bound, and datom scans use the EAVT or AEVT prefix
// of whatever entity or attribute is already known.
type Executor struct {
	store     *BadgerStore
	collector *annotations.Collector
}

// NewExecutor creates an executor over store.
func NewExecutor(store *BadgerStore, collector *annotations.Collector) *Executor {
	return &Executor{store: store, collector: collector}
}

// Execute runs plan in one snapshot and returns its rows, one value per
// plan column. Results are distinct when the plan says so; order and limit
// apply unless the plan is aggregated.
func (x *Executor) Execute(ctx context.Context, plan *planner.Plan, params map[query.Symbol]datalog.TypedValue) (projector.RowSource, error) {
	start := time.Now()
	rows, err := x.execute(ctx, plan, params)
	if err != nil {
		err = datalog.Wrap(datalog.ErrStorage, err, Backend)
		event := annotations.ErrorQueryBinding
		if datalog.IsKind(err, datalog.ErrStorage) {
			event = annotations.ErrorBackend
		}
		x.collector.AddError(event, start, err)
		return nil, err
	}

	if c := x.collector; c.Enabled() {
		data := c.GetDataMap()
		data["backend"] = Backend
		data["rows"] = len(rows)
		data["tables"] = len(plan.Tables)
		c.AddTiming(annotations.QueryExecuted, start, data)
	}
	return projector.NewSliceRows(rows), nil
}

func (x *Executor) execute(ctx context.Context, plan *planner.Plan, params map[query.Symbol]datalog.TypedValue) ([][]datalog.TypedValue, error) {
	limit := -1
	if !plan.Aggregated {
		n, err := resolveLimit(plan.Limit, params)
		if err != nil {
			return nil, err
		}
		limit = n
	}
	if plan.IsKnownEmpty() || limit == 0 {
		return nil, nil
	}

	snap := x.store.Snapshot()
	defer snap.Discard()
	ex := &execution{
		ctx:       ctx,
		snap:      snap,
		params:    params,
		collector: x.collector,
		computed:  make(map[string][][]datalog.TypedValue),
	}

	var rows [][]datalog.TypedValue
	seen := make(map[string]bool)
	stopEarly := limit > 0 && len(plan.Order) == 0
	err := ex.run(compile(plan), nil, func(e *env) (bool, error) {
		vals, err := ex.project(plan.Columns, e)
		if err != nil {
			return false, err
		}
		if plan.Distinct {
			k := datalog.RowKey(vals)
			if seen[k] {
				return true, nil
			}
			seen[k] = true
		}
		rows = append(rows, vals)
		return !stopEarly || len(rows) < limit, nil
	})
	if err != nil {
		return nil, err
	}

	if len(plan.Order) > 0 {
		sortRows(rows, plan.Order)
	}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows, nil
}

func resolveLimit(l algebrizer.Limit, params map[query.Symbol]datalog.TypedValue) (int, error) {
	switch l.Kind {
	case algebrizer.LimitFixed:
		return int(l.N), nil
	case algebrizer.LimitParam:
		val, err := planner.ResolveParam(params, l.Var, datalog.TypeLong)
		if err != nil {
			return 0, err
		}
		n, _ := val.AsLong()
		if n < 1 {
			return 0, &datalog.Error{Kind: datalog.ErrInvalidLimit, Literal: val.String(), Type: val.Type}
		}
		return int(n), nil
	}
	return -1, nil
}

// sortRows orders rows by the plan's order columns. Values of different
// types order by type tag first.
func sortRows(rows [][]datalog.TypedValue, order []planner.OrderBy) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, o := range order {
			a, b := rows[i][o.Column], rows[j][o.Column]
			c := int(a.Type) - int(b.Type)
			if c == 0 {
				c = datalog.CompareValues(a, b)
			}
			if c == 0 {
				continue
			}
			if o.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// execution is the state of one Execute call.
type execution struct {
	ctx       context.Context
	snap      *Snapshot
	params    map[query.Symbol]datalog.TypedValue
	collector *annotations.Collector

	// computed caches the rows of union and values tables by alias.
	computed map[string][][]datalog.TypedValue
}

// row is the binding of one table during a search.
type row struct {
	datom datalog.Datom
	vars  map[string]int // computed tables only
	vals  []datalog.TypedValue
}

func (r *row) column(name string) (datalog.TypedValue, bool) {
	if r.vars != nil {
		i, ok := r.vars[name]
		if !ok {
			return datalog.TypedValue{}, false
		}
		return r.vals[i], true
	}
	switch name {
	case algebrizer.ColumnEntity:
		return datalog.Ref(r.datom.E), true
	case algebrizer.ColumnAttribute:
		return datalog.Ref(r.datom.A), true
	case algebrizer.ColumnValue:
		return r.datom.V, true
	case algebrizer.ColumnTx:
		return datalog.Ref(r.datom.Tx), true
	case algebrizer.ColumnAdded:
		return datalog.Boolean(r.datom.Added), true
	}
	return datalog.TypedValue{}, false
}

// env maps table aliases to their current rows. A sub-plan's env falls
// back to the enclosing plan's.
type env struct {
	parent *env
	rows   map[string]*row
}

func newEnv(parent *env) *env {
	return &env{parent: parent, rows: make(map[string]*row)}
}

func (e *env) lookup(c algebrizer.QualifiedColumn) (datalog.TypedValue, error) {
	for s := e; s != nil; s = s.parent {
		if r, ok := s.rows[c.Alias]; ok {
			if v, ok := r.column(c.Column); ok {
				return v, nil
			}
			break
		}
	}
	return datalog.TypedValue{}, datalog.Internal("column %s is not bound", c)
}

// run searches p in a new env below parent, calling emit for every
// combination of rows that passes all checks. emit returns false to stop.
func (ex *execution) run(cp *compiledPlan, parent *env, emit func(*env) (bool, error)) error {
	e := newEnv(parent)
	ok, err := ex.checkAll(cp.pre, e)
	if err != nil || !ok {
		return err
	}
	_, err = ex.search(cp, e, 0, emit)
	return err
}

func (ex *execution) search(cp *compiledPlan, e *env, level int, emit func(*env) (bool, error)) (bool, error) {
	if level == len(cp.steps) {
		return emit(e)
	}
	st := &cp.steps[level]
	return ex.scan(st, e, func(r *row) (bool, error) {
		e.rows[st.table.Alias] = r
		ok, err := ex.checkAll(st.checks, e)
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
		return ex.search(cp, e, level+1, emit)
	})
}

func (ex *execution) checkAll(checks []check, e *env) (bool, error) {
	for _, c := range checks {
		ok, err := c(ex, e)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// scan feeds the candidate rows of one table to fn until fn returns false.
func (ex *execution) scan(st *step, e *env, fn func(*row) (bool, error)) (bool, error) {
	switch st.table.Kind {
	case algebrizer.TableUnion, algebrizer.TableValues:
		rows, err := ex.materialize(st.table)
		if err != nil {
			return false, err
		}
		for _, vals := range rows {
			if cont, err := fn(&row{vars: st.vars, vals: vals}); err != nil || !cont {
				return cont, err
			}
		}
		return true, nil
	}

	prefix, possible, err := ex.prefix(st, e)
	if err != nil || !possible {
		return err == nil, err
	}
	it := ex.snap.Scan(prefix)
	defer it.Close()
	for it.Next() {
		if err := ex.ctx.Err(); err != nil {
			return false, err
		}
		d, err := it.Datom()
		if err != nil {
			return false, err
		}
		if cont, err := fn(&row{datom: d}); err != nil || !cont {
			return cont, err
		}
	}
	return true, nil
}

// prefix picks the narrowest index prefix for a stored table. possible is
// false when a known id is not an integer, so nothing can match.
func (ex *execution) prefix(st *step, e *env) ([]byte, bool, error) {
	known := func(col string) (datalog.TypedValue, bool, error) {
		probes := st.probes[col]
		if len(probes) == 0 {
			return datalog.TypedValue{}, false, nil
		}
		v, err := probes[0](ex, e)
		return v, true, err
	}
	ref := func(col string) (datalog.Entid, bool, bool, error) {
		v, ok, err := known(col)
		if err != nil || !ok {
			return 0, false, true, err
		}
		switch n := v.V.(type) {
		case datalog.Entid:
			return n, true, true, nil
		case int64:
			return datalog.Entid(n), true, true, nil
		}
		return 0, false, false, nil
	}

	if st.table.Kind == algebrizer.TableTransactions {
		tx, ok, possible, err := ref(algebrizer.ColumnTx)
		if err != nil || !possible {
			return nil, false, err
		}
		if ok {
			return EncodePrefix(TXLOG, []datalog.Entid{tx}, nil), true, nil
		}
		return EncodePrefix(TXLOG, nil, nil), true, nil
	}

	entity, hasE, possible, err := ref(algebrizer.ColumnEntity)
	if err != nil || !possible {
		return nil, false, err
	}
	attr, hasA, possible, err := ref(algebrizer.ColumnAttribute)
	if err != nil || !possible {
		return nil, false, err
	}
	switch {
	case hasE && hasA:
		v, hasV, err := known(algebrizer.ColumnValue)
		if err != nil {
			return nil, false, err
		}
		if hasV {
			return EncodePrefix(EAVT, []datalog.Entid{entity, attr}, &v), true, nil
		}
		return EncodePrefix(EAVT, []datalog.Entid{entity, attr}, nil), true, nil
	case hasE:
		return EncodePrefix(EAVT, []datalog.Entid{entity}, nil), true, nil
	case hasA:
		return EncodePrefix(AEVT, []datalog.Entid{attr}, nil), true, nil
	}
	return EncodePrefix(EAVT, nil, nil), true, nil
}

// materialize returns the distinct rows of a union or values table,
// computing them once per execution.
func (ex *execution) materialize(t planner.TableRef) ([][]datalog.TypedValue, error) {
	if rows, ok := ex.computed[t.Alias]; ok {
		return rows, nil
	}
	start := time.Now()

	var rows [][]datalog.TypedValue
	if t.Kind == algebrizer.TableValues {
		rows = t.Rows
	} else {
		seen := make(map[string]bool)
		for _, branch := range t.Union {
			if branch.IsKnownEmpty() {
				continue
			}
			err := ex.run(compile(branch), nil, func(e *env) (bool, error) {
				vals, err := ex.project(branch.Columns, e)
				if err != nil {
					return false, err
				}
				if k := datalog.RowKey(vals); !seen[k] {
					seen[k] = true
					rows = append(rows, vals)
				}
				return true, nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	ex.computed[t.Alias] = rows

	if c := ex.collector; c.Enabled() {
		cols := make([]string, len(t.Vars))
		for i, v := range t.Vars {
			cols[i] = v.String()
		}
		data := c.GetDataMap()
		data["alias"] = t.Alias
		data["columns"] = cols
		data["rows"] = len(rows)
		c.AddTiming(annotations.TableMaterialized, start, data)
	}
	return rows, nil
}

// project reads the values of cols from the bound rows.
func (ex *execution) project(cols []planner.Column, e *env) ([]datalog.TypedValue, error) {
	vals := make([]datalog.TypedValue, len(cols))
	for i, c := range cols {
		var err error
		switch c.Source {
		case planner.SourceTable:
			vals[i], err = e.lookup(c.Ref)
		case planner.SourceConstant:
			vals[i] = c.Value
		case planner.SourceParam:
			vals[i], err = planner.ResolveParam(ex.params, c.Var, c.Type)
		default:
			err = datalog.Internal("column %s has no source", c.Var)
		}
		if err != nil {
			return nil, err
		}
	}
	return vals, nil
}
