// Package projector turns the rows of an executed plan into query results.
// It enforces the find shape, groups and aggregates rows for aggregate
// finds, and delegates pull expressions to a Puller.
package projector

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/planner"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

// DBID is the key under which pull results carry the entity id.
var DBID = datalog.NewKeyword(":db/id")

// Puller resolves a pull expression for one entity.
type Puller interface {
	Pull(ctx context.Context, e datalog.Entid, pattern *query.PullPattern) (datalog.StructuredMap, error)
}

// Options configures a Projector. The zero value is usable for finds
// without pull expressions.
type Options struct {
	Collector *annotations.Collector
	Puller    Puller

	// Schema, when set, validates pull attributes up front.
	Schema schema.Schema

	// Params supplies the parameter limit of aggregated plans.
	Params map[query.Symbol]datalog.TypedValue

	// Rand drives rand and sample; defaults to a time-seeded source.
	Rand *rand.Rand
}

// Projector projects rows for one find spec and plan. It is validated
// once and may be reused across executions, but not concurrently.
type Projector struct {
	spec query.FindSpec
	plan *planner.Plan
	opts Options

	// groupBy lists the columns forming the group key of aggregated plans.
	// Hidden :with columns only keep otherwise equal rows apart.
	groupBy []int
	// results holds the result type of each aggregate element; zero for
	// vector results and for other elements.
	results []datalog.ValueType
	// extremum is the element index of the single min or max, or -1.
	extremum int
}

// Project is New followed by (*Projector).Project.
func Project(ctx context.Context, spec query.FindSpec, plan *planner.Plan, rows RowSource, opts Options) (Result, error) {
	p, err := New(spec, plan, opts)
	if err != nil {
		if rows != nil {
			rows.Close()
		}
		return nil, err
	}
	return p.Project(ctx, rows)
}

// New validates spec against plan before any row is read.
func New(spec query.FindSpec, plan *planner.Plan, opts Options) (*Projector, error) {
	if n := len(spec.Elements()); n != len(plan.Elements) {
		return nil, datalog.Internal("find has %d elements, plan has %d", n, len(plan.Elements))
	}
	if len(plan.Columns) < len(plan.Elements) {
		return nil, datalog.Internal("plan has %d columns for %d elements", len(plan.Columns), len(plan.Elements))
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	p := &Projector{
		spec:     spec,
		plan:     plan,
		opts:     opts,
		results:  make([]datalog.ValueType, len(plan.Elements)),
		extremum: -1,
	}

	var extrema, corresponding int
	for i, el := range plan.Elements {
		switch el.Kind {
		case algebrizer.ElementAggregate:
			if plan.Columns[i].Source == 0 {
				return nil, &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: el.Var.String(), Msg: "in " + el.String()}
			}
			t, err := resultType(el)
			if err != nil {
				return nil, err
			}
			p.results[i] = t
			if el.Op.IsExtremum() {
				extrema++
				p.extremum = i
			}
		case algebrizer.ElementCorresponding:
			corresponding++
		case algebrizer.ElementPull:
			if err := p.checkPull(el); err != nil {
				return nil, err
			}
		}
	}

	if plan.Aggregated {
		if corresponding > 0 && extrema != 1 {
			return nil, &datalog.Error{Kind: datalog.ErrAmbiguousAggregates, Actual: extrema, Expected: corresponding}
		}
		for i, el := range plan.Elements {
			if el.Kind == algebrizer.ElementVariable || el.Kind == algebrizer.ElementPull {
				p.groupBy = append(p.groupBy, i)
			}
		}
	}
	return p, nil
}

func (p *Projector) checkPull(el algebrizer.ProjectedElement) error {
	if p.opts.Puller == nil {
		return &datalog.Error{Kind: datalog.ErrInvalidProjection, Msg: el.String() + " needs a puller"}
	}
	if p.opts.Schema == nil || el.Pull == nil {
		return nil
	}
	for _, a := range el.Pull.Attributes {
		if a.Attr == DBID {
			continue
		}
		if _, ok := p.opts.Schema.AttributeForIdent(a.Attr); !ok {
			return &datalog.Error{Kind: datalog.ErrUnrecognizedIdent, Literal: a.Attr.String()}
		}
	}
	return nil
}

// orderable holds the unit types min and max accept.
var orderable = datalog.TypeSetOf(datalog.TypeLong, datalog.TypeDouble, datalog.TypeInstant, datalog.TypeString)

// resultType checks that an aggregate applies to its input types and
// returns the type it produces. Collection aggregates return zero.
func resultType(el algebrizer.ProjectedElement) (datalog.ValueType, error) {
	types := el.Types
	if types.IsEmpty() {
		return 0, &datalog.Error{Kind: datalog.ErrCannotProjectImpossibleBinding, Fn: el.Op.String()}
	}
	switch el.Op {
	case query.AggCount, query.AggCountDistinct:
		return datalog.TypeLong, nil
	case query.AggDistinct, query.AggRand, query.AggSample:
		return 0, nil
	case query.AggSum:
		if types == datalog.TypeSetOf(datalog.TypeLong) {
			return datalog.TypeLong, nil
		}
		if types.IsOnlyNumeric() {
			return datalog.TypeDouble, nil
		}
	case query.AggAvg, query.AggMedian, query.AggVariance, query.AggStddev:
		if types.IsOnlyNumeric() {
			return datalog.TypeDouble, nil
		}
	case query.AggMin, query.AggMax:
		if t, ok := types.Exemplar(); ok && types.IsUnit() && orderable.Contains(t) {
			return t, nil
		}
		if types.IsOnlyNumeric() {
			return datalog.TypeDouble, nil
		}
	}
	return 0, &datalog.Error{Kind: datalog.ErrCannotApplyAggregateOperationToTypes, Fn: el.Op.String(), Types: types}
}

// Columns names the projected elements in find order.
func (p *Projector) Columns() []string {
	out := make([]string, len(p.plan.Elements))
	for i, el := range p.plan.Elements {
		out[i] = el.String()
	}
	return out
}

// Project reads rows and shapes them. Scalar and tuple finds, and
// aggregated plans, consume rows before returning; otherwise coll and rel
// results read rows on demand and own rows until closed.
func (p *Projector) Project(ctx context.Context, rows RowSource) (Result, error) {
	if rows == nil {
		rows = NewSliceRows(nil)
	}
	pr := &projection{
		Projector: p,
		ctx:       ctx,
		start:     time.Now(),
		pulls:     make(map[pullKey]datalog.StructuredMap),
	}

	var src *cursor
	if p.plan.Aggregated {
		out, err := pr.aggregate(rows)
		if err != nil {
			return nil, err
		}
		src = newSliceCursor(out)
	} else {
		src = pr.streamCursor(rows)
	}
	src.onDone = pr.finish

	switch p.spec.(type) {
	case query.FindScalar:
		row, err := pr.single(src, "scalar")
		if err != nil {
			return nil, err
		}
		return ScalarResult{Value: row[0], columns: p.Columns()}, nil
	case query.FindTuple:
		row, err := pr.single(src, "tuple")
		if err != nil {
			return nil, err
		}
		return TupleResult{Values: row, columns: p.Columns()}, nil
	case query.FindColl:
		return &CollResult{c: src, columns: p.Columns()}, nil
	case query.FindRel:
		return &RelResult{c: src, columns: p.Columns()}, nil
	default:
		src.close()
		return nil, datalog.Internal("unknown find spec %T", p.spec)
	}
}

// single reads the only row of a scalar or tuple find.
func (pr *projection) single(src *cursor, shape string) ([]datalog.Binding, error) {
	defer src.close()
	if !src.next() {
		if src.err != nil {
			return nil, src.err
		}
		return nil, &datalog.Error{Kind: datalog.ErrUnexpectedResultCount, Msg: shape, Literal: "none"}
	}
	row := src.cur
	n := 1
	for src.next() {
		n++
	}
	if src.err != nil {
		return nil, src.err
	}
	if n > 1 {
		return nil, &datalog.Error{Kind: datalog.ErrUnexpectedResultCount, Msg: shape, Literal: fmt.Sprint(n)}
	}
	return row, nil
}

// projection is the state of one Project call.
type projection struct {
	*Projector
	ctx   context.Context
	start time.Time

	pulls  map[pullKey]datalog.StructuredMap
	pulled int
}

func (pr *projection) finish(n int, err error) {
	c := pr.opts.Collector
	if !c.Enabled() {
		return
	}
	if err != nil {
		name := annotations.ErrorQueryBinding
		if datalog.IsKind(err, datalog.ErrInternalInvariant) {
			name = annotations.ErrorQueryInternal
		}
		c.AddError(name, pr.start, err)
		return
	}
	data := c.GetDataMap()
	data["find"] = pr.spec.String()
	data["rows"] = n
	data["pulls"] = pr.pulled
	c.AddTiming(annotations.QueryProjected, pr.start, data)
}

// checkRow verifies a row against the plan's columns.
func (pr *projection) checkRow(row []datalog.TypedValue) error {
	cols := pr.plan.Columns
	if len(row) != len(cols) {
		// Hidden :with and :order columns trail the declared elements.
		hidden := len(cols) - len(pr.plan.Elements)
		if _, ok := pr.spec.(query.FindTuple); ok && len(row) >= hidden {
			return &datalog.Error{Kind: datalog.ErrUnexpectedResultsTupleLength, Expected: len(pr.plan.Elements), Actual: len(row) - hidden}
		}
		return datalog.Internal("row has %d values, plan has %d columns", len(row), len(cols))
	}
	for i, v := range row {
		c := cols[i]
		if (c.Type.IsValid() && v.Type != c.Type) || !c.Types.Contains(v.Type) {
			return datalog.Internal("column %d (%s) holds a %s, expected %s", i, c.Var, v.Type, c.Types)
		}
	}
	return nil
}

// bindings converts a checked row of a non-aggregated plan.
func (pr *projection) bindings(row []datalog.TypedValue) ([]datalog.Binding, error) {
	out := make([]datalog.Binding, len(pr.plan.Elements))
	for i, el := range pr.plan.Elements {
		if el.Kind == algebrizer.ElementPull {
			m, err := pr.pull(i, row[i])
			if err != nil {
				return nil, err
			}
			out[i] = m
			continue
		}
		out[i] = row[i]
	}
	return out, nil
}

// streamCursor converts rows one at a time.
func (pr *projection) streamCursor(rows RowSource) *cursor {
	return &cursor{
		fetch: func() ([]datalog.Binding, error) {
			if !rows.Next() {
				if err := rows.Err(); err != nil {
					return nil, datalog.Wrap(datalog.ErrRowSource, err, "")
				}
				return nil, nil
			}
			row := rows.Row()
			if err := pr.checkRow(row); err != nil {
				return nil, err
			}
			return pr.bindings(row)
		},
		release: rows.Close,
	}
}
