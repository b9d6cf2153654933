package projector

import (
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/query"
)

// group accumulates the rows sharing one grouping key.
type group struct {
	first  []datalog.TypedValue
	states []*aggregateState
	// extremumRow is the row that produced the current min or max.
	extremumRow []datalog.TypedValue
}

// aggregate consumes rows, groups them and computes every aggregate.
// Groups are returned in first-seen order, limited by the plan's limit.
func (pr *projection) aggregate(rows RowSource) ([][]datalog.Binding, error) {
	defer rows.Close()
	start := time.Now()

	index := make(map[string]*group)
	var groups []*group
	var key strings.Builder
	n := 0
	for rows.Next() {
		row := rows.Row()
		if err := pr.checkRow(row); err != nil {
			return nil, err
		}
		n++

		key.Reset()
		for _, i := range pr.groupBy {
			datalog.WriteValueKey(&key, row[i])
		}
		g, ok := index[key.String()]
		if !ok {
			g = pr.newGroup(copyRow(row))
			index[key.String()] = g
			groups = append(groups, g)
		}
		for i, s := range g.states {
			if s == nil {
				continue
			}
			if s.add(row[i]) && i == pr.extremum {
				g.extremumRow = copyRow(row)
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, datalog.Wrap(datalog.ErrRowSource, err, "")
	}

	if len(groups) == 0 && len(pr.groupBy) == 0 && pr.definedOnEmpty() {
		groups = append(groups, pr.newGroup(nil))
	}

	limit, err := pr.limit()
	if err != nil {
		return nil, err
	}
	if limit >= 0 && int64(len(groups)) > limit {
		groups = groups[:limit]
	}

	out := make([][]datalog.Binding, 0, len(groups))
	for _, g := range groups {
		row, err := pr.groupRow(g)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}

	if c := pr.opts.Collector; c.Enabled() {
		data := c.GetDataMap()
		data["rows"] = n
		data["groups"] = len(out)
		data["group_by"] = len(pr.groupBy)
		data["find"] = pr.spec.String()
		c.AddTiming(annotations.AggregationExecuted, start, data)
	}
	return out, nil
}

func (pr *projection) newGroup(first []datalog.TypedValue) *group {
	g := &group{first: first, states: make([]*aggregateState, len(pr.plan.Elements))}
	for i, el := range pr.plan.Elements {
		if el.Kind == algebrizer.ElementAggregate {
			g.states[i] = newAggregateState(el, pr.results[i])
		}
	}
	return g
}

// definedOnEmpty reports whether every aggregate has a value over no rows.
func (pr *projection) definedOnEmpty() bool {
	for _, el := range pr.plan.Elements {
		if el.Kind != algebrizer.ElementAggregate {
			return false
		}
		switch el.Op {
		case query.AggCount, query.AggCountDistinct, query.AggSum,
			query.AggDistinct, query.AggRand, query.AggSample:
		default:
			return false
		}
	}
	return true
}

// limit resolves the plan's limit; -1 means none.
func (pr *projection) limit() (int64, error) {
	l := pr.plan.Limit
	switch l.Kind {
	case algebrizer.LimitFixed:
		return l.N, nil
	case algebrizer.LimitParam:
		v, ok := pr.opts.Params[l.Var]
		if !ok {
			return 0, &datalog.Error{Kind: datalog.ErrUnboundVariable, Var: l.Var.String(), Msg: "has no parameter value"}
		}
		n, ok := v.AsLong()
		if !ok || n < 1 {
			return 0, &datalog.Error{Kind: datalog.ErrInvalidLimit, Literal: v.String(), Type: v.Type}
		}
		return n, nil
	default:
		return -1, nil
	}
}

func (pr *projection) groupRow(g *group) ([]datalog.Binding, error) {
	out := make([]datalog.Binding, len(pr.plan.Elements))
	for i, el := range pr.plan.Elements {
		switch el.Kind {
		case algebrizer.ElementAggregate:
			out[i] = g.states[i].result(pr.opts.Rand)
		case algebrizer.ElementCorresponding:
			if g.extremumRow == nil {
				return nil, datalog.Internal("no row selected for %s", el)
			}
			out[i] = g.extremumRow[i]
		case algebrizer.ElementPull:
			m, err := pr.pull(i, g.first[i])
			if err != nil {
				return nil, err
			}
			out[i] = m
		default:
			out[i] = g.first[i]
		}
	}
	return out, nil
}

// aggregateState is the running state of one aggregate in one group.
type aggregateState struct {
	op     query.AggregateOp
	n      int64
	typ    datalog.ValueType

	count  int64
	sumL   int64
	sumF   float64
	best   datalog.TypedValue
	values []datalog.TypedValue
	seen   map[string]bool
}

func newAggregateState(el algebrizer.ProjectedElement, typ datalog.ValueType) *aggregateState {
	s := &aggregateState{op: el.Op, n: el.N, typ: typ}
	if el.Op == query.AggCountDistinct || el.Op == query.AggDistinct || el.Op == query.AggSample {
		s.seen = make(map[string]bool)
	}
	return s
}

// add folds v into the state. For min and max it reports whether v became
// the new extremum.
func (s *aggregateState) add(v datalog.TypedValue) bool {
	s.count++
	switch s.op {
	case query.AggSum, query.AggAvg:
		if l, ok := v.AsLong(); ok && s.typ == datalog.TypeLong {
			s.sumL += l
		} else {
			f, _ := v.AsFloat()
			s.sumF += f
		}
	case query.AggMin:
		if s.count == 1 || datalog.CompareValues(v, s.best) < 0 {
			s.best = v
			return true
		}
	case query.AggMax:
		if s.count == 1 || datalog.CompareValues(v, s.best) > 0 {
			s.best = v
			return true
		}
	case query.AggCountDistinct, query.AggDistinct, query.AggSample:
		k := valueKey(v)
		if !s.seen[k] {
			s.seen[k] = true
			s.values = append(s.values, v)
		}
	case query.AggMedian, query.AggVariance, query.AggStddev, query.AggRand:
		s.values = append(s.values, v)
	}
	return false
}

// result finalizes the aggregate. Callers never finalize min, max, avg,
// median, variance or stddev over an empty group.
func (s *aggregateState) result(rnd *rand.Rand) datalog.Binding {
	switch s.op {
	case query.AggCount:
		return datalog.Long(s.count)
	case query.AggCountDistinct:
		return datalog.Long(int64(len(s.values)))
	case query.AggSum:
		if s.typ == datalog.TypeLong {
			return datalog.Long(s.sumL)
		}
		return datalog.Double(s.sumF)
	case query.AggAvg:
		return datalog.Double(s.sumF / float64(s.count))
	case query.AggMin, query.AggMax:
		if s.typ == datalog.TypeDouble && s.best.Type == datalog.TypeLong {
			f, _ := s.best.AsFloat()
			return datalog.Double(f)
		}
		return s.best
	case query.AggMedian:
		return datalog.Double(median(floats(s.values)))
	case query.AggVariance:
		return datalog.Double(variance(floats(s.values)))
	case query.AggStddev:
		return datalog.Double(math.Sqrt(variance(floats(s.values))))
	case query.AggDistinct:
		return vector(s.values)
	case query.AggRand:
		out := make(datalog.Vector, 0, s.n)
		for i := int64(0); i < s.n && len(s.values) > 0; i++ {
			out = append(out, s.values[rnd.Intn(len(s.values))])
		}
		return out
	case query.AggSample:
		picked := append([]datalog.TypedValue(nil), s.values...)
		for i := len(picked) - 1; i > 0; i-- {
			j := rnd.Intn(i + 1)
			picked[i], picked[j] = picked[j], picked[i]
		}
		if int64(len(picked)) > s.n {
			picked = picked[:s.n]
		}
		return vector(picked)
	}
	return nil
}

func floats(values []datalog.TypedValue) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i], _ = v.AsFloat()
	}
	return out
}

func median(xs []float64) float64 {
	sort.Float64s(xs)
	mid := len(xs) / 2
	if len(xs)%2 == 1 {
		return xs[mid]
	}
	return (xs[mid-1] + xs[mid]) / 2
}

// variance is the population variance.
func variance(xs []float64) float64 {
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return sq / float64(len(xs))
}

func vector(values []datalog.TypedValue) datalog.Vector {
	out := make(datalog.Vector, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func valueKey(v datalog.TypedValue) string {
	var sb strings.Builder
	datalog.WriteValueKey(&sb, v)
	return sb.String()
}

func copyRow(row []datalog.TypedValue) []datalog.TypedValue {
	return append([]datalog.TypedValue(nil), row...)
}
