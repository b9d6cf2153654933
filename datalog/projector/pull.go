package projector

import (
	"fmt"
	"time"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/annotations"
)

// pullKey identifies one pull: the same entity may be pulled with
// different patterns by different elements.
type pullKey struct {
	elem int
	e    datalog.Entid
}

// pull resolves element i for the entity in v, once per projection call.
func (pr *projection) pull(i int, v datalog.TypedValue) (datalog.StructuredMap, error) {
	e, ok := v.AsEntid()
	if !ok {
		return nil, datalog.Internal("pull of %s from a %s", pr.plan.Elements[i].Var, v.Type)
	}
	key := pullKey{elem: i, e: e}
	if m, ok := pr.pulls[key]; ok {
		return m, nil
	}

	start := time.Now()
	el := pr.plan.Elements[i]
	m, err := pr.opts.Puller.Pull(pr.ctx, e, el.Pull)
	if err != nil {
		return nil, datalog.Wrap(datalog.ErrPull, err, fmt.Sprintf("%s of %d", el, e))
	}
	if m == nil {
		m = datalog.StructuredMap{}
	}
	pr.pulls[key] = m
	pr.pulled++

	if c := pr.opts.Collector; c.Enabled() {
		data := c.GetDataMap()
		data["entity"] = int64(e)
		data["pattern"] = el.Pull.String()
		data["attributes"] = len(m)
		c.AddTiming(annotations.PullExecuted, start, data)
	}
	return m, nil
}
