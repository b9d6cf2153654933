package planner

import (
	"time"

	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

// Options configures a Planner. The zero value is usable.
type Options struct {
	Collector *annotations.Collector
	Registry  *query.FunctionRegistry
	Cache     *PlanCache // Shared plan cache (optional)
}

// Planner compiles queries against a schema into plans.
type Planner struct {
	schema  schema.Schema
	options Options
	cache   *PlanCache
}

// NewPlanner creates a planner for s.
func NewPlanner(s schema.Schema, options Options) *Planner {
	return &Planner{
		schema:  s,
		options: options,
		cache:   options.Cache,
	}
}

// Options returns the planner options
func (p *Planner) Options() Options {
	return p.options
}

// SetCache replaces the plan cache; nil disables caching.
func (p *Planner) SetCache(cache *PlanCache) {
	p.cache = cache
}

// ClearCache drops every cached plan. Call it after the schema changes.
func (p *Planner) ClearCache() {
	p.cache.Clear()
}

// CacheStats reports cache statistics and whether caching is enabled.
func (p *Planner) CacheStats() (hits, misses int64, size int, enabled bool) {
	hits, misses, size = p.cache.Stats()
	return hits, misses, size, p.cache != nil
}

// Plan algebrizes q with inputs and builds its plan.
func (p *Planner) Plan(q *query.Query, inputs algebrizer.QueryInputs) (*Plan, error) {
	if cached, ok := p.cache.Get(q, inputs); ok {
		return cached, nil
	}

	aq, err := algebrizer.AlgebrizeWithOptions(p.schema, q, inputs, algebrizer.Options{
		Collector: p.options.Collector,
		Registry:  p.options.Registry,
	})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	plan := Build(aq)
	if c := p.options.Collector; c.Enabled() {
		data := c.GetDataMap()
		data["plan"] = plan.String()
		data["tables"] = len(plan.Tables)
		data["filters"] = len(plan.Filters)
		data["params"] = len(plan.Params())
		c.AddTiming(annotations.QueryPlanCreated, start, data)
	}

	p.cache.Set(q, inputs, plan)
	return plan, nil
}
