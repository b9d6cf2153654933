package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/query"
)

// PlanCache caches plans to avoid recompiling identical queries. Input
// values are compiled into plans, so they are part of the key; parameters
// contribute only their types.
type PlanCache struct {
	cache map[string]*cachedPlan
	mu    sync.RWMutex

	// Statistics
	hits   int64
	misses int64

	// Configuration
	maxSize int
	ttl     time.Duration
}

type cachedPlan struct {
	plan      *Plan
	timestamp time.Time
}

// NewPlanCache creates a new plan cache
func NewPlanCache(maxSize int, ttl time.Duration) *PlanCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &PlanCache{
		cache:   make(map[string]*cachedPlan),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached plan if it exists and is not expired
func (c *PlanCache) Get(q *query.Query, inputs algebrizer.QueryInputs) (*Plan, bool) {
	if c == nil {
		return nil, false
	}

	key := computeKey(q, inputs)

	c.mu.RLock()
	defer c.mu.RUnlock()

	cached, ok := c.cache[key]
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	// Expired entries are deleted lazily by Set
	if time.Since(cached.timestamp) > c.ttl {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&c.hits, 1)
	return cached.plan, true
}

// Set stores a plan in the cache
func (c *PlanCache) Set(q *query.Query, inputs algebrizer.QueryInputs, plan *Plan) {
	if c == nil || plan == nil {
		return
	}

	key := computeKey(q, inputs)

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.cache) >= c.maxSize {
		c.evictExpired()

		if len(c.cache) >= c.maxSize {
			c.evictOldest()
		}
	}

	c.cache[key] = &cachedPlan{
		plan:      plan,
		timestamp: time.Now(),
	}
}

// Clear removes all cached plans
func (c *PlanCache) Clear() {
	if c == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache = make(map[string]*cachedPlan)
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats returns cache statistics
func (c *PlanCache) Stats() (hits, misses int64, size int) {
	if c == nil {
		return 0, 0, 0
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	return atomic.LoadInt64(&c.hits), atomic.LoadInt64(&c.misses), len(c.cache)
}

// computeKey hashes the query text, the types of its constants and its
// inputs.
func computeKey(q *query.Query, inputs algebrizer.QueryInputs) string {
	h := sha256.New()
	fmt.Fprintf(h, "QUERY:%s;", q.String())

	fmt.Fprintf(h, "CONST:")
	writeConstantTypes(h, q)

	fmt.Fprintf(h, "IN:")
	for _, v := range inputs.Variables() {
		if val, ok := inputs.Values[v]; ok {
			fmt.Fprintf(h, "%s=%d:%s;", v, val.Type, val)
		} else {
			fmt.Fprintf(h, "%s:%d;", v, inputs.Types[v])
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}

// writeConstantTypes records the type of every constant in q. The query
// text prints int64(5), float64(5) and Entid(5) alike.
func writeConstantTypes(w io.Writer, q *query.Query) {
	var constant func(v interface{})
	constant = func(v interface{}) {
		switch v := v.(type) {
		case []interface{}:
			fmt.Fprint(w, "[")
			for _, e := range v {
				constant(e)
			}
			fmt.Fprint(w, "]")
		case datalog.TypedValue:
			fmt.Fprintf(w, "%d;", v.Type)
		default:
			fmt.Fprintf(w, "%T;", v)
		}
	}
	args := func(as []query.FnArg) {
		for _, a := range as {
			if c, ok := a.(query.Constant); ok {
				constant(c.Value)
			}
		}
	}
	var clauses func(cs []query.Clause)
	clauses = func(cs []query.Clause) {
		for _, c := range cs {
			switch c := c.(type) {
			case *query.Pattern:
				for _, s := range c.Slots() {
					if k, ok := s.(query.Constant); ok {
						constant(k.Value)
					}
				}
			case *query.Not:
				clauses(c.Clauses)
			case *query.Or:
				for _, br := range c.Branches {
					clauses(br)
				}
			case *query.OrJoin:
				for _, br := range c.Branches {
					clauses(br)
				}
			case *query.Predicate:
				args(c.Args)
			case *query.FunctionCall:
				args(c.Args)
			case *query.RuleExpansion:
				args(c.Args)
			case *query.Ground:
				constant(c.Value.Value)
			}
			fmt.Fprint(w, "|")
		}
	}

	if q.Find != nil {
		for _, e := range q.Find.Elements() {
			if agg, ok := e.(query.ElemAggregate); ok {
				args(agg.Args)
			}
		}
	}
	clauses(q.Where)
	if l, ok := q.Limit.(query.LimitConstant); ok {
		constant(l.Value)
	}
}

// evictExpired removes expired entries from the cache
func (c *PlanCache) evictExpired() {
	now := time.Now()
	for key, cached := range c.cache {
		if now.Sub(cached.timestamp) > c.ttl {
			delete(c.cache, key)
		}
	}
}

// evictOldest removes the oldest entry from the cache
func (c *PlanCache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, cached := range c.cache {
		if oldestKey == "" || cached.timestamp.Before(oldestTime) {
			oldestKey = key
			oldestTime = cached.timestamp
		}
	}

	if oldestKey != "" {
		delete(c.cache, oldestKey)
	}
}
