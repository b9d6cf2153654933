// Package annotations provides a clean, low-overhead annotation system for
// tracking query compilation and projection metrics and debugging
// information. A nil *Collector is valid and records nothing.
package annotations

import (
	"sync"
	"time"
)

// Event name constants following hierarchical naming pattern
const (
	// Query lifecycle
	QueryInvoked     = "query/invoked"
	QueryAlgebrized  = "query/algebrized"
	QueryPlanCreated = "query/plan.created"
	QueryExecuted    = "query/executed"
	QueryProjected   = "query/projected"
	QueryComplete    = "query/completed"

	// Storage
	TableMaterialized = "table/materialized"
	TransactCommitted = "transact/committed"

	// Projection
	AggregationExecuted = "aggregation/executed"
	PullExecuted        = "pull/executed"

	// Errors
	ErrorQueryBinding  = "error/query.binding"
	ErrorQueryInternal = "error/query.internal"
	ErrorBackend       = "error/backend"
)

// Event represents a single annotation event.
type Event struct {
	Name    string                 // Event name using hierarchical constants above
	Start   time.Time              // Start timestamp
	End     time.Time              // End timestamp
	Latency time.Duration          // Duration (End - Start)
	Data    map[string]interface{} // Additional event-specific data
}

// Handler processes annotation events as they occur.
type Handler func(event Event)

// Collector accumulates events.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event

	// Pre-allocated buffers to minimize allocations
	dataPool []map[string]interface{}
	poolIdx  int
	mu       sync.Mutex // Protects events, dataPool and poolIdx
}

// NewCollector creates a new annotation collector.
func NewCollector(handler Handler) *Collector {
	const poolSize = 32
	c := &Collector{
		enabled:  handler != nil,
		handler:  handler,
		events:   make([]Event, 0, 32),
		dataPool: make([]map[string]interface{}, poolSize),
	}

	// Pre-allocate data maps
	for i := range c.dataPool {
		c.dataPool[i] = make(map[string]interface{}, 8)
	}

	return c
}

// Enabled reports whether events are recorded. Callers check it before
// building event data.
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// Add records a new event.
// Thread-safe for concurrent access.
func (c *Collector) Add(event Event) {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()

	// Call handler outside the lock to avoid deadlocks
	c.handler(event)
}

// AddTiming records an event with timing information.
func (c *Collector) AddTiming(name string, start time.Time, data map[string]interface{}) {
	if !c.Enabled() {
		return
	}

	end := time.Now()
	c.Add(Event{
		Name:    name,
		Start:   start,
		End:     end,
		Latency: end.Sub(start),
		Data:    data,
	})
}

// AddError records an error event. The error text goes under "error".
func (c *Collector) AddError(name string, start time.Time, err error) {
	if !c.Enabled() {
		return
	}
	data := c.GetDataMap()
	data["error"] = err.Error()
	c.AddTiming(name, start, data)
}

// GetDataMap returns a pooled map for event data.
// This reduces allocations in hot paths.
// Thread-safe for concurrent access.
func (c *Collector) GetDataMap() map[string]interface{} {
	if c == nil {
		return make(map[string]interface{}, 4)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.poolIdx >= len(c.dataPool) {
		// Fallback to allocation if pool exhausted
		return make(map[string]interface{}, 4)
	}

	m := c.dataPool[c.poolIdx]
	c.poolIdx++

	// Clear the map for reuse
	for k := range m {
		delete(m, k)
	}

	return m
}

// Events returns all collected events.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	// Return a copy to avoid race conditions
	eventsCopy := make([]Event, len(c.events))
	copy(eventsCopy, c.events)
	return eventsCopy
}

// Names returns the names of the collected events in order.
func (c *Collector) Names() []string {
	events := c.Events()
	names := make([]string, len(events))
	for i, e := range events {
		names[i] = e.Name
	}
	return names
}

// Reset clears the collector for reuse.
// Thread-safe for concurrent access.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = c.events[:0]
	c.poolIdx = 0
	// Don't clear handler or enabled status
}
