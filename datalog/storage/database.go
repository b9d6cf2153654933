package storage

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/planner"
	"github.com/wbrown/janus-algebra/datalog/projector"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
)

// TxBase is the id of the bootstrap transaction. Committed transactions
// are numbered from TxBase+1.
const TxBase datalog.Entid = 0x10000000

// TxInstant is the attribute that records commit time, when the schema
// declares it.
var TxInstant = datalog.NewKeyword(":db/txInstant")

// Options configures a Database. The zero value is usable.
type Options struct {
	Collector *annotations.Collector
	Registry  *query.FunctionRegistry
	PlanCache *planner.PlanCache // Shared plan cache (optional)

	// Rand drives the rand and sample aggregates.
	Rand *rand.Rand
}

// Database ties a schema to a badger store and runs queries through
// algebrization, planning, execution and projection.
type Database struct {
	schema   schema.Schema
	store    *BadgerStore
	planner  *planner.Planner
	executor *Executor
	puller   *Puller
	options  Options

	mu     sync.Mutex // serializes commits
	lastTx datalog.Entid
}

// NewDatabase opens a database at path; an empty path keeps it in memory.
func NewDatabase(path string, s schema.Schema, options Options) (*Database, error) {
	store, err := NewBadgerStore(path)
	if err != nil {
		return nil, err
	}
	last, err := store.LastTx()
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to read transaction log: %w", err)
	}
	if last < TxBase {
		last = TxBase
	}

	return &Database{
		schema: s,
		store:  store,
		planner: planner.NewPlanner(s, planner.Options{
			Collector: options.Collector,
			Registry:  options.Registry,
			Cache:     options.PlanCache,
		}),
		executor: NewExecutor(store, options.Collector),
		puller:   NewPuller(store, s),
		options:  options,
		lastTx:   last,
	}, nil
}

// Close closes the database
func (d *Database) Close() error {
	return d.store.Close()
}

// Store returns the underlying store
func (d *Database) Store() *BadgerStore {
	return d.store
}

// Schema returns the schema queries are compiled against.
func (d *Database) Schema() schema.Schema {
	return d.schema
}

// Planner returns the planner, for cache inspection.
func (d *Database) Planner() *planner.Planner {
	return d.planner
}

// ClearPlanCache drops every cached plan.
func (d *Database) ClearPlanCache() {
	d.planner.ClearCache()
}

// PreparedQuery is a planned query. Inputs given only a type become
// parameters supplied to each Run.
type PreparedQuery struct {
	db    *Database
	query *query.Query
	plan  *planner.Plan
}

// Prepare algebrizes and plans q.
func (d *Database) Prepare(q *query.Query, inputs algebrizer.QueryInputs) (*PreparedQuery, error) {
	plan, err := d.planner.Plan(q, inputs)
	if err != nil {
		return nil, err
	}
	return &PreparedQuery{db: d, query: q, plan: plan}, nil
}

// Plan returns the plan the query runs.
func (p *PreparedQuery) Plan() *planner.Plan {
	return p.plan
}

// Run executes the plan with params and projects the result. Collection
// and relation results are read lazily and must be closed.
func (p *PreparedQuery) Run(ctx context.Context, params map[query.Symbol]datalog.TypedValue) (projector.Result, error) {
	proj, err := projector.New(p.query.Find, p.plan, p.db.projectorOptions(params))
	if err != nil {
		return nil, err
	}
	rows, err := p.db.executor.Execute(ctx, p.plan, params)
	if err != nil {
		return nil, err
	}
	return proj.Project(ctx, rows)
}

// Query runs q with inputs through the whole pipeline.
//
// Example:
//
//	res, err := db.Query(ctx, q, algebrizer.WithValues(map[query.Symbol]datalog.TypedValue{
//	    "?name": datalog.String("Alice"),
//	}))
func (d *Database) Query(ctx context.Context, q *query.Query, inputs algebrizer.QueryInputs) (projector.Result, error) {
	start := time.Now()
	c := d.options.Collector
	if c.Enabled() {
		data := c.GetDataMap()
		data["query"] = q.String()
		c.AddTiming(annotations.QueryInvoked, start, data)
	}

	res, err := d.query(ctx, q, inputs)

	if c.Enabled() {
		data := c.GetDataMap()
		data["success"] = err == nil
		if err != nil {
			data["error"] = err.Error()
		}
		c.AddTiming(annotations.QueryComplete, start, data)
	}
	return res, err
}

func (d *Database) query(ctx context.Context, q *query.Query, inputs algebrizer.QueryInputs) (projector.Result, error) {
	prepared, err := d.Prepare(q, inputs)
	if err != nil {
		return nil, err
	}
	return prepared.Run(ctx, nil)
}

func (d *Database) projectorOptions(params map[query.Symbol]datalog.TypedValue) projector.Options {
	return projector.Options{
		Collector: d.options.Collector,
		Puller:    d.puller,
		Schema:    d.schema,
		Params:    params,
		Rand:      d.options.Rand,
	}
}

// Transaction represents a write transaction
type Transaction struct {
	db     *Database
	datoms []datalog.Datom
	mu     sync.Mutex
	closed bool
	txTime *time.Time // Optional custom transaction time
}

// NewTransaction starts a write transaction. Nothing is visible until
// Commit.
func (d *Database) NewTransaction() *Transaction {
	return &Transaction{db: d}
}

// SetTime sets a custom transaction time for this transaction
func (t *Transaction) SetTime(txTime time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.txTime = &txTime
}

// Add asserts a new datom
func (t *Transaction) Add(e datalog.Entid, a datalog.Keyword, v interface{}) error {
	return t.stage(e, a, v, true)
}

// Retract removes a datom
func (t *Transaction) Retract(e datalog.Entid, a datalog.Keyword, v interface{}) error {
	return t.stage(e, a, v, false)
}

// AddEntity adds all datoms for an entity map
func (t *Transaction) AddEntity(e datalog.Entid, attrs map[datalog.Keyword]interface{}) error {
	for attr, value := range attrs {
		if err := t.Add(e, attr, value); err != nil {
			return err
		}
	}
	return nil
}

func (t *Transaction) stage(e datalog.Entid, a datalog.Keyword, v interface{}, added bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("transaction is closed")
	}
	attr, ok := t.db.schema.AttributeForIdent(a)
	if !ok {
		return &datalog.Error{Kind: datalog.ErrUnrecognizedIdent, Literal: a.String()}
	}
	val, err := t.db.coerce(attr, v)
	if err != nil {
		return err
	}
	t.datoms = append(t.datoms, datalog.Datom{E: e, A: attr.Entid, V: val, Added: added})
	return nil
}

// coerce converts a Go value to the attribute's type. Refs accept
// integers and idents.
func (d *Database) coerce(attr *schema.Attribute, v interface{}) (datalog.TypedValue, error) {
	val, ok := datalog.ValueOf(v)
	if !ok {
		return datalog.TypedValue{}, fmt.Errorf("unsupported value %v (%T) for %s", v, v, attr.Ident)
	}
	if attr.ValueType == datalog.TypeRef {
		switch x := val.V.(type) {
		case int64:
			val = datalog.Ref(datalog.Entid(x))
		case datalog.Keyword:
			e, ok := d.schema.EntidForIdent(x)
			if !ok {
				return datalog.TypedValue{}, &datalog.Error{Kind: datalog.ErrUnrecognizedIdent, Literal: x.String()}
			}
			val = datalog.Ref(e)
		}
	}
	if val.Type != attr.ValueType {
		return datalog.TypedValue{}, &datalog.Error{Kind: datalog.ErrValueTypeMismatch, Type: val.Type, ExpectedType: attr.ValueType}
	}
	return val, nil
}

// Commit writes the staged datoms in a new transaction and returns its id.
func (t *Transaction) Commit() (datalog.Entid, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, fmt.Errorf("transaction is closed")
	}
	t.closed = true

	txTime := time.Now()
	if t.txTime != nil {
		txTime = *t.txTime
	}

	db := t.db
	db.mu.Lock()
	defer db.mu.Unlock()

	start := time.Now()
	tx := db.lastTx + 1
	datoms := t.datoms
	if attr, ok := db.schema.AttributeForIdent(TxInstant); ok && attr.ValueType == datalog.TypeInstant {
		datoms = append(datoms, datalog.Datom{E: tx, A: attr.Entid, V: datalog.Instant(txTime), Added: true})
	}

	single := func(a datalog.Entid) bool {
		attr, ok := db.schema.AttributeForEntid(a)
		return ok && !attr.Multival
	}
	logged, err := db.store.Write(tx, datoms, single)
	if err != nil {
		err = fmt.Errorf("failed to commit transaction %d: %w", tx, err)
		db.options.Collector.AddError(annotations.ErrorBackend, start, err)
		return 0, err
	}
	db.lastTx = tx

	if c := db.options.Collector; c.Enabled() {
		data := c.GetDataMap()
		data["tx"] = int64(tx)
		data["datoms"] = len(logged)
		c.AddTiming(annotations.TransactCommitted, start, data)
	}
	return tx, nil
}

// Rollback aborts the transaction
func (t *Transaction) Rollback() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.datoms = nil
	return nil
}
