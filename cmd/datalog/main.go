package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	_ "embed"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/algebrizer"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/planner"
	"github.com/wbrown/janus-algebra/datalog/projector"
	"github.com/wbrown/janus-algebra/datalog/query"
	"github.com/wbrown/janus-algebra/datalog/schema"
	"github.com/wbrown/janus-algebra/datalog/storage"
	"github.com/wbrown/janus-algebra/datalog/storage/sqlstore"
)

//go:embed demo_schema.yaml
var demoSchema string

// backend runs compiled queries against one store.
type backend interface {
	seed(s schema.Schema) error
	run(ctx context.Context, q demoQuery) (projector.Result, error)
	Close() error
}

func main() {
	var dbPath string
	var schemaPath string
	var backendName string
	var verbose bool
	var showSQL bool
	var help bool

	flag.StringVar(&dbPath, "db", "", "database path (empty for in-memory)")
	flag.StringVar(&schemaPath, "schema", "", "YAML schema file (default: built-in demo schema)")
	flag.StringVar(&backendName, "backend", "badger", "storage backend: badger or sqlite")
	flag.BoolVar(&verbose, "verbose", false, "verbose mode (show query annotations)")
	flag.BoolVar(&showSQL, "sql", false, "print the SQL rendered for each query")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Runs the demo queries through the algebrizer, planner and projector.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                         # In-memory badger store\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -backend sqlite -sql    # SQLite store, print SQL\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -db people.db -verbose  # Persistent store with annotations\n", os.Args[0])
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	s, err := loadSchema(schemaPath)
	if err != nil {
		log.Fatalf("Failed to load schema: %v", err)
	}

	var handler annotations.Handler
	if verbose {
		handler = annotations.NewOutputFormatter(os.Stderr).Handle
	}
	collector := annotations.NewCollector(handler)

	var b backend
	switch backendName {
	case "badger":
		b, err = openBadger(dbPath, s, collector)
	case "sqlite":
		b, err = openSQLite(dbPath, s, collector)
	default:
		err = fmt.Errorf("unknown backend %q", backendName)
	}
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer b.Close()

	if err := b.seed(s); err != nil {
		log.Fatalf("Failed to load demo data: %v", err)
	}

	ctx := context.Background()
	fmt.Printf("=== Janus Algebra Demo (%s) ===\n", backendName)
	for _, q := range demoQueries() {
		fmt.Printf("\n%s\n%s\n\n", q.title, q.query)
		if showSQL {
			if err := printSQL(s, q); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
		}
		res, err := b.run(ctx, q)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		out, err := projector.FormatResult(res)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			continue
		}
		fmt.Println(out)
	}
}

func loadSchema(path string) (*schema.Memory, error) {
	if path == "" {
		return schema.Load(strings.NewReader(demoSchema))
	}
	return schema.LoadFile(path)
}

// printSQL shows the statement the SQLite backend would run.
func printSQL(s schema.Schema, q demoQuery) error {
	plan, err := planner.NewPlanner(s, planner.Options{}).Plan(q.query, inputsFor(q))
	if err != nil {
		return err
	}
	text, args, err := plan.SQL(q.params)
	if err != nil {
		return err
	}
	fmt.Printf("SQL: %s\nArgs: %v\n\n", text, args)
	return nil
}

// inputsFor declares each parameter's type so plans can be prepared
// before values are known.
func inputsFor(q demoQuery) algebrizer.QueryInputs {
	types := make(map[query.Symbol]datalog.ValueType, len(q.params))
	for v, val := range q.params {
		types[v] = val.Type
	}
	return algebrizer.WithTypes(types)
}

type badgerBackend struct {
	db *storage.Database
}

func openBadger(path string, s schema.Schema, collector *annotations.Collector) (*badgerBackend, error) {
	db, err := storage.NewDatabase(path, s, storage.Options{
		Collector: collector,
		PlanCache: planner.NewPlanCache(100, 0),
	})
	if err != nil {
		return nil, err
	}
	return &badgerBackend{db: db}, nil
}

func (b *badgerBackend) seed(s schema.Schema) error {
	last, err := b.db.Store().LastTx()
	if err != nil {
		return err
	}
	if last > storage.TxBase {
		fmt.Println("Database contains data, skipping demo data.")
		return nil
	}
	fmt.Println("Database is empty, loading demo data...")
	tx := b.db.NewTransaction()
	for _, f := range demoFacts {
		if err := tx.Add(f.e, datalog.NewKeyword(f.a), f.v); err != nil {
			return err
		}
	}
	_, err = tx.Commit()
	return err
}

func (b *badgerBackend) run(ctx context.Context, q demoQuery) (projector.Result, error) {
	prepared, err := b.db.Prepare(q.query, inputsFor(q))
	if err != nil {
		return nil, err
	}
	return prepared.Run(ctx, q.params)
}

func (b *badgerBackend) Close() error { return b.db.Close() }

type sqliteBackend struct {
	store     *sqlstore.Store
	planner   *planner.Planner
	collector *annotations.Collector
}

func openSQLite(path string, s schema.Schema, collector *annotations.Collector) (*sqliteBackend, error) {
	store, err := sqlstore.Open(path, collector)
	if err != nil {
		return nil, err
	}
	return &sqliteBackend{
		store:     store,
		planner:   planner.NewPlanner(s, planner.Options{Collector: collector}),
		collector: collector,
	}, nil
}

func (b *sqliteBackend) seed(s schema.Schema) error {
	ctx := context.Background()
	last, err := b.store.LastTx(ctx)
	if err != nil {
		return err
	}
	if last > storage.TxBase {
		fmt.Println("Database contains data, skipping demo data.")
		return nil
	}
	fmt.Println("Database is empty, loading demo data...")

	datoms := make([]datalog.Datom, 0, len(demoFacts))
	for _, f := range demoFacts {
		attr, ok := s.AttributeForIdent(datalog.NewKeyword(f.a))
		if !ok {
			return &datalog.Error{Kind: datalog.ErrUnrecognizedIdent, Literal: f.a}
		}
		v, ok := datalog.ValueOf(f.v)
		if !ok || v.Type != attr.ValueType {
			return &datalog.Error{Kind: datalog.ErrValueTypeMismatch, Type: v.Type, ExpectedType: attr.ValueType}
		}
		datoms = append(datoms, datalog.Datom{E: f.e, A: attr.Entid, V: v, Added: true})
	}
	single := func(a datalog.Entid) bool {
		attr, ok := s.AttributeForEntid(a)
		return ok && !attr.Multival
	}
	_, err = b.store.Transact(ctx, storage.TxBase+1, datoms, single)
	return err
}

func (b *sqliteBackend) run(ctx context.Context, q demoQuery) (projector.Result, error) {
	plan, err := b.planner.Plan(q.query, inputsFor(q))
	if err != nil {
		return nil, err
	}
	rows, err := b.store.Execute(ctx, plan, q.params)
	if err != nil {
		return nil, err
	}
	return projector.Project(ctx, q.query.Find, plan, rows, projector.Options{
		Collector: b.collector,
		Params:    q.params,
	})
}

func (b *sqliteBackend) Close() error { return b.store.Close() }
