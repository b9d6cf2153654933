// Package sqlstore keeps datoms in SQLite and executes plans through the
// SQL the planner renders for them.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/wbrown/janus-algebra/datalog"
	"github.com/wbrown/janus-algebra/datalog/annotations"
	"github.com/wbrown/janus-algebra/datalog/planner"
	"github.com/wbrown/janus-algebra/datalog/projector"
	"github.com/wbrown/janus-algebra/datalog/query"
)

//go:embed schema.sql
var schemaSQL string

// Backend names this store in trace events.
const Backend = "sqlite"

// Store holds the datoms and transactions tables the planner's SQL reads.
type Store struct {
	db        *sql.DB
	collector *annotations.Collector
}

// Open creates or opens a SQLite database at path. An empty path opens a
// private in-memory database.
func Open(path string, collector *annotations.Collector) (*Store, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db, collector: collector}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// LastTx returns the highest transaction id in the log, or 0.
func (s *Store) LastTx(ctx context.Context) (datalog.Entid, error) {
	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(tx), 0) FROM transactions`).Scan(&last)
	if err != nil {
		return 0, fmt.Errorf("read last transaction: %w", err)
	}
	return datalog.Entid(last), nil
}

// Transact applies one transaction with the same rules as the badger
// store: duplicate assertions and retractions of absent datoms are
// dropped, and for attributes where single reports true an assertion
// retracts the entity's other values first. It returns the datoms written
// to the log.
func (s *Store) Transact(ctx context.Context, tx datalog.Entid, datoms []datalog.Datom, single func(a datalog.Entid) bool) ([]datalog.Datom, error) {
	start := time.Now()
	logged, err := s.transact(ctx, tx, datoms, single)
	if err != nil {
		err = fmt.Errorf("transact %d: %w", tx, err)
		s.collector.AddError(annotations.ErrorBackend, start, err)
		return nil, err
	}
	if c := s.collector; c.Enabled() {
		data := c.GetDataMap()
		data["backend"] = Backend
		data["tx"] = int64(tx)
		data["datoms"] = len(logged)
		c.AddTiming(annotations.TransactCommitted, start, data)
	}
	return logged, nil
}

func (s *Store) transact(ctx context.Context, tx datalog.Entid, datoms []datalog.Datom, single func(a datalog.Entid) bool) ([]datalog.Datom, error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer sqlTx.Rollback()

	var logged []datalog.Datom
	for _, d := range datoms {
		d.Tx = tx
		if !d.Added {
			n, err := deleteDatom(ctx, sqlTx, d)
			if err != nil {
				return nil, err
			}
			if n == 0 {
				continue
			}
			if err := logDatom(ctx, sqlTx, d); err != nil {
				return nil, err
			}
			logged = append(logged, d)
			continue
		}

		var exists int
		err := sqlTx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM datoms WHERE e = ? AND a = ? AND v = ? AND value_type_tag = ?`,
			int64(d.E), int64(d.A), planner.SQLValue(d.V), int(d.V.Type)).Scan(&exists)
		if err != nil {
			return nil, err
		}
		if exists > 0 {
			continue
		}

		if single != nil && single(d.A) {
			old, err := currentValues(ctx, sqlTx, d.E, d.A)
			if err != nil {
				return nil, err
			}
			for _, o := range old {
				o.Tx, o.Added = tx, false
				if _, err := deleteDatom(ctx, sqlTx, o); err != nil {
					return nil, err
				}
				if err := logDatom(ctx, sqlTx, o); err != nil {
					return nil, err
				}
				logged = append(logged, o)
			}
		}

		_, err = sqlTx.ExecContext(ctx,
			`INSERT INTO datoms (e, a, v, tx, value_type_tag) VALUES (?, ?, ?, ?, ?)`,
			int64(d.E), int64(d.A), planner.SQLValue(d.V), int64(tx), int(d.V.Type))
		if err != nil {
			return nil, err
		}
		if err := logDatom(ctx, sqlTx, d); err != nil {
			return nil, err
		}
		logged = append(logged, d)
	}

	if err := sqlTx.Commit(); err != nil {
		return nil, err
	}
	return logged, nil
}

func deleteDatom(ctx context.Context, sqlTx *sql.Tx, d datalog.Datom) (int64, error) {
	res, err := sqlTx.ExecContext(ctx,
		`DELETE FROM datoms WHERE e = ? AND a = ? AND v = ? AND value_type_tag = ?`,
		int64(d.E), int64(d.A), planner.SQLValue(d.V), int(d.V.Type))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func logDatom(ctx context.Context, sqlTx *sql.Tx, d datalog.Datom) error {
	added := 0
	if d.Added {
		added = 1
	}
	_, err := sqlTx.ExecContext(ctx,
		`INSERT INTO transactions (e, a, v, tx, added, value_type_tag) VALUES (?, ?, ?, ?, ?, ?)`,
		int64(d.E), int64(d.A), planner.SQLValue(d.V), int64(d.Tx), added, int(d.V.Type))
	return err
}

func currentValues(ctx context.Context, sqlTx *sql.Tx, e, a datalog.Entid) ([]datalog.Datom, error) {
	rows, err := sqlTx.QueryContext(ctx,
		`SELECT v, value_type_tag FROM datoms WHERE e = ? AND a = ?`, int64(e), int64(a))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []datalog.Datom
	for rows.Next() {
		var raw interface{}
		var tag int64
		if err := rows.Scan(&raw, &tag); err != nil {
			return nil, err
		}
		v, err := planner.ParseSQLValue(datalog.ValueType(tag), raw)
		if err != nil {
			return nil, err
		}
		out = append(out, datalog.Datom{E: e, A: a, V: v})
	}
	return out, rows.Err()
}

// Execute renders plan with params and runs it. Rows are decoded as they
// are read; the caller must Close the returned source.
func (s *Store) Execute(ctx context.Context, plan *planner.Plan, params map[query.Symbol]datalog.TypedValue) (projector.RowSource, error) {
	start := time.Now()
	text, args, err := plan.SQL(params)
	if err != nil {
		s.collector.AddError(annotations.ErrorQueryBinding, start, err)
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, text, args...)
	if err != nil {
		err = datalog.Wrap(datalog.ErrStorage, err, Backend)
		s.collector.AddError(annotations.ErrorBackend, start, err)
		return nil, err
	}

	if c := s.collector; c.Enabled() {
		data := c.GetDataMap()
		data["backend"] = Backend
		data["sql"] = text
		data["args"] = len(args)
		c.AddTiming(annotations.QueryExecuted, start, data)
	}
	return &sqlRows{rows: rows, width: len(plan.Columns)}, nil
}

// sqlRows reads value and tag column pairs into typed rows.
type sqlRows struct {
	rows  *sql.Rows
	width int
	cur   []datalog.TypedValue
	err   error
}

func (r *sqlRows) Next() bool {
	if r.err != nil || !r.rows.Next() {
		return false
	}
	raw := make([]interface{}, 2*r.width)
	dest := make([]interface{}, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := r.rows.Scan(dest...); err != nil {
		r.err = datalog.Wrap(datalog.ErrStorage, err, Backend)
		return false
	}

	row := make([]datalog.TypedValue, r.width)
	for i := range row {
		tag, ok := raw[2*i+1].(int64)
		if !ok {
			r.err = datalog.Internal("column %d has no type tag", i)
			return false
		}
		v, err := planner.ParseSQLValue(datalog.ValueType(tag), raw[2*i])
		if err != nil {
			r.err = datalog.Wrap(datalog.ErrStorage, err, Backend)
			return false
		}
		row[i] = v
	}
	r.cur = row
	return true
}

func (r *sqlRows) Row() []datalog.TypedValue { return r.cur }

func (r *sqlRows) Err() error {
	if r.err != nil {
		return r.err
	}
	if err := r.rows.Err(); err != nil {
		return datalog.Wrap(datalog.ErrStorage, err, Backend)
	}
	return nil
}

func (r *sqlRows) Close() error { return r.rows.Close() }
