package projector

import (
	"github.com/wbrown/janus-algebra/datalog"
)

// Result is the output of a projection: ScalarResult, TupleResult,
// *CollResult or *RelResult.
type Result interface {
	// Columns names the projected elements in find order.
	Columns() []string
	result()
}

// ScalarResult is the single value of a [:find ?x .] query.
type ScalarResult struct {
	Value   datalog.Binding
	columns []string
}

// TupleResult is the single row of a [:find [?x ?y]] query.
type TupleResult struct {
	Values  []datalog.Binding
	columns []string
}

// CollResult iterates the values of a [:find [?x ...]] query. Values
// yielded before a failure stay valid; Err reports the failure once Next
// returns false.
type CollResult struct {
	c       *cursor
	columns []string
}

// RelResult iterates the rows of a [:find ?x ?y] query, with the same
// failure contract as CollResult.
type RelResult struct {
	c       *cursor
	columns []string
}

func (ScalarResult) result() {}
func (TupleResult) result()  {}
func (*CollResult) result()  {}
func (*RelResult) result()   {}

func (r ScalarResult) Columns() []string { return r.columns }
func (r TupleResult) Columns() []string  { return r.columns }
func (r *CollResult) Columns() []string  { return r.columns }
func (r *RelResult) Columns() []string   { return r.columns }

// Next advances to the next value.
func (r *CollResult) Next() bool { return r.c.next() }

// Value returns the current value.
func (r *CollResult) Value() datalog.Binding {
	if r.c.cur == nil {
		return nil
	}
	return r.c.cur[0]
}

// Err returns the error that stopped iteration, if any.
func (r *CollResult) Err() error { return r.c.err }

// Close releases the underlying rows. It is safe to call more than once.
func (r *CollResult) Close() error { return r.c.close() }

// All drains the remaining values and closes the result.
func (r *CollResult) All() ([]datalog.Binding, error) {
	var out []datalog.Binding
	for r.Next() {
		out = append(out, r.Value())
	}
	if err := r.Err(); err != nil {
		r.Close()
		return out, err
	}
	return out, r.Close()
}

// Next advances to the next row.
func (r *RelResult) Next() bool { return r.c.next() }

// Row returns the current row, one binding per find element.
func (r *RelResult) Row() []datalog.Binding { return r.c.cur }

// Err returns the error that stopped iteration, if any.
func (r *RelResult) Err() error { return r.c.err }

// Close releases the underlying rows. It is safe to call more than once.
func (r *RelResult) Close() error { return r.c.close() }

// All drains the remaining rows and closes the result.
func (r *RelResult) All() ([][]datalog.Binding, error) {
	var out [][]datalog.Binding
	for r.Next() {
		out = append(out, r.Row())
	}
	if err := r.Err(); err != nil {
		r.Close()
		return out, err
	}
	return out, r.Close()
}
