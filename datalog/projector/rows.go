package projector

import (
	"github.com/wbrown/janus-algebra/datalog"
)

// RowSource is a forward-only stream of plan rows. Each row holds one
// value per plan column. A row is valid until the following call to Next.
type RowSource interface {
	Next() bool
	Row() []datalog.TypedValue
	Err() error
	Close() error
}

// SliceRows is a RowSource over materialized rows.
type SliceRows struct {
	rows [][]datalog.TypedValue
	pos  int
}

// NewSliceRows returns a RowSource yielding rows in order.
func NewSliceRows(rows [][]datalog.TypedValue) *SliceRows {
	return &SliceRows{rows: rows, pos: -1}
}

func (s *SliceRows) Next() bool {
	if s.pos+1 >= len(s.rows) {
		s.pos = len(s.rows)
		return false
	}
	s.pos++
	return true
}

func (s *SliceRows) Row() []datalog.TypedValue {
	if s.pos < 0 || s.pos >= len(s.rows) {
		return nil
	}
	return s.rows[s.pos]
}

func (s *SliceRows) Err() error   { return nil }
func (s *SliceRows) Close() error { return nil }

// cursor adapts a fetch function to the iterator protocol of coll and rel
// results. fetch returns nil at the end of input.
type cursor struct {
	fetch   func() ([]datalog.Binding, error)
	release func() error
	onDone  func(n int, err error)

	cur  []datalog.Binding
	err  error
	n    int
	done bool

	closeErr error
}

func newSliceCursor(rows [][]datalog.Binding) *cursor {
	i := 0
	return &cursor{fetch: func() ([]datalog.Binding, error) {
		if i >= len(rows) {
			return nil, nil
		}
		i++
		return rows[i-1], nil
	}}
}

func (c *cursor) next() bool {
	if c.done {
		return false
	}
	row, err := c.fetch()
	if err != nil || row == nil {
		c.err = err
		c.cur = nil
		c.finish()
		return false
	}
	c.cur = row
	c.n++
	return true
}

// finish releases the underlying rows once and reports the outcome.
func (c *cursor) finish() {
	if c.done {
		return
	}
	c.done = true
	if c.release != nil {
		c.closeErr = c.release()
		c.release = nil
	}
	if c.onDone != nil {
		c.onDone(c.n, c.err)
	}
}

func (c *cursor) close() error {
	c.finish()
	if c.closeErr != nil {
		return datalog.Wrap(datalog.ErrRowSource, c.closeErr, "close")
	}
	return nil
}
