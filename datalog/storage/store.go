// Package storage is a badger-backed datom store with a reference executor
// for planner plans, a puller, and a Database that runs the whole query
// pipeline against them.
package storage

import (
	"github.com/wbrown/janus-algebra/datalog"
)

// IndexType represents different index orderings
type IndexType uint8

const (
	EAVT  IndexType = iota + 1 // Entity-Attribute-Value-Tx
	AEVT                       // Attribute-Entity-Value-Tx
	TXLOG                      // Tx-Entity-Attribute-Added-Value, assertions and retractions
)

func (i IndexType) String() string {
	switch i {
	case EAVT:
		return "EAVT"
	case AEVT:
		return "AEVT"
	case TXLOG:
		return "TXLOG"
	default:
		return "unknown"
	}
}

// Iterator provides sequential access to datoms
type Iterator interface {
	Next() bool
	Datom() (datalog.Datom, error)
	Close() error
}
