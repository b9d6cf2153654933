package storage

import (
	"bytes"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/wbrown/janus-algebra/datalog"
)

// BadgerStore keeps the current datoms under EAVT and AEVT and every
// assertion and retraction under TXLOG.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens a store at path. An empty path opens an in-memory
// store.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil // Disable BadgerDB logs

	// Keys carry the whole datom; values stay empty.
	opts.MemTableSize = 64 << 20
	opts.NumCompactors = 2
	opts.ValueThreshold = 1 << 10

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Close closes the store
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// Write applies one transaction. Datoms are stamped with tx. Assertions of
// datoms already present and retractions of absent ones are dropped. For
// attributes where single reports true an assertion first retracts the
// entity's other values. Write returns the datoms added to the log.
func (s *BadgerStore) Write(tx datalog.Entid, datoms []datalog.Datom, single func(a datalog.Entid) bool) ([]datalog.Datom, error) {
	var logged []datalog.Datom
	err := s.db.Update(func(txn *badger.Txn) error {
		logged = logged[:0]
		for _, d := range datoms {
			d.Tx = tx
			current, err := scanPrefix(txn, EncodePrefix(EAVT, []datalog.Entid{d.E, d.A}, nil))
			if err != nil {
				return err
			}

			var present *datalog.Datom
			for i := range current {
				if current[i].V.Equal(d.V) {
					present = &current[i]
				}
			}

			if !d.Added {
				if present == nil {
					continue
				}
				if err := retractDatom(txn, *present, tx); err != nil {
					return err
				}
				logged = append(logged, d)
				continue
			}

			if present != nil {
				continue
			}
			if single != nil && single(d.A) {
				for _, old := range current {
					if err := retractDatom(txn, old, tx); err != nil {
						return err
					}
					old.Tx, old.Added = tx, false
					logged = append(logged, old)
				}
			}
			if err := assertDatom(txn, d); err != nil {
				return err
			}
			logged = append(logged, d)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return logged, nil
}

// assertDatom adds a single datom to all indices
func assertDatom(txn *badger.Txn, d datalog.Datom) error {
	d.Added = true
	for _, idx := range []IndexType{EAVT, AEVT, TXLOG} {
		if err := txn.Set(EncodeKey(idx, d), nil); err != nil {
			return fmt.Errorf("failed to write to %v index: %w", idx, err)
		}
	}
	return nil
}

// retractDatom removes a stored datom from the current indices and logs
// its retraction in tx.
func retractDatom(txn *badger.Txn, d datalog.Datom, tx datalog.Entid) error {
	for _, idx := range []IndexType{EAVT, AEVT} {
		if err := txn.Delete(EncodeKey(idx, d)); err != nil {
			return fmt.Errorf("failed to delete from %v index: %w", idx, err)
		}
	}
	d.Tx, d.Added = tx, false
	if err := txn.Set(EncodeKey(TXLOG, d), nil); err != nil {
		return fmt.Errorf("failed to write to %v index: %w", TXLOG, err)
	}
	return nil
}

// scanPrefix reads every datom under prefix.
func scanPrefix(txn *badger.Txn, prefix []byte) ([]datalog.Datom, error) {
	it := newBadgerIterator(txn, prefix)
	defer it.Close()

	var out []datalog.Datom
	for it.Next() {
		d, err := it.Datom()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// LastTx returns the highest transaction id in the log, or 0.
func (s *BadgerStore) LastTx() (datalog.Entid, error) {
	var last datalog.Entid
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		prefix := []byte{byte(TXLOG)}
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		_, end := EncodePrefixRange(prefix)
		it.Seek(end)
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		d, err := DecodeKey(it.Item().Key())
		if err != nil {
			return err
		}
		last = d.Tx
		return nil
	})
	return last, err
}

// Scan returns an iterator over the datoms under prefix in a snapshot of
// its own. Close releases the snapshot.
func (s *BadgerStore) Scan(prefix []byte) Iterator {
	txn := s.db.NewTransaction(false)
	it := newBadgerIterator(txn, prefix)
	it.owned = true
	return it
}

// Snapshot is a consistent read view of the store.
type Snapshot struct {
	txn *badger.Txn
}

// Snapshot opens a read view. Callers must Discard it.
func (s *BadgerStore) Snapshot() *Snapshot {
	return &Snapshot{txn: s.db.NewTransaction(false)}
}

// Scan iterates the datoms under prefix. Several scans may be open at once.
func (s *Snapshot) Scan(prefix []byte) Iterator {
	return newBadgerIterator(s.txn, prefix)
}

// Discard releases the snapshot.
func (s *Snapshot) Discard() {
	s.txn.Discard()
}

// CountKeys counts the keys under prefix without decoding them.
func (s *BadgerStore) CountKeys(prefix []byte) (int64, error) {
	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // KEY ONLY - no values!
		opts.PrefetchSize = 10000
		it := txn.NewIterator(opts)
		defer it.Close()

		start, end := EncodePrefixRange(prefix)
		for it.Seek(start); it.Valid(); it.Next() {
			if end != nil && bytes.Compare(it.Item().Key(), end) >= 0 {
				break
			}
			count++
		}
		return nil
	})
	return count, err
}

// BadgerIterator implements Iterator for BadgerDB
type BadgerIterator struct {
	txn   *badger.Txn
	it    *badger.Iterator
	start []byte
	end   []byte
	valid bool
	owned bool // the iterator discards txn on Close
}

func newBadgerIterator(txn *badger.Txn, prefix []byte) *BadgerIterator {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false // datoms are decoded from keys
	opts.PrefetchSize = 1000
	opts.Prefix = prefix

	start, end := EncodePrefixRange(prefix)
	return &BadgerIterator{
		txn:   txn,
		it:    txn.NewIterator(opts),
		start: start,
		end:   end,
	}
}

// Next advances the iterator
func (i *BadgerIterator) Next() bool {
	if !i.valid {
		// First call - seek to start
		i.it.Seek(i.start)
		i.valid = true
	} else {
		i.it.Next()
	}

	if !i.it.Valid() {
		return false
	}
	if i.end != nil && bytes.Compare(i.it.Item().Key(), i.end) >= 0 {
		return false
	}
	return true
}

// Datom decodes the current key.
func (i *BadgerIterator) Datom() (datalog.Datom, error) {
	return DecodeKey(i.it.Item().Key())
}

// Close closes the iterator
func (i *BadgerIterator) Close() error {
	i.it.Close()
	if i.owned {
		i.txn.Discard()
	}
	return nil
}
