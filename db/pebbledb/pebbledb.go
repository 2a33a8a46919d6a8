package pebbledb

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/vocdoni/davinci-pool/db"
)

// PebbleDB implements db.Database on top of a pebble instance.
type PebbleDB struct {
	db *pebble.DB
}

// Ensure that PebbleDB implements the db.Database interface.
var _ db.Database = (*PebbleDB)(nil)

// New opens (or creates) a pebble database at opts.Path.
func New(opts db.Options) (*PebbleDB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("pebble: missing database path")
	}
	if err := os.MkdirAll(opts.Path, os.ModePerm); err != nil {
		return nil, fmt.Errorf("pebble: create dir: %w", err)
	}
	pdb, err := pebble.Open(opts.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble: open: %w", err)
	}
	return &PebbleDB{db: pdb}, nil
}

func (d *PebbleDB) Close() error {
	return d.db.Close()
}

func (d *PebbleDB) Compact() error {
	iter, err := d.db.NewIter(nil)
	if err != nil {
		return err
	}
	var first, last []byte
	if iter.First() {
		first = bytes.Clone(iter.Key())
	}
	if iter.Last() {
		last = bytes.Clone(iter.Key())
	}
	if err := iter.Close(); err != nil {
		return err
	}
	if first == nil || last == nil {
		return nil
	}
	return d.db.Compact(first, append(last, 0xff), true)
}

func (d *PebbleDB) Get(key []byte) ([]byte, error) {
	return get(d.db, key)
}

func (d *PebbleDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter, err := d.db.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	return iterate(iter, prefix, callback)
}

func (d *PebbleDB) WriteTx() db.WriteTx {
	return &WriteTx{batch: d.db.NewIndexedBatch()}
}

// WriteTx wraps an indexed pebble batch. Pebble batches do not detect
// conflicts: concurrent writers must be serialized by the caller.
type WriteTx struct {
	batch  *pebble.Batch
	closed bool
}

// Ensure that WriteTx implements the db.WriteTx interface.
var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	if tx.closed {
		return nil, db.ErrTxClosed
	}
	return get(tx.batch, key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	iter, err := tx.batch.NewIter(prefixIterOptions(prefix))
	if err != nil {
		return err
	}
	return iterate(iter, prefix, callback)
}

func (tx *WriteTx) Set(key, value []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	return tx.batch.Set(key, value, nil)
}

func (tx *WriteTx) Delete(key []byte) error {
	if tx.closed {
		return db.ErrTxClosed
	}
	return tx.batch.Delete(key, nil)
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
	if otherPebble, ok := other.(*WriteTx); ok {
		return tx.batch.Apply(otherPebble.batch, nil)
	}
	var applyErr error
	if err := other.Iterate(nil, func(k, v []byte) bool {
		applyErr = tx.Set(k, v)
		return applyErr == nil
	}); err != nil {
		return err
	}
	return applyErr
}

func (tx *WriteTx) Commit() error {
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.closed = true
	err := tx.batch.Commit(pebble.Sync)
	if cerr := tx.batch.Close(); err == nil {
		err = cerr
	}
	return err
}

func (tx *WriteTx) Discard() {
	if tx.closed {
		return
	}
	tx.closed = true
	_ = tx.batch.Close()
}

func get(r pebble.Reader, key []byte) ([]byte, error) {
	value, closer, err := r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = closer.Close() }()
	return bytes.Clone(value), nil
}

func iterate(iter *pebble.Iterator, prefix []byte, callback func(key, value []byte) bool) (err error) {
	defer func() {
		if cerr := iter.Close(); err == nil {
			err = cerr
		}
	}()
	for iter.First(); iter.Valid(); iter.Next() {
		if !callback(iter.Key()[len(prefix):], iter.Value()) {
			break
		}
	}
	return iter.Error()
}

// prefixIterOptions returns bounds selecting every key that starts with
// prefix.
func prefixIterOptions(prefix []byte) *pebble.IterOptions {
	return &pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: upperBound(prefix),
	}
}

// upperBound returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}
