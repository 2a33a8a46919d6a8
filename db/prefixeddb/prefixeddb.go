// Package prefixeddb namespaces a db.Database, db.Reader or db.WriteTx under
// a fixed key prefix.
package prefixeddb

import (
	"slices"

	"github.com/vocdoni/davinci-pool/db"
)

func prefixed(prefix, key []byte) []byte {
	return append(slices.Clip(prefix), key...)
}

// PrefixedReader reads keys under a prefix.
type PrefixedReader struct {
	prefix []byte
	reader db.Reader
}

var _ db.Reader = (*PrefixedReader)(nil)

// NewPrefixedReader returns a db.Reader that reads keys under prefix.
func NewPrefixedReader(reader db.Reader, prefix []byte) *PrefixedReader {
	return &PrefixedReader{prefix: prefix, reader: reader}
}

func (r *PrefixedReader) Get(key []byte) ([]byte, error) {
	return r.reader.Get(prefixed(r.prefix, key))
}

func (r *PrefixedReader) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return r.reader.Iterate(prefixed(r.prefix, prefix), callback)
}

// PrefixedWriteTx stages writes under a prefix.
type PrefixedWriteTx struct {
	prefix []byte
	tx     db.WriteTx
}

var _ db.WriteTx = (*PrefixedWriteTx)(nil)

// NewPrefixedWriteTx returns a db.WriteTx that writes keys under prefix.
func NewPrefixedWriteTx(tx db.WriteTx, prefix []byte) *PrefixedWriteTx {
	return &PrefixedWriteTx{prefix: prefix, tx: tx}
}

func (t *PrefixedWriteTx) Get(key []byte) ([]byte, error) {
	return t.tx.Get(prefixed(t.prefix, key))
}

func (t *PrefixedWriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return t.tx.Iterate(prefixed(t.prefix, prefix), callback)
}

func (t *PrefixedWriteTx) Set(key, value []byte) error {
	return t.tx.Set(prefixed(t.prefix, key), value)
}

func (t *PrefixedWriteTx) Delete(key []byte) error {
	return t.tx.Delete(prefixed(t.prefix, key))
}

func (t *PrefixedWriteTx) Apply(other db.WriteTx) error {
	if otherPrefixed, ok := other.(*PrefixedWriteTx); ok {
		return t.tx.Apply(otherPrefixed.tx)
	}
	return t.tx.Apply(other)
}

func (t *PrefixedWriteTx) Commit() error {
	return t.tx.Commit()
}

func (t *PrefixedWriteTx) Discard() {
	t.tx.Discard()
}

// Unwrap returns the underlying transaction.
func (t *PrefixedWriteTx) Unwrap() db.WriteTx {
	return t.tx
}

// PrefixedDatabase namespaces a whole database under a prefix.
type PrefixedDatabase struct {
	prefix []byte
	db     db.Database
}

var _ db.Database = (*PrefixedDatabase)(nil)

// NewPrefixedDatabase returns a db.Database whose keys live under prefix.
func NewPrefixedDatabase(database db.Database, prefix []byte) *PrefixedDatabase {
	return &PrefixedDatabase{prefix: prefix, db: database}
}

func (d *PrefixedDatabase) Get(key []byte) ([]byte, error) {
	return d.db.Get(prefixed(d.prefix, key))
}

func (d *PrefixedDatabase) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	return d.db.Iterate(prefixed(d.prefix, prefix), callback)
}

func (d *PrefixedDatabase) WriteTx() db.WriteTx {
	return NewPrefixedWriteTx(d.db.WriteTx(), d.prefix)
}

// Close closes the underlying database.
func (d *PrefixedDatabase) Close() error {
	return d.db.Close()
}

func (d *PrefixedDatabase) Compact() error {
	return d.db.Compact()
}
