// Package db defines the key-value database abstraction used by the pool
// storage. Backends live in subpackages (pebbledb, leveldb, inmemory) and are
// instantiated through metadb.
package db

import "errors"

const (
	// TypePebble is the default persistent backend.
	TypePebble = "pebble"
	// TypeLevelDB is the goleveldb persistent backend.
	TypeLevelDB = "leveldb"
	// TypeInMem is the ephemeral in-memory backend.
	TypeInMem = "inmemory"
)

var (
	// ErrKeyNotFound is returned by Get when the key does not exist.
	ErrKeyNotFound = errors.New("key not found")
	// ErrConflict is returned by Commit when the transaction read a key that
	// was modified by another committed transaction.
	ErrConflict = errors.New("conflict on commit")
	// ErrTxClosed is returned when a committed or discarded transaction is used.
	ErrTxClosed = errors.New("transaction already committed or discarded")
)

// Options holds the backend options.
type Options struct {
	Path string
}

// Reader is the read-only view of a database or transaction.
type Reader interface {
	// Get returns a copy of the value stored under key, or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)
	// Iterate calls callback for every key with the given prefix, in
	// lexicographic order, until callback returns false. Keys are passed
	// with the prefix stripped; keys and values must not be retained.
	Iterate(prefix []byte, callback func(key, value []byte) bool) error
}

// WriteTx is a set of staged writes that become visible atomically on Commit.
// Reads inside the transaction observe its own pending writes.
type WriteTx interface {
	Reader
	Set(key, value []byte) error
	Delete(key []byte) error
	// Apply stages every key of other into this transaction.
	Apply(other WriteTx) error
	Commit() error
	// Discard drops all pending writes. It is safe to call after Commit.
	Discard()
}

// Database is a key-value store supporting atomic write transactions.
type Database interface {
	Reader
	WriteTx() WriteTx
	Close() error
	Compact() error
}
