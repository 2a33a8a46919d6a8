package leveldb

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
	"github.com/vocdoni/davinci-pool/db"
)

// LevelDB implements db.Database on top of goleveldb.
type LevelDB struct {
	db *leveldb.DB
}

// Ensure that LevelDB implements the db.Database interface.
var _ db.Database = (*LevelDB)(nil)

// New opens (or creates) a goleveldb database at opts.Path.
func New(opts db.Options) (*LevelDB, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("leveldb: missing database path")
	}
	ldb, err := leveldb.OpenFile(opts.Path, &opt.Options{})
	if err != nil {
		return nil, fmt.Errorf("leveldb: open: %w", err)
	}
	return &LevelDB{db: ldb}, nil
}

func (d *LevelDB) Close() error {
	return d.db.Close()
}

func (d *LevelDB) Compact() error {
	return d.db.CompactRange(util.Range{})
}

func (d *LevelDB) Get(key []byte) ([]byte, error) {
	v, err := d.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, db.ErrKeyNotFound
	}
	return v, err
}

func (d *LevelDB) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	iter := d.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		if !callback(iter.Key()[len(prefix):], iter.Value()) {
			break
		}
	}
	return iter.Error()
}

func (d *LevelDB) WriteTx() db.WriteTx {
	return &WriteTx{
		db:      d,
		batch:   new(leveldb.Batch),
		pending: make(map[string]*[]byte),
	}
}

// WriteTx buffers writes in a leveldb.Batch, keeping an index of pending
// values so reads observe them. Like pebble batches, it does not detect
// conflicts.
type WriteTx struct {
	db      *LevelDB
	mu      sync.Mutex
	batch   *leveldb.Batch
	pending map[string]*[]byte
	closed  bool
}

// Ensure that WriteTx implements the db.WriteTx interface.
var _ db.WriteTx = (*WriteTx)(nil)

func (tx *WriteTx) Get(key []byte) ([]byte, error) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return nil, db.ErrTxClosed
	}
	if v, ok := tx.pending[string(key)]; ok {
		if v == nil {
			return nil, db.ErrKeyNotFound
		}
		return bytes.Clone(*v), nil
	}
	return tx.db.Get(key)
}

func (tx *WriteTx) Iterate(prefix []byte, callback func(key, value []byte) bool) error {
	tx.mu.Lock()
	if tx.closed {
		tx.mu.Unlock()
		return db.ErrTxClosed
	}
	entries := make(map[string][]byte)
	if err := tx.db.Iterate(prefix, func(k, v []byte) bool {
		entries[string(prefix)+string(k)] = bytes.Clone(v)
		return true
	}); err != nil {
		tx.mu.Unlock()
		return err
	}
	for k, v := range tx.pending {
		if !bytes.HasPrefix([]byte(k), prefix) {
			continue
		}
		if v == nil {
			delete(entries, k)
			continue
		}
		entries[k] = bytes.Clone(*v)
	}
	tx.mu.Unlock()

	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if !callback([]byte(k)[len(prefix):], entries[k]) {
			break
		}
	}
	return nil
}

func (tx *WriteTx) Set(key, value []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return db.ErrTxClosed
	}
	v := bytes.Clone(value)
	tx.pending[string(key)] = &v
	tx.batch.Put(key, value)
	return nil
}

func (tx *WriteTx) Delete(key []byte) error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.pending[string(key)] = nil
	tx.batch.Delete(key)
	return nil
}

func (tx *WriteTx) Apply(other db.WriteTx) error {
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
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if tx.closed {
		return db.ErrTxClosed
	}
	tx.closed = true
	return tx.db.db.Write(tx.batch, &opt.WriteOptions{Sync: true})
}

func (tx *WriteTx) Discard() {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.closed = true
	tx.batch.Reset()
	tx.pending = map[string]*[]byte{}
}
