// Package dbtest holds a conformance suite shared by every db.Database
// backend.
package dbtest

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-pool/db"
)

// TestWriteTx checks read-your-writes, commit visibility and discard.
func TestWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	_, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Set([]byte("a"), []byte("b")), qt.IsNil)
	v, err := wTx.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// not visible before commit
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)

	c.Assert(wTx.Commit(), qt.IsNil)
	wTx.Discard()

	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// discarded writes are dropped
	wTx = database.WriteTx()
	c.Assert(wTx.Set([]byte("a"), []byte("c")), qt.IsNil)
	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	_, err = wTx.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
	wTx.Discard()

	v, err = database.Get([]byte("a"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("b"))

	// delete
	wTx = database.WriteTx()
	c.Assert(wTx.Delete([]byte("a")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	_, err = database.Get([]byte("a"))
	c.Assert(err, qt.ErrorIs, db.ErrKeyNotFound)
}

// TestIterate checks prefix iteration order, prefix stripping and early stop.
func TestIterate(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	for i := 0; i < 10; i++ {
		c.Assert(wTx.Set([]byte(fmt.Sprintf("p/%02d", i)), []byte{byte(i)}), qt.IsNil)
	}
	c.Assert(wTx.Set([]byte("q/00"), []byte{0xff}), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	var keys []string
	err := database.Iterate([]byte("p/"), func(k, v []byte) bool {
		keys = append(keys, string(k))
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(keys, qt.HasLen, 10)
	c.Assert(keys[0], qt.Equals, "00")
	c.Assert(keys[9], qt.Equals, "09")

	count := 0
	err = database.Iterate([]byte("p/"), func(k, v []byte) bool {
		count++
		return count < 3
	})
	c.Assert(err, qt.IsNil)
	c.Assert(count, qt.Equals, 3)
}

// TestWriteTxApply checks that Apply stages the writes of another transaction.
func TestWriteTxApply(t *testing.T, database db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("a"), []byte("1")), qt.IsNil)

	other := database.WriteTx()
	c.Assert(other.Set([]byte("b"), []byte("2")), qt.IsNil)

	c.Assert(wTx.Apply(other), qt.IsNil)
	other.Discard()
	c.Assert(wTx.Commit(), qt.IsNil)

	v, err := database.Get([]byte("b"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("2"))
}

// TestWriteTxApplyPrefixed checks Apply of a prefixed transaction into the
// base database transaction.
func TestWriteTxApplyPrefixed(t *testing.T, database, prefixed db.Database) {
	c := qt.New(t)

	wTx := database.WriteTx()
	pTx := prefixed.WriteTx()
	c.Assert(pTx.Set([]byte("key"), []byte("value")), qt.IsNil)
	c.Assert(pTx.Commit(), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	v, err := prefixed.Get([]byte("key"))
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte("value"))

	found := false
	err = database.Iterate(nil, func(k, _ []byte) bool {
		if bytes.HasSuffix(k, []byte("key")) {
			found = true
		}
		return true
	})
	c.Assert(err, qt.IsNil)
	c.Assert(found, qt.IsTrue)
}

// TestConcurrentWriteTx checks that concurrent read-modify-write transactions
// on the same key are detected, so exactly one of them commits.
func TestConcurrentWriteTx(t *testing.T, database db.Database) {
	c := qt.New(t)

	key := []byte("counter")
	wTx := database.WriteTx()
	c.Assert(wTx.Set(key, []byte{0}), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	const n = 8
	txs := make([]db.WriteTx, n)
	for i := range txs {
		txs[i] = database.WriteTx()
		v, err := txs[i].Get(key)
		c.Assert(err, qt.IsNil)
		c.Assert(txs[i].Set(key, []byte{v[0] + 1}), qt.IsNil)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for _, tx := range txs {
		wg.Add(1)
		go func(tx db.WriteTx) {
			defer wg.Done()
			defer tx.Discard()
			if err := tx.Commit(); err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}(tx)
	}
	wg.Wait()
	c.Assert(committed, qt.Equals, 1)

	v, err := database.Get(key)
	c.Assert(err, qt.IsNil)
	c.Assert(v, qt.DeepEquals, []byte{1})
}
