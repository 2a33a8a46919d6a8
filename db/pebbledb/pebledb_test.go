package pebbledb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/db/internal/dbtest"
	"github.com/vocdoni/davinci-pool/db/prefixeddb"
)

func TestWriteTx(t *testing.T) {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)

	dbtest.TestWriteTx(t, database)
}

func TestIterate(t *testing.T) {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)

	dbtest.TestIterate(t, database)
}

func TestWriteTxApply(t *testing.T) {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)

	dbtest.TestWriteTxApply(t, database)
}

func TestWriteTxApplyPrefixed(t *testing.T) {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)

	prefix := []byte("one")
	dbWithPrefix := prefixeddb.NewPrefixedDatabase(database, prefix)

	dbtest.TestWriteTxApplyPrefixed(t, database, dbWithPrefix)
}

// NOTE: pebble.Batch doesn't detect conflicts, so dbtest.TestConcurrentWriteTx
// is not run here. Callers serialize writers on the keys they touch.

func TestReopenPersists(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()

	database, err := New(db.Options{Path: dir})
	c.Assert(err, qt.IsNil)

	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("nc/1"), []byte("chunk")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	c.Assert(database.Close(), qt.IsNil)

	database, err = New(db.Options{Path: dir})
	c.Assert(err, qt.IsNil)
	defer func() { c.Assert(database.Close(), qt.IsNil) }()

	v, err := database.Get([]byte("nc/1"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "chunk")
}

func TestClosedTx(t *testing.T) {
	c := qt.New(t)

	database, err := New(db.Options{Path: t.TempDir()})
	c.Assert(err, qt.IsNil)
	defer func() { c.Assert(database.Close(), qt.IsNil) }()

	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("key"), []byte("value")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	c.Assert(wTx.Set([]byte("key"), []byte("other")), qt.ErrorIs, db.ErrTxClosed)
	c.Assert(wTx.Commit(), qt.ErrorIs, db.ErrTxClosed)
	// Discard after commit is a no-op.
	wTx.Discard()

	v, err := database.Get([]byte("key"))
	c.Assert(err, qt.IsNil)
	c.Assert(string(v), qt.Equals, "value")
}
