package leveldb

import (
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/db/internal/dbtest"
	"github.com/vocdoni/davinci-pool/db/prefixeddb"
)

func newTestDB(t *testing.T) *LevelDB {
	database, err := New(db.Options{Path: t.TempDir()})
	qt.Assert(t, err, qt.IsNil)
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func TestWriteTx(t *testing.T) {
	dbtest.TestWriteTx(t, newTestDB(t))
}

func TestIterate(t *testing.T) {
	dbtest.TestIterate(t, newTestDB(t))
}

func TestWriteTxApply(t *testing.T) {
	dbtest.TestWriteTxApply(t, newTestDB(t))
}

func TestWriteTxApplyPrefixed(t *testing.T) {
	database := newTestDB(t)
	dbtest.TestWriteTxApplyPrefixed(t, database, prefixeddb.NewPrefixedDatabase(database, []byte("one")))
}

func TestIteratePendingWrites(t *testing.T) {
	c := qt.New(t)
	database := newTestDB(t)

	wTx := database.WriteTx()
	c.Assert(wTx.Set([]byte("p/a"), []byte("1")), qt.IsNil)
	c.Assert(wTx.Set([]byte("p/b"), []byte("2")), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	wTx = database.WriteTx()
	defer wTx.Discard()
	c.Assert(wTx.Delete([]byte("p/a")), qt.IsNil)
	c.Assert(wTx.Set([]byte("p/c"), []byte("3")), qt.IsNil)

	var keys []string
	c.Assert(wTx.Iterate([]byte("p/"), func(k, _ []byte) bool {
		keys = append(keys, string(k))
		return true
	}), qt.IsNil)
	c.Assert(keys, qt.DeepEquals, []string{"b", "c"})
}
