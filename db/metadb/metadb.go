// Package metadb instantiates a db.Database backend by type name.
package metadb

import (
	"fmt"
	"os"

	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/db/inmemory"
	"github.com/vocdoni/davinci-pool/db/leveldb"
	"github.com/vocdoni/davinci-pool/db/pebbledb"
)

// New returns a database of the given type stored under dir. The directory is
// ignored for db.TypeInMem.
func New(typ, dir string) (db.Database, error) {
	opts := db.Options{Path: dir}
	switch typ {
	case db.TypePebble:
		return pebbledb.New(opts)
	case db.TypeLevelDB:
		return leveldb.New(opts)
	case db.TypeInMem:
		return inmemory.New(opts)
	default:
		return nil, fmt.Errorf("invalid db type %q, available types: %q %q %q",
			typ, db.TypePebble, db.TypeLevelDB, db.TypeInMem)
	}
}

// ForTest returns the backend selected by $DAVINCI_DB_TYPE (pebble by
// default) rooted in a temporary directory that is removed on test cleanup.
func ForTest(t interface {
	TempDir() string
	Fatalf(format string, args ...any)
}) db.Database {
	typ := os.Getenv("DAVINCI_DB_TYPE")
	if typ == "" {
		typ = db.TypePebble
	}
	database, err := New(typ, t.TempDir())
	if err != nil {
		t.Fatalf("cannot create test database: %v", err)
	}
	return database
}
