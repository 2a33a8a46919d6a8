/*
Package storage provides the persistent keyed store of the privacy pool.

# Storage Organization

Every record lives in a prefixed namespace of a single key-value database, so
that one write transaction can update several of them atomically:

  - cfg/  : singleton → PoolConfig (authority, custody, deny-list, verifier policy, pause flag)
  - root/ : singleton → PoolState (current commitment root)
  - nc/   : chunk index (uint64, big endian) → NullifierChunk (256-bit spent bitmap)
  - bal/  : address → uint64 balance of the in-process token ledger
  - evc/  : uuid v7 → CommitmentEvent (time ordered)
  - evs/  : nullifier → SettlementEvent
  - rl/   : relayer address → RelayerState
  - nn/   : signer address → last nonce accepted from a signed request

Records are CBOR encoded with deterministic options. Write transactions are
not conflict-checked by every backend, so writers serialize on the keys they
touch through the KeyLocker returned by Locks.
*/
package storage

import (
	"errors"
	"fmt"

	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/db/prefixeddb"
	"github.com/vocdoni/davinci-pool/log"
)

var (
	ErrKeyAlreadyExists = errors.New("key already exists")
	ErrNotFound         = errors.New("not found")

	// Prefixes
	poolConfigPrefix      = []byte("cfg/")
	poolStatePrefix       = []byte("root/")
	nullifierChunkPrefix  = []byte("nc/")
	balancePrefix         = []byte("bal/")
	commitmentEventPrefix = []byte("evc/")
	settlementEventPrefix = []byte("evs/")
	relayerPrefix         = []byte("rl/")
	noncePrefix           = []byte("nn/")

	singletonKey = []byte{0}
)

// Storage manages the pool records on top of a db.Database.
type Storage struct {
	db    db.Database
	locks *KeyLocker
}

// New creates a new Storage instance.
func New(database db.Database) *Storage {
	return &Storage{
		db:    database,
		locks: NewKeyLocker(),
	}
}

// Locks returns the key locker shared by every writer of this storage.
func (s *Storage) Locks() *KeyLocker {
	return s.locks
}

// WriteTx opens a write transaction on the underlying database. The caller
// must hold the locks of every record it is going to modify.
func (s *Storage) WriteTx() db.WriteTx {
	return s.db.WriteTx()
}

// Close closes the storage.
func (s *Storage) Close() {
	if err := s.db.Close(); err != nil {
		log.Errorw(err, "failed to close storage")
	}
}

// getArtifact reads the record stored under prefix+key from r and decodes it
// into out. It returns ErrNotFound if the key does not exist.
func getArtifact(r db.Reader, prefix, key []byte, out any) error {
	data, err := prefixeddb.NewPrefixedReader(r, prefix).Get(key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return ErrNotFound
		}
		return err
	}
	if err := DecodeArtifact(data, out); err != nil {
		return fmt.Errorf("could not decode artifact: %w", err)
	}
	return nil
}

// setArtifact stages the encoded artifact under prefix+key in wTx.
func setArtifact(wTx db.WriteTx, prefix, key []byte, artifact any) error {
	data, err := EncodeArtifact(artifact)
	if err != nil {
		return err
	}
	return prefixeddb.NewPrefixedWriteTx(wTx, prefix).Set(key, data)
}

// commitArtifact stores a single artifact in its own transaction.
func (s *Storage) commitArtifact(prefix, key []byte, artifact any) error {
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := setArtifact(wTx, prefix, key, artifact); err != nil {
		return err
	}
	return wTx.Commit()
}

// listArtifacts decodes every record under prefix, in key order, calling
// decode for each one. Iteration stops at the first decode error.
func listArtifacts(r db.Reader, prefix []byte, decode func(key, data []byte) error) error {
	var decodeErr error
	if err := prefixeddb.NewPrefixedReader(r, prefix).Iterate(nil, func(k, v []byte) bool {
		decodeErr = decode(k, v)
		return decodeErr == nil
	}); err != nil {
		return err
	}
	return decodeErr
}
