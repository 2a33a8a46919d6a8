// Package nullifier implements the chunked spent-nullifier registry. Each
// nullifier maps to one bit of a 256-bit chunk; bits are only ever set, so
// the set of spent nullifiers grows monotonically.
package nullifier

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/storage"
	"github.com/vocdoni/davinci-pool/types"
)

// ErrChunkExists is returned when creating a chunk that already exists.
var ErrChunkExists = errors.New("nullifier chunk already exists")

// Registry tracks spent nullifiers in chunks stored by index.
type Registry struct {
	st *storage.Storage
}

// New returns a registry backed by st.
func New(st *storage.Storage) *Registry {
	return &Registry{st: st}
}

// Position derives the chunk index and bit of a nullifier from its first 8
// bytes read as a little-endian integer.
func Position(n common.Hash) (chunk, bit uint64) {
	p := binary.LittleEndian.Uint64(n[:8])
	return p / types.ChunkSize, p % types.ChunkSize
}

// CreateChunk initializes an all-zero chunk at index. Creating an existing
// chunk fails with ErrChunkExists.
func (r *Registry) CreateChunk(index uint64) error {
	if err := r.st.CreateNullifierChunk(index); err != nil {
		if errors.Is(err, storage.ErrKeyAlreadyExists) {
			return fmt.Errorf("%w: %d", ErrChunkExists, index)
		}
		return err
	}
	return nil
}

// Lock takes the exclusive lock of a chunk. MarkIfUnused must run under it.
func (r *Registry) Lock(chunk uint64) (unlock func()) {
	return r.st.Locks().Lock(storage.ChunkLockKey(chunk))
}

// LockKey returns the key locking chunk, for callers combining it with
// other locks in a single KeyLocker call.
func LockKey(chunk uint64) string {
	return storage.ChunkLockKey(chunk)
}

// MarkIfUnused stages the spent flag of (chunk, bit) in wTx. A missing chunk,
// a chunk whose stored index differs from chunk, or a bit already set fail
// with types.ErrNullifierAlreadyUsed and stage nothing. The caller must hold
// the chunk lock until wTx is committed or discarded.
func (r *Registry) MarkIfUnused(wTx db.WriteTx, chunk, bit uint64) error {
	c, err := r.st.NullifierChunkTx(wTx, chunk)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: chunk %d not created", types.ErrNullifierAlreadyUsed, chunk)
		}
		return err
	}
	if c.Index != chunk {
		return fmt.Errorf("%w: chunk %d stores index %d", types.ErrNullifierAlreadyUsed, chunk, c.Index)
	}
	if c.IsSet(bit) {
		return types.ErrNullifierAlreadyUsed
	}
	c.Set(bit)
	return r.st.SetNullifierChunkTx(wTx, chunk, c)
}

// IsSpent reports whether n can no longer be withdrawn. Nullifiers whose
// chunk was never created report true.
func (r *Registry) IsSpent(n common.Hash) (bool, error) {
	chunk, bit := Position(n)
	c, err := r.st.NullifierChunk(chunk)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	return c.Index != chunk || c.IsSet(bit), nil
}

// Chunk returns the committed chunk at index.
func (r *Registry) Chunk(index uint64) (*types.NullifierChunk, error) {
	return r.st.NullifierChunk(index)
}

// Chunks returns the indexes of every created chunk.
func (r *Registry) Chunks() ([]uint64, error) {
	return r.st.NullifierChunks()
}
