package storage

import (
	"encoding/binary"

	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/types"
)

// NullifierChunk returns the committed chunk stored at index, or ErrNotFound.
func (s *Storage) NullifierChunk(index uint64) (*types.NullifierChunk, error) {
	return s.NullifierChunkTx(s.db, index)
}

// NullifierChunkTx reads the chunk at index through r.
func (s *Storage) NullifierChunkTx(r db.Reader, index uint64) (*types.NullifierChunk, error) {
	chunk := &types.NullifierChunk{}
	if err := getArtifact(r, nullifierChunkPrefix, chunkKey(index), chunk); err != nil {
		return nil, err
	}
	return chunk, nil
}

// SetNullifierChunkTx stages chunk under index in wTx. The stored Index field
// is written as given, so a record whose Index differs from its key can only
// come from outside this package. The caller must hold the chunk lock.
func (s *Storage) SetNullifierChunkTx(wTx db.WriteTx, index uint64, chunk *types.NullifierChunk) error {
	return setArtifact(wTx, nullifierChunkPrefix, chunkKey(index), chunk)
}

// CreateNullifierChunk stores an all-zero chunk at index. It returns
// ErrKeyAlreadyExists if the chunk exists, so spent bits are never reset.
func (s *Storage) CreateNullifierChunk(index uint64) error {
	unlock := s.locks.Lock(ChunkLockKey(index))
	defer unlock()

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if _, err := s.NullifierChunkTx(wTx, index); err == nil {
		return ErrKeyAlreadyExists
	} else if err != ErrNotFound {
		return err
	}
	if err := s.SetNullifierChunkTx(wTx, index, &types.NullifierChunk{Index: index}); err != nil {
		return err
	}
	return wTx.Commit()
}

// NullifierChunks returns the indexes of every created chunk in ascending
// order.
func (s *Storage) NullifierChunks() ([]uint64, error) {
	var indexes []uint64
	err := listArtifacts(s.db, nullifierChunkPrefix, func(key, _ []byte) error {
		if len(key) == 8 {
			indexes = append(indexes, binary.BigEndian.Uint64(key))
		}
		return nil
	})
	return indexes, err
}
