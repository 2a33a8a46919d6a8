package storage

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/types"
)

// Relayer returns the committed state of a registered relayer, or
// ErrNotFound.
func (s *Storage) Relayer(addr common.Address) (*types.RelayerState, error) {
	return s.RelayerTx(s.db, addr)
}

// RelayerTx reads the relayer state of addr through r.
func (s *Storage) RelayerTx(r db.Reader, addr common.Address) (*types.RelayerState, error) {
	st := &types.RelayerState{}
	if err := getArtifact(r, relayerPrefix, addr.Bytes(), st); err != nil {
		return nil, err
	}
	return st, nil
}

// SetRelayerTx stages st in wTx. The caller must hold the relayer lock.
func (s *Storage) SetRelayerTx(wTx db.WriteTx, st *types.RelayerState) error {
	return setArtifact(wTx, relayerPrefix, st.Relayer.Bytes(), st)
}

// SetRelayer persists st in its own transaction.
func (s *Storage) SetRelayer(st *types.RelayerState) error {
	unlock := s.locks.Lock(RelayerLockKey(st.Relayer))
	defer unlock()
	return s.commitArtifact(relayerPrefix, st.Relayer.Bytes(), st)
}
