package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/types"
)

// Nonce returns the last nonce accepted from signer, zero if none.
func (s *Storage) Nonce(signer common.Address) (uint64, error) {
	return s.NonceTx(s.db, signer)
}

// NonceTx reads the last nonce of signer through r.
func (s *Storage) NonceTx(r db.Reader, signer common.Address) (uint64, error) {
	var nonce uint64
	if err := getArtifact(r, noncePrefix, signer.Bytes(), &nonce); err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return nonce, nil
}

// UseNonceTx stages nonce as the last one used by signer. Nonces must be
// strictly increasing per signer, so a request can be accepted only once
// and never after a newer one. The caller must hold NonceLockKey(signer).
func (s *Storage) UseNonceTx(wTx db.WriteTx, signer common.Address, nonce uint64) error {
	last, err := s.NonceTx(wTx, signer)
	if err != nil {
		return err
	}
	if nonce <= last {
		return fmt.Errorf("%w: %d, last accepted %d", types.ErrNonceUsed, nonce, last)
	}
	return setArtifact(wTx, noncePrefix, signer.Bytes(), nonce)
}

// UseNonce consumes nonce for signer in its own transaction.
func (s *Storage) UseNonce(signer common.Address, nonce uint64) error {
	unlock := s.locks.Lock(NonceLockKey(signer))
	defer unlock()

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := s.UseNonceTx(wTx, signer, nonce); err != nil {
		return err
	}
	return wTx.Commit()
}
