package storage

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/db"
)

// Balance returns the committed ledger balance of addr. Unknown addresses
// hold zero.
func (s *Storage) Balance(addr common.Address) (uint64, error) {
	return s.BalanceTx(s.db, addr)
}

// BalanceTx reads the balance of addr through r.
func (s *Storage) BalanceTx(r db.Reader, addr common.Address) (uint64, error) {
	var amount uint64
	if err := getArtifact(r, balancePrefix, addr.Bytes(), &amount); err != nil {
		if err == ErrNotFound {
			return 0, nil
		}
		return 0, err
	}
	return amount, nil
}

// SetBalanceTx stages the balance of addr in wTx. The caller must hold the
// balance lock of addr.
func (s *Storage) SetBalanceTx(wTx db.WriteTx, addr common.Address, amount uint64) error {
	return setArtifact(wTx, balancePrefix, addr.Bytes(), amount)
}
