// Package state holds the commitment root of the pool. Deposits overwrite
// the root with the deposited commitment instead of inserting into a tree,
// so the root is always the last commitment accepted.
package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/access"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/storage"
	"github.com/vocdoni/davinci-pool/types"
)

// State reads and writes the pool root.
type State struct {
	st     *storage.Storage
	access *access.Control
}

// New returns the pool state stored in st, gated by ac for admin updates.
func New(st *storage.Storage, ac *access.Control) *State {
	return &State{st: st, access: ac}
}

// LockKey is the key serializing root writers.
func LockKey() string {
	return storage.RootLockKey
}

// Root returns the committed root. A pool without deposits has the zero
// root.
func (s *State) Root() (common.Hash, error) {
	ps, err := s.st.PoolState()
	if err != nil {
		return common.Hash{}, err
	}
	return ps.Root, nil
}

// UpdateRoot replaces the root. Only the pool authority may call it.
func (s *State) UpdateRoot(caller common.Address, root common.Hash) error {
	if err := s.access.Authorize(caller); err != nil {
		return err
	}
	unlock := s.st.Locks().Lock(LockKey())
	defer unlock()

	wTx := s.st.WriteTx()
	defer wTx.Discard()
	if err := s.SetRootTx(wTx, root); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	log.Infow("pool root updated", "root", root.Hex())
	return nil
}

// SetRootTx stages root in wTx. The caller must hold LockKey until wTx is
// committed or discarded.
func (s *State) SetRootTx(wTx db.WriteTx, root common.Hash) error {
	return s.st.SetPoolStateTx(wTx, &types.PoolState{Root: root})
}
