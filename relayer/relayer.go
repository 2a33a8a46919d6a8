// Package relayer keeps the withdrawal budgets of registered relayers. A
// withdrawal submitted through a relayer consumes one unit of its budget
// inside the settlement transaction, so a failed settlement leaves the
// budget untouched.
package relayer

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/access"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/storage"
	"github.com/vocdoni/davinci-pool/types"
)

var (
	ErrRelayerNotRegistered = errors.New("relayer not registered")
	ErrRelayerExists        = errors.New("relayer already registered")
	ErrRelayerRateLimited   = errors.New("relayer rate limit exceeded")
	ErrInvalidLimits        = errors.New("invalid relayer limits")
)

// Registry manages relayer states.
type Registry struct {
	st     *storage.Storage
	access *access.Control
	now    func() time.Time
}

// New returns a relayer registry stored in st, gated by ac.
func New(st *storage.Storage, ac *access.Control) *Registry {
	return &Registry{st: st, access: ac, now: time.Now}
}

// LockKey is the key serializing writers of a relayer state.
func LockKey(relayer common.Address) string {
	return storage.RelayerLockKey(relayer)
}

// InitRelayer registers relayer with a budget of limit withdrawals per
// window. Only the pool authority may call it, and only once per relayer.
func (r *Registry) InitRelayer(caller, relayer common.Address, limit uint64, window time.Duration) error {
	if err := r.access.Authorize(caller); err != nil {
		return err
	}
	if relayer == (common.Address{}) {
		return fmt.Errorf("%w: zero relayer address", ErrInvalidLimits)
	}
	if limit == 0 || window < time.Second {
		return fmt.Errorf("%w: limit %d, window %s", ErrInvalidLimits, limit, window)
	}
	unlock := r.st.Locks().Lock(LockKey(relayer))
	defer unlock()

	wTx := r.st.WriteTx()
	defer wTx.Discard()
	if _, err := r.st.RelayerTx(wTx, relayer); err == nil {
		return fmt.Errorf("%w: %s", ErrRelayerExists, relayer.Hex())
	} else if !errors.Is(err, storage.ErrNotFound) {
		return err
	}
	if err := r.st.SetRelayerTx(wTx, &types.RelayerState{
		Relayer: relayer,
		Limit:   limit,
		Window:  window,
	}); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	log.Infow("relayer registered", "relayer", relayer.Hex(), "limit", limit, "window", window.String())
	return nil
}

// Relayer returns the committed state of relayer.
func (r *Registry) Relayer(relayer common.Address) (*types.RelayerState, error) {
	rs, err := r.st.Relayer(relayer)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRelayerNotRegistered, relayer.Hex())
	}
	return rs, err
}

// ConsumeTx charges one withdrawal to relayer in wTx. The caller must hold
// LockKey(relayer) until wTx is committed or discarded.
func (r *Registry) ConsumeTx(wTx db.WriteTx, relayer common.Address) error {
	rs, err := r.st.RelayerTx(wTx, relayer)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRelayerNotRegistered, relayer.Hex())
		}
		return err
	}
	if !rs.Consume(r.now()) {
		return fmt.Errorf("%w: %s used %d of %d", ErrRelayerRateLimited, relayer.Hex(), rs.Count, rs.Limit)
	}
	return r.st.SetRelayerTx(wTx, rs)
}
