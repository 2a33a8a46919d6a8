// Package access holds the authority-gated pool configuration. Readers take
// an immutable snapshot once per operation; writers replace the snapshot as a
// whole, so a concurrent change is observed either entirely or not at all.
package access

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/storage"
	"github.com/vocdoni/davinci-pool/types"
)

// Control owns the pool configuration.
type Control struct {
	st  *storage.Storage
	mu  sync.Mutex
	cfg atomic.Pointer[types.PoolConfig]
}

// New returns a Control loading the configuration persisted in st, if any.
func New(st *storage.Storage) (*Control, error) {
	a := &Control{st: st}
	cfg, err := st.PoolConfig()
	switch {
	case err == nil:
		a.cfg.Store(cfg)
	case errors.Is(err, storage.ErrNotFound):
	default:
		return nil, fmt.Errorf("could not load pool config: %w", err)
	}
	return a, nil
}

// Bootstrap creates the pool configuration. It can only succeed once per
// storage; later calls fail with types.ErrAlreadyInitialized.
func (a *Control) Bootstrap(authority, custody common.Address, mode types.VerifierMode, magic []byte) error {
	if authority == (common.Address{}) {
		return fmt.Errorf("authority address is required")
	}
	if custody == (common.Address{}) {
		return fmt.Errorf("custody address is required")
	}
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", types.ErrInvalidVerifierMode, mode)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	cfg := &types.PoolConfig{
		Authority:     authority,
		Custody:       custody,
		VerifierMode:  mode,
		VerifierMagic: bytes.Clone(magic),
	}
	if err := a.st.CreatePoolConfig(cfg); err != nil {
		if errors.Is(err, storage.ErrKeyAlreadyExists) {
			return types.ErrAlreadyInitialized
		}
		return err
	}
	a.cfg.Store(cfg)
	log.Infow("pool bootstrapped",
		"authority", authority.Hex(),
		"custody", custody.Hex(),
		"verifierMode", mode.String())
	return nil
}

// Snapshot returns the current configuration. The value must not be
// modified.
func (a *Control) Snapshot() (*types.PoolConfig, error) {
	cfg := a.cfg.Load()
	if cfg == nil {
		return nil, types.ErrNotInitialized
	}
	return cfg, nil
}

// Authorize fails with types.ErrUnauthorized unless caller is the authority.
func (a *Control) Authorize(caller common.Address) error {
	cfg, err := a.Snapshot()
	if err != nil {
		return err
	}
	return authorize(cfg, caller)
}

// IsDenied reports whether addr is deny-listed in the current snapshot.
func (a *Control) IsDenied(addr common.Address) bool {
	cfg := a.cfg.Load()
	return cfg != nil && cfg.IsDenied(addr)
}

// SetVerifierMode selects the verifier mode and replaces the magic; a nil
// magic clears it.
func (a *Control) SetVerifierMode(caller common.Address, mode types.VerifierMode, magic []byte) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %d", types.ErrInvalidVerifierMode, mode)
	}
	return a.update(caller, func(cfg *types.PoolConfig) bool {
		cfg.VerifierMode = mode
		cfg.VerifierMagic = bytes.Clone(magic)
		return true
	})
}

// AddToDenyList blocks addr. Adding a listed address is a no-op.
func (a *Control) AddToDenyList(caller, addr common.Address) error {
	return a.update(caller, func(cfg *types.PoolConfig) bool {
		return cfg.Deny(addr)
	})
}

// RemoveFromDenyList unblocks addr. Removing an unlisted address is a no-op.
func (a *Control) RemoveFromDenyList(caller, addr common.Address) error {
	return a.update(caller, func(cfg *types.PoolConfig) bool {
		return cfg.Allow(addr)
	})
}

// SetPause sets the global pause flag.
func (a *Control) SetPause(caller common.Address, paused bool) error {
	return a.update(caller, func(cfg *types.PoolConfig) bool {
		if cfg.Paused == paused {
			return false
		}
		cfg.Paused = paused
		return true
	})
}

// update applies mutate to a copy of the current configuration, persists it
// and publishes it. mutate reports whether anything changed.
func (a *Control) update(caller common.Address, mutate func(cfg *types.PoolConfig) bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	current, err := a.Snapshot()
	if err != nil {
		return err
	}
	if err := authorize(current, caller); err != nil {
		return err
	}
	next := current.Clone()
	if !mutate(next) {
		return nil
	}
	unlock := a.st.Locks().Lock(storage.ConfigLockKey)
	defer unlock()
	if err := a.st.SetPoolConfig(next); err != nil {
		return fmt.Errorf("could not store pool config: %w", err)
	}
	a.cfg.Store(next)
	log.Debugw("pool config updated",
		"paused", next.Paused,
		"verifierMode", next.VerifierMode.String(),
		"denied", len(next.DenyList))
	return nil
}

func authorize(cfg *types.PoolConfig, caller common.Address) error {
	if caller != cfg.Authority {
		return fmt.Errorf("%w: %s is not the pool authority", types.ErrUnauthorized, caller.Hex())
	}
	return nil
}
