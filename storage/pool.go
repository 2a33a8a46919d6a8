package storage

import (
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/types"
)

// PoolConfig returns the stored pool configuration, or ErrNotFound if the
// pool was never bootstrapped.
func (s *Storage) PoolConfig() (*types.PoolConfig, error) {
	cfg := &types.PoolConfig{}
	if err := getArtifact(s.db, poolConfigPrefix, singletonKey, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetPoolConfig persists cfg. The caller must hold ConfigLockKey.
func (s *Storage) SetPoolConfig(cfg *types.PoolConfig) error {
	return s.commitArtifact(poolConfigPrefix, singletonKey, cfg)
}

// CreatePoolConfig persists cfg only if no configuration exists yet, and
// returns ErrKeyAlreadyExists otherwise.
func (s *Storage) CreatePoolConfig(cfg *types.PoolConfig) error {
	unlock := s.locks.Lock(ConfigLockKey)
	defer unlock()
	if _, err := s.PoolConfig(); err == nil {
		return ErrKeyAlreadyExists
	} else if err != ErrNotFound {
		return err
	}
	return s.SetPoolConfig(cfg)
}

// PoolState returns the current pool state. A pool that never received a
// root reports the zero root.
func (s *Storage) PoolState() (*types.PoolState, error) {
	return s.PoolStateTx(s.db)
}

// PoolStateTx reads the pool state through r, which may be a pending write
// transaction.
func (s *Storage) PoolStateTx(r db.Reader) (*types.PoolState, error) {
	st := &types.PoolState{}
	if err := getArtifact(r, poolStatePrefix, singletonKey, st); err != nil {
		if err == ErrNotFound {
			return &types.PoolState{}, nil
		}
		return nil, err
	}
	return st, nil
}

// SetPoolStateTx stages st in wTx. The caller must hold RootLockKey.
func (s *Storage) SetPoolStateTx(wTx db.WriteTx, st *types.PoolState) error {
	return setArtifact(wTx, poolStatePrefix, singletonKey, st)
}
