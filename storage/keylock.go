package storage

import (
	"encoding/binary"
	"slices"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// KeyLocker hands out exclusive locks on logical record keys. Locks for
// several keys are always taken in sorted order, so callers locking
// overlapping key sets cannot deadlock. Entries are reference counted and
// dropped once nobody holds or waits for them.
type KeyLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewKeyLocker returns an empty KeyLocker.
func NewKeyLocker() *KeyLocker {
	return &KeyLocker{locks: make(map[string]*keyLock)}
}

// Lock blocks until every key is held by the caller and returns the function
// releasing them. Duplicated keys are locked once.
func (l *KeyLocker) Lock(keys ...string) (unlock func()) {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	keys = slices.Compact(keys)

	held := make([]*keyLock, 0, len(keys))
	for _, k := range keys {
		kl := l.acquire(k)
		kl.mu.Lock()
		held = append(held, kl)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			for i := len(held) - 1; i >= 0; i-- {
				held[i].mu.Unlock()
				l.release(keys[i], held[i])
			}
		})
	}
}

// Held returns the number of keys currently locked or awaited.
func (l *KeyLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

func (l *KeyLocker) acquire(key string) *keyLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{}
		l.locks[key] = kl
	}
	kl.refs++
	return kl
}

func (l *KeyLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// ChunkLockKey is the lock key of a nullifier chunk.
func ChunkLockKey(index uint64) string {
	return "nc/" + string(chunkKey(index))
}

// BalanceLockKey is the lock key of a ledger balance.
func BalanceLockKey(addr common.Address) string {
	return "bal/" + string(addr.Bytes())
}

// RelayerLockKey is the lock key of a relayer state record.
func RelayerLockKey(addr common.Address) string {
	return "rl/" + string(addr.Bytes())
}

// NonceLockKey is the lock key of the nonce record of a signer.
func NonceLockKey(addr common.Address) string {
	return "nn/" + string(addr.Bytes())
}

// RootLockKey is the lock key of the pool state singleton.
const RootLockKey = "root/"

// ConfigLockKey is the lock key of the pool config singleton.
const ConfigLockKey = "cfg/"

func chunkKey(index uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, index)
}
