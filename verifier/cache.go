package verifier

import (
	"crypto/sha256"
	"encoding/binary"
	"hash"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of outcomes kept by NewCache when no size
// is given.
const DefaultCacheSize = 1024

// Cache memoizes structural verification outcomes. Structural checks are a
// pure function of the proof and public inputs, so rejections are cached as
// well as acceptances.
type Cache struct {
	lru    *lru.Cache[[32]byte, error]
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCache returns a cache holding up to size outcomes.
func NewCache(size int) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[[32]byte, error](size)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: c}, nil
}

// CacheKey hashes a proof with its public inputs. Inputs are length prefixed
// so different splits of the same bytes never collide.
func CacheKey(proof []byte, publicInputs []string) [32]byte {
	h := sha256.New()
	writeLenPrefixed(h, proof)
	for _, pi := range publicInputs {
		writeLenPrefixed(h, []byte(pi))
	}
	var key [32]byte
	h.Sum(key[:0])
	return key
}

func writeLenPrefixed(h hash.Hash, b []byte) {
	_, _ = h.Write(binary.BigEndian.AppendUint64(nil, uint64(len(b))))
	_, _ = h.Write(b)
}

// Get returns the cached outcome of key.
func (c *Cache) Get(key [32]byte) (error, bool) {
	err, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return err, ok
}

// Add stores the outcome of key.
func (c *Cache) Add(key [32]byte, err error) {
	c.lru.Add(key, err)
}

// Stats returns the hit and miss counters.
func (c *Cache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached outcomes.
func (c *Cache) Len() int {
	return c.lru.Len()
}
