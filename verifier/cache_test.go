package verifier

import (
	"context"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-pool/types"
)

func TestStructuralPlonkCache(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	cache, err := NewCache(0)
	c.Assert(err, qt.IsNil)
	v, err := New(types.VerifierModeStructuralPlonk, nil, Options{Cache: cache})
	c.Assert(err, qt.IsNil)

	in := &Input{Proof: validProof(c), PublicInputs: validPublicInputs}
	c.Assert(v.Verify(ctx, in), qt.IsNil)
	c.Assert(v.Verify(ctx, in), qt.IsNil)
	hits, misses := cache.Stats()
	c.Assert(hits, qt.Equals, uint64(1))
	c.Assert(misses, qt.Equals, uint64(1))

	// rejections are cached with their error
	bad := &Input{Proof: []byte("invalid json"), PublicInputs: validPublicInputs}
	c.Assert(v.Verify(ctx, bad), qt.ErrorIs, types.ErrProofParsingFailed)
	c.Assert(v.Verify(ctx, bad), qt.ErrorIs, types.ErrProofParsingFailed)
	hits, _ = cache.Stats()
	c.Assert(hits, qt.Equals, uint64(2))
	c.Assert(cache.Len(), qt.Equals, 2)

	// same proof with other inputs is a different entry
	other := &Input{Proof: validProof(c), PublicInputs: []string{"1"}}
	c.Assert(v.Verify(ctx, other), qt.ErrorIs, types.ErrInvalidPublicInputsCount)
	c.Assert(cache.Len(), qt.Equals, 3)
}

func TestCacheKey(t *testing.T) {
	c := qt.New(t)

	c.Assert(CacheKey([]byte("ab"), []string{"c"}), qt.Not(qt.Equals), CacheKey([]byte("a"), []string{"bc"}))
	c.Assert(CacheKey([]byte("a"), []string{"b", "c"}), qt.Not(qt.Equals), CacheKey([]byte("a"), []string{"bc"}))
	c.Assert(CacheKey([]byte("a"), []string{"b"}), qt.Equals, CacheKey([]byte("a"), []string{"b"}))
}

func TestCacheEviction(t *testing.T) {
	c := qt.New(t)

	cache, err := NewCache(2)
	c.Assert(err, qt.IsNil)
	for i := byte(0); i < 3; i++ {
		cache.Add(CacheKey([]byte{i}, nil), nil)
	}
	c.Assert(cache.Len(), qt.Equals, 2)
	_, ok := cache.Get(CacheKey([]byte{0}, nil))
	c.Assert(ok, qt.IsFalse)
	_, ok = cache.Get(CacheKey([]byte{2}, nil))
	c.Assert(ok, qt.IsTrue)
}
