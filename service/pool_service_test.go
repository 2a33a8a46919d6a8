package service

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/types"
)

var (
	authority = common.HexToAddress("0xa11ce")
	custody   = common.HexToAddress("0xc0c0")
)

func TestNewPoolBootstraps(t *testing.T) {
	c := qt.New(t)
	dir := t.TempDir()

	cfg := &PoolConfig{
		DBType:        db.TypePebble,
		Datadir:       dir,
		Authority:     authority,
		Custody:       custody,
		VerifierMode:  types.VerifierModeStubMagic,
		VerifierMagic: []byte("VALID"),
	}
	ps, err := NewPool(cfg)
	c.Assert(err, qt.IsNil)

	snap, err := ps.Access.Snapshot()
	c.Assert(err, qt.IsNil)
	c.Assert(snap.Authority, qt.Equals, authority)
	c.Assert(snap.VerifierMode, qt.Equals, types.VerifierModeStubMagic)

	c.Assert(ps.Nullifiers.CreateChunk(0), qt.IsNil)
	c.Assert(ps.Ledger.Credit(common.HexToAddress("0xde90"), 10), qt.IsNil)
	_, err = ps.Engine.Deposit(c.Context(), &types.DepositRequest{
		Depositor:  common.HexToAddress("0xde90"),
		Amount:     10,
		Commitment: common.HexToHash("0xc1"),
	})
	c.Assert(err, qt.IsNil)

	stats, err := ps.Stats()
	c.Assert(err, qt.IsNil)
	c.Assert(stats.Chunks, qt.Equals, 1)
	c.Assert(stats.Deposits, qt.Equals, 1)
	c.Assert(stats.Settled, qt.Equals, uint64(1))
	c.Assert(stats.Root, qt.Equals, common.HexToHash("0xc1"))

	c.Assert(ps.Start(c.Context()), qt.IsNil)
	c.Assert(ps.Start(c.Context()), qt.ErrorMatches, "service already running")
	ps.Stop()

	// reopening keeps the stored configuration
	cfg.Authority = common.HexToAddress("0xbeef")
	cfg.VerifierMode = types.VerifierModeDisabled
	ps, err = NewPool(cfg)
	c.Assert(err, qt.IsNil)
	defer ps.Stop()
	snap, err = ps.Access.Snapshot()
	c.Assert(err, qt.IsNil)
	c.Assert(snap.Authority, qt.Equals, authority)
	c.Assert(snap.VerifierMode, qt.Equals, types.VerifierModeStubMagic)
	root, err := ps.State.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root, qt.Equals, common.HexToHash("0xc1"))
}

func TestNewPoolRequiresBootstrapIdentities(t *testing.T) {
	c := qt.New(t)

	_, err := NewPool(&PoolConfig{DBType: db.TypeInMem, Datadir: t.TempDir()})
	c.Assert(err, qt.ErrorMatches, "pool is not initialized.*")

	_, err = NewPool(&PoolConfig{DBType: "unknown", Datadir: t.TempDir()})
	c.Assert(err, qt.ErrorMatches, "failed to open database.*")
}

func TestProvisionChunks(t *testing.T) {
	c := qt.New(t)

	ps, err := NewPool(&PoolConfig{
		DBType:       db.TypeInMem,
		Datadir:      t.TempDir(),
		Authority:    authority,
		Custody:      custody,
		VerifierMode: types.VerifierModeDisabled,
	})
	c.Assert(err, qt.IsNil)
	defer ps.Stop()

	c.Assert(ps.Nullifiers.CreateChunk(3), qt.IsNil)
	created, err := ps.ProvisionChunks(c.Context(), 20)
	c.Assert(err, qt.IsNil)
	c.Assert(created, qt.Equals, 19)

	chunks, err := ps.Nullifiers.Chunks()
	c.Assert(err, qt.IsNil)
	c.Assert(chunks, qt.HasLen, 20)

	// existing chunks are skipped
	created, err = ps.ProvisionChunks(c.Context(), 20)
	c.Assert(err, qt.IsNil)
	c.Assert(created, qt.Equals, 0)

	ctx, cancel := context.WithCancel(c.Context())
	cancel()
	_, err = ps.ProvisionChunks(ctx, 40)
	c.Assert(err, qt.ErrorIs, context.Canceled)
}
