package storage

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-pool/db/metadb"
	"github.com/vocdoni/davinci-pool/types"
)

func newTestStorage(t *testing.T) *Storage {
	st := New(metadb.ForTest(t))
	t.Cleanup(st.Close)
	return st
}

func TestPoolConfig(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	_, err := st.PoolConfig()
	c.Assert(err, qt.Equals, ErrNotFound)

	cfg := &types.PoolConfig{
		Authority: common.HexToAddress("0xa11ce"),
		Custody:   common.HexToAddress("0xc0c0"),
	}
	c.Assert(st.CreatePoolConfig(cfg), qt.IsNil)
	c.Assert(st.CreatePoolConfig(cfg), qt.Equals, ErrKeyAlreadyExists)

	cfg = cfg.Clone()
	cfg.Paused = true
	cfg.Deny(common.HexToAddress("0xbad"))
	c.Assert(st.SetPoolConfig(cfg), qt.IsNil)

	stored, err := st.PoolConfig()
	c.Assert(err, qt.IsNil)
	c.Assert(stored.Paused, qt.IsTrue)
	c.Assert(stored.IsDenied(common.HexToAddress("0xbad")), qt.IsTrue)
	c.Assert(stored.Authority, qt.Equals, common.HexToAddress("0xa11ce"))
}

func TestPoolState(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	state, err := st.PoolState()
	c.Assert(err, qt.IsNil)
	c.Assert(state.Root, qt.Equals, common.Hash{})

	root := common.HexToHash("0xc1")
	wTx := st.WriteTx()
	c.Assert(st.SetPoolStateTx(wTx, &types.PoolState{Root: root}), qt.IsNil)

	// pending write is visible through the transaction only
	pending, err := st.PoolStateTx(wTx)
	c.Assert(err, qt.IsNil)
	c.Assert(pending.Root, qt.Equals, root)
	state, err = st.PoolState()
	c.Assert(err, qt.IsNil)
	c.Assert(state.Root, qt.Equals, common.Hash{})

	c.Assert(wTx.Commit(), qt.IsNil)
	state, err = st.PoolState()
	c.Assert(err, qt.IsNil)
	c.Assert(state.Root, qt.Equals, root)
}

func TestNullifierChunks(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	_, err := st.NullifierChunk(7)
	c.Assert(err, qt.Equals, ErrNotFound)

	c.Assert(st.CreateNullifierChunk(7), qt.IsNil)
	c.Assert(st.CreateNullifierChunk(7), qt.Equals, ErrKeyAlreadyExists)
	c.Assert(st.CreateNullifierChunk(256), qt.IsNil)
	c.Assert(st.CreateNullifierChunk(0), qt.IsNil)

	chunk, err := st.NullifierChunk(7)
	c.Assert(err, qt.IsNil)
	c.Assert(chunk.Index, qt.Equals, uint64(7))
	c.Assert(chunk.Count(), qt.Equals, 0)

	chunk.Set(42)
	wTx := st.WriteTx()
	c.Assert(st.SetNullifierChunkTx(wTx, 7, chunk), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	chunk, err = st.NullifierChunk(7)
	c.Assert(err, qt.IsNil)
	c.Assert(chunk.IsSet(42), qt.IsTrue)

	// creating again never resets spent bits
	c.Assert(st.CreateNullifierChunk(7), qt.Equals, ErrKeyAlreadyExists)
	chunk, err = st.NullifierChunk(7)
	c.Assert(err, qt.IsNil)
	c.Assert(chunk.IsSet(42), qt.IsTrue)

	indexes, err := st.NullifierChunks()
	c.Assert(err, qt.IsNil)
	c.Assert(indexes, qt.DeepEquals, []uint64{0, 7, 256})
}

func TestBalances(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	addr := common.HexToAddress("0x01")
	amount, err := st.Balance(addr)
	c.Assert(err, qt.IsNil)
	c.Assert(amount, qt.Equals, uint64(0))

	wTx := st.WriteTx()
	c.Assert(st.SetBalanceTx(wTx, addr, 150), qt.IsNil)
	wTx.Discard()
	amount, err = st.Balance(addr)
	c.Assert(err, qt.IsNil)
	c.Assert(amount, qt.Equals, uint64(0))

	wTx = st.WriteTx()
	c.Assert(st.SetBalanceTx(wTx, addr, 150), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	amount, err = st.Balance(addr)
	c.Assert(err, qt.IsNil)
	c.Assert(amount, qt.Equals, uint64(150))
}

func TestEvents(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	wTx := st.WriteTx()
	first := &types.CommitmentEvent{Commitment: common.HexToHash("0xc1"), Amount: 100}
	second := &types.CommitmentEvent{Commitment: common.HexToHash("0xc2"), Amount: 50, EncryptedNote: []byte{1, 2, 3}}
	c.Assert(st.AddCommitmentEventTx(wTx, first), qt.IsNil)
	c.Assert(st.AddCommitmentEventTx(wTx, second), qt.IsNil)
	c.Assert(first.ID, qt.Not(qt.Equals), "")
	c.Assert(first.ID, qt.Not(qt.Equals), second.ID)

	settled := &types.SettlementEvent{
		Nullifier: common.HexToHash("0x4e"),
		Recipient: common.HexToAddress("0x02"),
		Amount:    100,
		Timestamp: time.Now().Unix(),
	}
	c.Assert(st.AddSettlementEventTx(wTx, settled), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)

	commitments, err := st.CommitmentEvents()
	c.Assert(err, qt.IsNil)
	c.Assert(commitments, qt.HasLen, 2)
	c.Assert(commitments[0].Commitment, qt.Equals, first.Commitment)
	c.Assert(commitments[1].Commitment, qt.Equals, second.Commitment)
	c.Assert([]byte(commitments[1].EncryptedNote), qt.DeepEquals, []byte{1, 2, 3})

	settlements, err := st.SettlementEvents()
	c.Assert(err, qt.IsNil)
	c.Assert(settlements, qt.HasLen, 1)

	ev, err := st.SettlementEvent(settled.Nullifier)
	c.Assert(err, qt.IsNil)
	c.Assert(ev.Recipient, qt.Equals, settled.Recipient)
	_, err = st.SettlementEvent(common.HexToHash("0x01"))
	c.Assert(err, qt.Equals, ErrNotFound)
}

func TestRelayers(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)

	addr := common.HexToAddress("0x5e1a")
	_, err := st.Relayer(addr)
	c.Assert(err, qt.Equals, ErrNotFound)

	c.Assert(st.SetRelayer(&types.RelayerState{Relayer: addr, Limit: 3, Window: time.Minute}), qt.IsNil)
	r, err := st.Relayer(addr)
	c.Assert(err, qt.IsNil)
	c.Assert(r.Limit, qt.Equals, uint64(3))
	c.Assert(r.Window, qt.Equals, time.Minute)
}

func TestNonces(t *testing.T) {
	c := qt.New(t)
	st := newTestStorage(t)
	signer := common.HexToAddress("0xa11ce")

	last, err := st.Nonce(signer)
	c.Assert(err, qt.IsNil)
	c.Assert(last, qt.Equals, uint64(0))

	c.Assert(st.UseNonce(signer, 0), qt.ErrorIs, types.ErrNonceUsed)
	c.Assert(st.UseNonce(signer, 5), qt.IsNil)
	c.Assert(st.UseNonce(signer, 5), qt.ErrorIs, types.ErrNonceUsed)
	c.Assert(st.UseNonce(signer, 3), qt.ErrorIs, types.ErrNonceUsed)
	c.Assert(st.UseNonce(signer, 6), qt.IsNil)

	// a discarded transaction does not consume the nonce
	wTx := st.WriteTx()
	c.Assert(st.UseNonceTx(wTx, signer, 7), qt.IsNil)
	wTx.Discard()
	last, err = st.Nonce(signer)
	c.Assert(err, qt.IsNil)
	c.Assert(last, qt.Equals, uint64(6))

	// nonces are tracked per signer
	c.Assert(st.UseNonce(common.HexToAddress("0xb0b"), 1), qt.IsNil)
}
