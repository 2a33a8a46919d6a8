package settlement

import (
	"encoding/binary"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-pool/access"
	"github.com/vocdoni/davinci-pool/db/metadb"
	"github.com/vocdoni/davinci-pool/ledger"
	"github.com/vocdoni/davinci-pool/nullifier"
	"github.com/vocdoni/davinci-pool/relayer"
	"github.com/vocdoni/davinci-pool/state"
	"github.com/vocdoni/davinci-pool/storage"
	"github.com/vocdoni/davinci-pool/types"
	"github.com/vocdoni/davinci-pool/verifier"
)

var (
	authority = common.HexToAddress("0xa11ce")
	custody   = common.HexToAddress("0xc0c0")
	depositor = common.HexToAddress("0xde90")
	recipient = common.HexToAddress("0x4ec1")
	relayerA  = common.HexToAddress("0x5e1a")

	commitment1 = common.HexToHash("0xc1")
	commitment2 = common.HexToHash("0xc2")
)

// recordingSink keeps every event it is notified of.
type recordingSink struct {
	mu          sync.Mutex
	commitments []*types.CommitmentEvent
	settlements []*types.SettlementEvent
}

func (s *recordingSink) OnCommitment(ev *types.CommitmentEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitments = append(s.commitments, ev)
}

func (s *recordingSink) OnSettlement(ev *types.SettlementEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settlements = append(s.settlements, ev)
}

type testPool struct {
	st         *storage.Storage
	access     *access.Control
	state      *state.State
	nullifiers *nullifier.Registry
	ledger     *ledger.Ledger
	relayers   *relayer.Registry
	sink       *recordingSink
	engine     *Engine
}

// newTestPool bootstraps a pool in stub-magic mode with magic "VALID" and
// funds the depositor with 1000 tokens.
func newTestPool(c *qt.C) *testPool {
	st := storage.New(metadb.ForTest(c))
	c.Cleanup(st.Close)

	ac, err := access.New(st)
	c.Assert(err, qt.IsNil)
	c.Assert(ac.Bootstrap(authority, custody, types.VerifierModeStubMagic, []byte("VALID")), qt.IsNil)

	cache, err := verifier.NewCache(16)
	c.Assert(err, qt.IsNil)

	p := &testPool{
		st:         st,
		access:     ac,
		state:      state.New(st, ac),
		nullifiers: nullifier.New(st),
		ledger:     ledger.New(st),
		relayers:   relayer.New(st, ac),
		sink:       &recordingSink{},
	}
	p.engine, err = New(Config{
		Storage:    st,
		Access:     ac,
		State:      p.state,
		Nullifiers: p.nullifiers,
		Ledger:     p.ledger,
		Relayers:   p.relayers,
		Verifier:   verifier.Options{Cache: cache, Service: verifier.NewDevService("dev")},
		Sink:       p.sink,
	})
	c.Assert(err, qt.IsNil)
	c.Assert(p.ledger.Credit(depositor, 1000), qt.IsNil)
	return p
}

// nullifierAt returns a nullifier whose position is p, creating its chunk
// when create is set.
func (p *testPool) nullifierAt(c *qt.C, pos uint64, create bool) common.Hash {
	var n common.Hash
	binary.LittleEndian.PutUint64(n[:8], pos)
	n[31] = 0x77
	if create {
		chunk, _ := nullifier.Position(n)
		if err := p.nullifiers.CreateChunk(chunk); err != nil {
			c.Assert(err, qt.ErrorIs, nullifier.ErrChunkExists)
		}
	}
	return n
}

func (p *testPool) deposit(c *qt.C, amount uint64, commitment common.Hash) *types.CommitmentEvent {
	ev, err := p.engine.Deposit(c.Context(), &types.DepositRequest{
		Depositor:  depositor,
		Amount:     amount,
		Commitment: commitment,
	})
	c.Assert(err, qt.IsNil)
	return ev
}

func (p *testPool) withdrawRequest(n, root common.Hash, amount uint64) *types.WithdrawRequest {
	return &types.WithdrawRequest{
		Proof:     []byte("VALID"),
		Nullifier: n,
		Root:      root,
		Amount:    amount,
		Recipient: recipient,
	}
}

func (p *testPool) balance(c *qt.C, addr common.Address) uint64 {
	b, err := p.ledger.Balance(addr)
	c.Assert(err, qt.IsNil)
	return b
}

func (p *testPool) spent(c *qt.C, n common.Hash) bool {
	spent, err := p.nullifiers.IsSpent(n)
	c.Assert(err, qt.IsNil)
	return spent
}

func assertStage(c *qt.C, err error, want Stage) {
	c.Helper()
	stage, ok := FailedStage(err)
	c.Assert(ok, qt.IsTrue, qt.Commentf("error %v carries no stage", err))
	c.Assert(stage, qt.Equals, want)
}
