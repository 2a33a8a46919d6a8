package settlement

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-pool/ledger"
	"github.com/vocdoni/davinci-pool/relayer"
	"github.com/vocdoni/davinci-pool/types"
	"golang.org/x/sync/errgroup"
)

func TestDepositAndWithdraw(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)

	dep := p.deposit(c, 100, commitment1)
	c.Assert(dep.ID, qt.Not(qt.Equals), "")
	c.Assert(dep.Root, qt.Equals, commitment1)
	root, err := p.state.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root, qt.Equals, commitment1)
	c.Assert(p.balance(c, custody), qt.Equals, uint64(100))
	c.Assert(p.balance(c, depositor), qt.Equals, uint64(900))

	n1 := p.nullifierAt(c, 1000, true)
	c.Assert(p.spent(c, n1), qt.IsFalse)

	ev, err := p.engine.Withdraw(c.Context(), p.withdrawRequest(n1, commitment1, 100))
	c.Assert(err, qt.IsNil)
	c.Assert(ev.Nullifier, qt.Equals, n1)
	c.Assert(ev.Recipient, qt.Equals, recipient)
	c.Assert(p.spent(c, n1), qt.IsTrue)
	c.Assert(p.balance(c, recipient), qt.Equals, uint64(100))
	c.Assert(p.balance(c, custody), qt.Equals, uint64(0))

	chunk, err := p.nullifiers.Chunk(1000 / 256)
	c.Assert(err, qt.IsNil)
	c.Assert(chunk.IsSet(1000%256), qt.IsTrue)
	c.Assert(chunk.Count(), qt.Equals, 1)

	// the identical request is now a double spend
	_, err = p.engine.Withdraw(c.Context(), p.withdrawRequest(n1, commitment1, 100))
	c.Assert(err, qt.ErrorIs, types.ErrNullifierAlreadyUsed)
	assertStage(c, err, StageNullifier)

	commitments, err := p.engine.CommitmentEvents()
	c.Assert(err, qt.IsNil)
	c.Assert(commitments, qt.HasLen, 1)
	c.Assert(commitments[0].Commitment, qt.Equals, commitment1)
	settlements, err := p.engine.SettlementEvents()
	c.Assert(err, qt.IsNil)
	c.Assert(settlements, qt.HasLen, 1)
	c.Assert(settlements[0].Nullifier, qt.Equals, n1)

	c.Assert(p.sink.commitments, qt.HasLen, 1)
	c.Assert(p.sink.settlements, qt.HasLen, 1)
}

func TestMonotonicSpend(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)
	p.deposit(c, 300, commitment1)

	n := p.nullifierAt(c, 5, true)
	_, err := p.engine.Withdraw(c.Context(), p.withdrawRequest(n, commitment1, 100))
	c.Assert(err, qt.IsNil)

	// whatever the verifier says, a spent nullifier stays spent
	c.Assert(p.access.SetVerifierMode(authority, types.VerifierModeDisabled, nil), qt.IsNil)
	for _, proof := range []string{"VALID", "anything", "POS!"} {
		req := p.withdrawRequest(n, commitment1, 100)
		req.Proof = []byte(proof)
		_, err := p.engine.Withdraw(c.Context(), req)
		c.Assert(err, qt.ErrorIs, types.ErrNullifierAlreadyUsed)
	}
	c.Assert(p.balance(c, recipient), qt.Equals, uint64(100))
}

func TestRootGating(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)
	p.deposit(c, 100, commitment1)
	n := p.nullifierAt(c, 1, true)

	_, err := p.engine.Withdraw(c.Context(), p.withdrawRequest(n, commitment2, 100))
	c.Assert(err, qt.ErrorIs, types.ErrRootMismatch)
	assertStage(c, err, StageRoot)
	c.Assert(p.spent(c, n), qt.IsFalse)

	// the next deposit overwrites the root
	p.deposit(c, 100, commitment2)
	_, err = p.engine.Withdraw(c.Context(), p.withdrawRequest(n, commitment1, 100))
	c.Assert(err, qt.ErrorIs, types.ErrRootMismatch)
	_, err = p.engine.Withdraw(c.Context(), p.withdrawRequest(n, commitment2, 100))
	c.Assert(err, qt.IsNil)

	// admin override
	c.Assert(p.state.UpdateRoot(authority, commitment1), qt.IsNil)
	n2 := p.nullifierAt(c, 2, true)
	_, err = p.engine.Withdraw(c.Context(), p.withdrawRequest(n2, commitment1, 100))
	c.Assert(err, qt.IsNil)
}

func TestPausePrecedence(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)
	p.deposit(c, 100, commitment1)
	n := p.nullifierAt(c, 1, true)

	c.Assert(p.access.SetPause(authority, true), qt.IsNil)
	_, err := p.engine.Withdraw(c.Context(), p.withdrawRequest(n, commitment1, 100))
	c.Assert(err, qt.ErrorIs, types.ErrContractPaused)
	assertStage(c, err, StagePause)

	// pause is reported before every other violation
	c.Assert(p.access.AddToDenyList(authority, recipient), qt.IsNil)
	req := p.withdrawRequest(n, commitment2, 100)
	req.Proof = []byte("wrong")
	_, err = p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.ErrorIs, types.ErrContractPaused)

	c.Assert(p.access.SetPause(authority, false), qt.IsNil)
	c.Assert(p.access.RemoveFromDenyList(authority, recipient), qt.IsNil)
	_, err = p.engine.Withdraw(c.Context(), p.withdrawRequest(n, commitment1, 100))
	c.Assert(err, qt.IsNil)
}

func TestDenyListPrecedence(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)
	p.deposit(c, 100, commitment1)
	n := p.nullifierAt(c, 1, true)

	c.Assert(p.access.AddToDenyList(authority, recipient), qt.IsNil)
	_, err := p.engine.Withdraw(c.Context(), p.withdrawRequest(n, commitment1, 100))
	c.Assert(err, qt.ErrorIs, types.ErrDenyListBlocked)
	assertStage(c, err, StageDeny)
	c.Assert(p.spent(c, n), qt.IsFalse)

	// deny is reported before root and proof violations
	req := p.withdrawRequest(n, commitment2, 100)
	req.Proof = nil
	_, err = p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.ErrorIs, types.ErrDenyListBlocked)

	// the depositor check is independent from the recipient one
	p.deposit(c, 10, commitment1)
	c.Assert(p.access.AddToDenyList(authority, depositor), qt.IsNil)
	_, err = p.engine.Deposit(c.Context(), &types.DepositRequest{Depositor: depositor, Amount: 10, Commitment: commitment2})
	c.Assert(err, qt.ErrorIs, types.ErrDenyListBlocked)
	root, err := p.state.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root, qt.Equals, commitment1)
}

func TestProofCheck(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)
	p.deposit(c, 500, commitment1)

	n := p.nullifierAt(c, 300, true)
	for _, proof := range []string{"", "VALI", "VALIDX", "valid"} {
		req := p.withdrawRequest(n, commitment1, 100)
		req.Proof = []byte(proof)
		_, err := p.engine.Withdraw(c.Context(), req)
		c.Assert(err, qt.ErrorIs, types.ErrInvalidProof, qt.Commentf("proof %q", proof))
		assertStage(c, err, StageProof)
	}
	c.Assert(p.spent(c, n), qt.IsFalse)

	// delegated mode needs a target
	c.Assert(p.access.SetVerifierMode(authority, types.VerifierModeDelegated, nil), qt.IsNil)
	req := p.withdrawRequest(n, commitment1, 100)
	req.Proof = []byte("POS!proof")
	_, err := p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.ErrorIs, types.ErrInvalidProof)
	req.VerifierTarget = "dev"
	_, err = p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.IsNil)

	// structural mode reports the first violated rule
	c.Assert(p.access.SetVerifierMode(authority, types.VerifierModeStructuralPlonk, nil), qt.IsNil)
	n2 := p.nullifierAt(c, 301, true)
	req = p.withdrawRequest(n2, commitment1, 100)
	req.Proof = []byte("not json")
	_, err = p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.ErrorIs, types.ErrProofParsingFailed)

	req.Proof = structuralProof("0x0a123456789012345678901234567890")
	req.PublicInputs = []string{"990123457"}
	_, err = p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.ErrorIs, types.ErrInvalidPublicInputsCount)

	req.PublicInputs = []string{"990123457", "988502805"}
	_, err = p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(p.spent(c, n2), qt.IsTrue)

	// proof field values are hex even without the 0x prefix
	n3 := p.nullifierAt(c, 302, true)
	req = p.withdrawRequest(n3, commitment1, 100)
	req.Proof = structuralProof("0a123456789012345678901234567890")
	req.PublicInputs = []string{"990123457", "988502805"}
	_, err = p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(p.spent(c, n3), qt.IsTrue)
}

func structuralProof(eval string) []byte {
	point := "0x" + strings.Repeat("ab", 32)
	return []byte(`{"a":"` + point + `","b":"` + point + `","c":"` + point + `","z":"` + point +
		`","t1":"0x01","t2":"0x02","t3":"0x03","wxi":"0x04","wxiw":"0x05",` +
		`"a_eval":"` + eval + `","b_eval":"` + eval + `","c_eval":"` + eval +
		`","s1_eval":"` + eval + `","s2_eval":"` + eval + `","z_omega_eval":"` + eval + `"}`)
}

func TestChunkMismatchIsSpent(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)
	p.deposit(c, 100, commitment1)

	// chunk never created
	missing := p.nullifierAt(c, 10*256+3, false)
	_, err := p.engine.Withdraw(c.Context(), p.withdrawRequest(missing, commitment1, 100))
	c.Assert(err, qt.ErrorIs, types.ErrNullifierAlreadyUsed)

	// chunk record claiming another index
	mismatched := p.nullifierAt(c, 11*256+3, false)
	wTx := p.st.WriteTx()
	c.Assert(p.st.SetNullifierChunkTx(wTx, 11, &types.NullifierChunk{Index: 12}), qt.IsNil)
	c.Assert(wTx.Commit(), qt.IsNil)
	_, err = p.engine.Withdraw(c.Context(), p.withdrawRequest(mismatched, commitment1, 100))
	c.Assert(err, qt.ErrorIs, types.ErrNullifierAlreadyUsed)
	assertStage(c, err, StageNullifier)

	c.Assert(p.balance(c, recipient), qt.Equals, uint64(0))
	settlements, err := p.engine.SettlementEvents()
	c.Assert(err, qt.IsNil)
	c.Assert(settlements, qt.HasLen, 0)
}

func TestFailedTransferRollsBack(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)
	p.deposit(c, 50, commitment1)
	c.Assert(p.relayers.InitRelayer(authority, relayerA, 1, time.Hour), qt.IsNil)

	n := p.nullifierAt(c, 42, true)
	req := p.withdrawRequest(n, commitment1, 100)
	req.Relayer = relayerA
	_, err := p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.ErrorIs, ledger.ErrInsufficientBalance)
	assertStage(c, err, StageTransfer)

	// nothing staged before the failing stage survives
	c.Assert(p.spent(c, n), qt.IsFalse)
	rs, err := p.relayers.Relayer(relayerA)
	c.Assert(err, qt.IsNil)
	c.Assert(rs.Count, qt.Equals, uint64(0))
	c.Assert(p.balance(c, custody), qt.Equals, uint64(50))
	settlements, err := p.engine.SettlementEvents()
	c.Assert(err, qt.IsNil)
	c.Assert(settlements, qt.HasLen, 0)

	// once custody is funded the same nullifier goes through
	p.deposit(c, 50, commitment1)
	ev, err := p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.IsNil)
	c.Assert(ev.Relayer, qt.Equals, relayerA)
	c.Assert(p.spent(c, n), qt.IsTrue)
}

func TestRelayerCheck(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)
	p.deposit(c, 500, commitment1)

	n1 := p.nullifierAt(c, 1, true)
	req := p.withdrawRequest(n1, commitment1, 100)
	req.Relayer = relayerA
	_, err := p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.ErrorIs, relayer.ErrRelayerNotRegistered)
	assertStage(c, err, StageRelayer)

	c.Assert(p.relayers.InitRelayer(authority, relayerA, 1, time.Hour), qt.IsNil)
	_, err = p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.IsNil)

	n2 := p.nullifierAt(c, 2, true)
	req = p.withdrawRequest(n2, commitment1, 100)
	req.Relayer = relayerA
	_, err = p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.ErrorIs, relayer.ErrRelayerRateLimited)
	assertStage(c, err, StageRelayer)
	c.Assert(p.spent(c, n2), qt.IsFalse)

	// direct submissions are not rate limited
	req.Relayer = common.Address{}
	_, err = p.engine.Withdraw(c.Context(), req)
	c.Assert(err, qt.IsNil)
}

func TestInvalidAmount(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)

	_, err := p.engine.Deposit(c.Context(), &types.DepositRequest{Depositor: depositor, Commitment: commitment1})
	c.Assert(err, qt.ErrorIs, types.ErrInvalidAmount)
	assertStage(c, err, StageRequest)

	_, err = p.engine.Withdraw(c.Context(), p.withdrawRequest(p.nullifierAt(c, 1, true), common.Hash{}, 0))
	c.Assert(err, qt.ErrorIs, types.ErrInvalidAmount)

	// a deposit larger than the depositor balance moves nothing
	_, err = p.engine.Deposit(c.Context(), &types.DepositRequest{Depositor: depositor, Amount: 1001, Commitment: commitment1})
	c.Assert(err, qt.ErrorIs, ledger.ErrInsufficientBalance)
	root, err := p.state.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root, qt.Equals, common.Hash{})
}

func TestConcurrentDoubleSpend(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)
	p.deposit(c, 1000, commitment1)
	n := p.nullifierAt(c, 77, true)

	const attempts = 16
	var won, lost atomic.Int32
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			_, err := p.engine.Withdraw(ctx, p.withdrawRequest(n, commitment1, 10))
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, types.ErrNullifierAlreadyUsed):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	c.Assert(g.Wait(), qt.IsNil)
	c.Assert(won.Load(), qt.Equals, int32(1))
	c.Assert(lost.Load(), qt.Equals, int32(attempts-1))
	c.Assert(p.balance(c, recipient), qt.Equals, uint64(10))
}

func TestConcurrentIndependentChunks(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)
	p.deposit(c, 1000, commitment1)

	const withdrawals = 24
	nullifiers := make([]common.Hash, withdrawals)
	for i := range nullifiers {
		// spread over several chunks, several bits per chunk
		nullifiers[i] = p.nullifierAt(c, uint64(i%4)*256+uint64(i), true)
	}
	var g errgroup.Group
	for _, n := range nullifiers {
		g.Go(func() error {
			_, err := p.engine.Withdraw(context.Background(), p.withdrawRequest(n, commitment1, 10))
			return err
		})
	}
	c.Assert(g.Wait(), qt.IsNil)
	c.Assert(p.balance(c, recipient), qt.Equals, uint64(10*withdrawals))
	c.Assert(p.balance(c, custody), qt.Equals, uint64(1000-10*withdrawals))
	for _, n := range nullifiers {
		c.Assert(p.spent(c, n), qt.IsTrue)
	}
	c.Assert(p.st.Locks().Held(), qt.Equals, 0)
}

func TestDepositNonce(t *testing.T) {
	c := qt.New(t)
	p := newTestPool(c)

	req := &types.DepositRequest{
		Depositor:  depositor,
		Amount:     100,
		Commitment: commitment1,
		Nonce:      1,
	}
	_, err := p.engine.Deposit(c.Context(), req)
	c.Assert(err, qt.IsNil)
	_, err = p.engine.Deposit(c.Context(), &types.DepositRequest{
		Depositor:  depositor,
		Amount:     50,
		Commitment: commitment2,
		Nonce:      2,
	})
	c.Assert(err, qt.IsNil)

	// resending the first deposit neither charges again nor restores its root
	_, err = p.engine.Deposit(c.Context(), req)
	c.Assert(err, qt.ErrorIs, types.ErrNonceUsed)
	assertStage(c, err, StageRequest)
	c.Assert(p.balance(c, depositor), qt.Equals, uint64(850))
	root, err := p.state.Root()
	c.Assert(err, qt.IsNil)
	c.Assert(root, qt.Equals, commitment2)

	// a deposit that fails later does not consume its nonce
	_, err = p.engine.Deposit(c.Context(), &types.DepositRequest{
		Depositor:  depositor,
		Amount:     10_000,
		Commitment: commitment1,
		Nonce:      3,
	})
	c.Assert(err, qt.ErrorIs, ledger.ErrInsufficientBalance)
	last, err := p.st.Nonce(depositor)
	c.Assert(err, qt.IsNil)
	c.Assert(last, qt.Equals, uint64(2))
}
