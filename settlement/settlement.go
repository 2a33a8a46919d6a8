// Package settlement orchestrates deposits and withdrawals of the pool.
//
// A withdrawal runs through a fixed sequence of stages and stops at the
// first failure:
//
//	RequestCheck → PauseCheck → DenyCheck → RootCheck → ProofCheck →
//	[RelayerCheck] → NullifierCheck → Transfer → Emit
//
// The checks up to ProofCheck only read state and run without locks. From
// RelayerCheck on, every mutation is staged in a single write transaction
// opened after the locks of the nullifier chunk, the balances involved and
// the relayer are held, and committed only once Emit succeeds. A failure at
// any stage discards the transaction, so no partial update is ever visible.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/access"
	"github.com/vocdoni/davinci-pool/ledger"
	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/nullifier"
	"github.com/vocdoni/davinci-pool/relayer"
	"github.com/vocdoni/davinci-pool/state"
	"github.com/vocdoni/davinci-pool/storage"
	"github.com/vocdoni/davinci-pool/types"
	"github.com/vocdoni/davinci-pool/verifier"
)

// Stage names a step of the settlement sequence.
type Stage string

const (
	StageRequest    Stage = "RequestCheck"
	StagePause      Stage = "PauseCheck"
	StageDeny       Stage = "DenyCheck"
	StageRoot       Stage = "RootCheck"
	StageProof      Stage = "ProofCheck"
	StageRelayer    Stage = "RelayerCheck"
	StageNullifier  Stage = "NullifierCheck"
	StageTransfer   Stage = "Transfer"
	StageRootUpdate Stage = "RootUpdate"
	StageEmit       Stage = "Emit"
	StageCommit     Stage = "Commit"
)

// StageError reports the stage a settlement failed at. It unwraps to the
// underlying error, so errors.Is matches the error taxonomy of the types
// package.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FailedStage returns the stage err was raised at, if any.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}

// EventSink is notified of every committed event.
type EventSink interface {
	OnCommitment(ev *types.CommitmentEvent)
	OnSettlement(ev *types.SettlementEvent)
}

// Config gathers the collaborators of an Engine.
type Config struct {
	Storage    *storage.Storage
	Access     *access.Control
	State      *state.State
	Nullifiers *nullifier.Registry
	Ledger     ledger.TokenLedger
	Relayers   *relayer.Registry
	Verifier   verifier.Options
	Sink       EventSink
}

// Engine settles deposits and withdrawals.
type Engine struct {
	st         *storage.Storage
	access     *access.Control
	state      *state.State
	nullifiers *nullifier.Registry
	ledger     ledger.TokenLedger
	relayers   *relayer.Registry
	verifiers  verifier.Options
	sink       EventSink
	now        func() time.Time
}

// New returns an engine wired to the collaborators in cfg. Relayers and
// Sink are optional.
func New(cfg Config) (*Engine, error) {
	switch {
	case cfg.Storage == nil:
		return nil, fmt.Errorf("settlement: missing storage")
	case cfg.Access == nil:
		return nil, fmt.Errorf("settlement: missing access control")
	case cfg.State == nil:
		return nil, fmt.Errorf("settlement: missing pool state")
	case cfg.Nullifiers == nil:
		return nil, fmt.Errorf("settlement: missing nullifier registry")
	case cfg.Ledger == nil:
		return nil, fmt.Errorf("settlement: missing token ledger")
	}
	return &Engine{
		st:         cfg.Storage,
		access:     cfg.Access,
		state:      cfg.State,
		nullifiers: cfg.Nullifiers,
		ledger:     cfg.Ledger,
		relayers:   cfg.Relayers,
		verifiers:  cfg.Verifier,
		sink:       cfg.Sink,
		now:        time.Now,
	}, nil
}

// Withdraw settles a withdrawal request and returns the emitted event.
func (e *Engine) Withdraw(ctx context.Context, req *types.WithdrawRequest) (*types.SettlementEvent, error) {
	ev, err := e.withdraw(ctx, req)
	if err != nil {
		stage, _ := FailedStage(err)
		if stage == StageCommit {
			log.Errorw(err, "withdrawal commit failed", "nullifier", req.Nullifier.Hex())
			return nil, err
		}
		log.Debugw("withdrawal rejected",
			"stage", string(stage),
			"nullifier", req.Nullifier.Hex(),
			"recipient", req.Recipient.Hex(),
			"error", err.Error())
		return nil, err
	}
	log.Infow("withdrawal settled",
		"nullifier", ev.Nullifier.Hex(),
		"recipient", ev.Recipient.Hex(),
		"amount", ev.Amount)
	if e.sink != nil {
		e.sink.OnSettlement(ev)
	}
	return ev, nil
}

func (e *Engine) withdraw(ctx context.Context, req *types.WithdrawRequest) (*types.SettlementEvent, error) {
	if req.Amount == 0 {
		return nil, &StageError{StageRequest, fmt.Errorf("%w: zero withdrawal", types.ErrInvalidAmount)}
	}
	if req.Relayer != (common.Address{}) && e.relayers == nil {
		return nil, &StageError{StageRequest, fmt.Errorf("%w: relayers are not enabled", relayer.ErrRelayerNotRegistered)}
	}
	// one policy snapshot for the whole operation
	cfg, err := e.access.Snapshot()
	if err != nil {
		return nil, &StageError{StageRequest, err}
	}
	if cfg.Paused {
		return nil, &StageError{StagePause, types.ErrContractPaused}
	}
	if cfg.IsDenied(req.Recipient) {
		return nil, &StageError{StageDeny, fmt.Errorf("%w: recipient %s", types.ErrDenyListBlocked, req.Recipient.Hex())}
	}
	root, err := e.state.Root()
	if err != nil {
		return nil, &StageError{StageRoot, err}
	}
	if req.Root != root {
		return nil, &StageError{StageRoot, fmt.Errorf("%w: got %s, current %s", types.ErrRootMismatch, req.Root.Hex(), root.Hex())}
	}
	v, err := verifier.New(cfg.VerifierMode, cfg.VerifierMagic, e.verifiers)
	if err != nil {
		return nil, &StageError{StageProof, err}
	}
	if err := v.Verify(ctx, &verifier.Input{
		Proof:        req.Proof,
		PublicInputs: req.PublicInputs,
		Target:       req.VerifierTarget,
	}); err != nil {
		return nil, &StageError{StageProof, err}
	}

	chunk, bit := nullifier.Position(req.Nullifier)
	keys := append([]string{nullifier.LockKey(chunk)}, e.ledger.LockKeys(cfg.Custody, req.Recipient)...)
	if req.Relayer != (common.Address{}) {
		keys = append(keys, relayer.LockKey(req.Relayer))
	}
	unlock := e.st.Locks().Lock(keys...)
	defer unlock()

	wTx := e.st.WriteTx()
	defer wTx.Discard()

	if req.Relayer != (common.Address{}) {
		if err := e.relayers.ConsumeTx(wTx, req.Relayer); err != nil {
			return nil, &StageError{StageRelayer, err}
		}
	}
	if err := e.nullifiers.MarkIfUnused(wTx, chunk, bit); err != nil {
		return nil, &StageError{StageNullifier, err}
	}
	if err := e.ledger.Transfer(wTx, cfg.Custody, req.Recipient, req.Amount); err != nil {
		return nil, &StageError{StageTransfer, err}
	}
	ev := &types.SettlementEvent{
		Nullifier: req.Nullifier,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Relayer:   req.Relayer,
		Timestamp: e.now().Unix(),
	}
	if err := e.st.AddSettlementEventTx(wTx, ev); err != nil {
		return nil, &StageError{StageEmit, err}
	}
	if err := wTx.Commit(); err != nil {
		return nil, &StageError{StageCommit, err}
	}
	return ev, nil
}

// Deposit moves the deposited amount into custody, overwrites the pool root
// with the commitment and returns the emitted event. The encrypted note is
// stored as given.
func (e *Engine) Deposit(_ context.Context, req *types.DepositRequest) (*types.CommitmentEvent, error) {
	ev, err := e.deposit(req)
	if err != nil {
		stage, _ := FailedStage(err)
		if stage == StageCommit {
			log.Errorw(err, "deposit commit failed", "depositor", req.Depositor.Hex())
			return nil, err
		}
		log.Debugw("deposit rejected",
			"stage", string(stage),
			"depositor", req.Depositor.Hex(),
			"commitment", req.Commitment.Hex(),
			"error", err.Error())
		return nil, err
	}
	log.Infow("deposit accepted",
		"depositor", ev.Depositor.Hex(),
		"commitment", ev.Commitment.Hex(),
		"amount", ev.Amount)
	if e.sink != nil {
		e.sink.OnCommitment(ev)
	}
	return ev, nil
}

func (e *Engine) deposit(req *types.DepositRequest) (*types.CommitmentEvent, error) {
	if req.Amount == 0 {
		return nil, &StageError{StageRequest, fmt.Errorf("%w: zero deposit", types.ErrInvalidAmount)}
	}
	cfg, err := e.access.Snapshot()
	if err != nil {
		return nil, &StageError{StageRequest, err}
	}
	if cfg.IsDenied(req.Depositor) {
		return nil, &StageError{StageDeny, fmt.Errorf("%w: depositor %s", types.ErrDenyListBlocked, req.Depositor.Hex())}
	}

	keys := append(e.ledger.LockKeys(req.Depositor, cfg.Custody), state.LockKey())
	if req.Nonce != 0 {
		keys = append(keys, storage.NonceLockKey(req.Depositor))
	}
	unlock := e.st.Locks().Lock(keys...)
	defer unlock()

	wTx := e.st.WriteTx()
	defer wTx.Discard()

	if req.Nonce != 0 {
		if err := e.st.UseNonceTx(wTx, req.Depositor, req.Nonce); err != nil {
			return nil, &StageError{StageRequest, err}
		}
	}
	if err := e.ledger.Transfer(wTx, req.Depositor, cfg.Custody, req.Amount); err != nil {
		return nil, &StageError{StageTransfer, err}
	}
	if err := e.state.SetRootTx(wTx, req.Commitment); err != nil {
		return nil, &StageError{StageRootUpdate, err}
	}
	ev := &types.CommitmentEvent{
		Depositor:     req.Depositor,
		Commitment:    req.Commitment,
		Amount:        req.Amount,
		Root:          req.Commitment,
		EncryptedNote: req.EncryptedNote,
		Timestamp:     e.now().Unix(),
	}
	if err := e.st.AddCommitmentEventTx(wTx, ev); err != nil {
		return nil, &StageError{StageEmit, err}
	}
	if err := wTx.Commit(); err != nil {
		return nil, &StageError{StageCommit, err}
	}
	return ev, nil
}

// CommitmentEvents returns every committed deposit event in emission order.
func (e *Engine) CommitmentEvents() ([]*types.CommitmentEvent, error) {
	return e.st.CommitmentEvents()
}

// SettlementEvents returns every committed withdrawal event.
func (e *Engine) SettlementEvents() ([]*types.SettlementEvent, error) {
	return e.st.SettlementEvents()
}
