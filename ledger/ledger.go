// Package ledger implements the token ledger the pool moves value through.
// Transfers are staged in the caller's write transaction so they commit or
// roll back together with the rest of a settlement.
package ledger

import (
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/storage"
	"github.com/vocdoni/davinci-pool/types"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// TokenLedger is the value-movement collaborator of the settlement engine.
type TokenLedger interface {
	// Transfer stages the movement of amount from one holder to another in
	// wTx. The caller must hold the keys returned by LockKeys.
	Transfer(wTx db.WriteTx, from, to common.Address, amount uint64) error
	// Balance returns the committed balance of addr.
	Balance(addr common.Address) (uint64, error)
	// LockKeys returns the keys serializing writers of the given holders.
	LockKeys(holders ...common.Address) []string
}

// Ledger is a TokenLedger keeping balances in the pool storage.
type Ledger struct {
	st *storage.Storage
}

var _ TokenLedger = (*Ledger)(nil)

// New returns a ledger backed by st.
func New(st *storage.Storage) *Ledger {
	return &Ledger{st: st}
}

func (l *Ledger) LockKeys(holders ...common.Address) []string {
	keys := make([]string, 0, len(holders))
	for _, h := range holders {
		keys = append(keys, storage.BalanceLockKey(h))
	}
	return keys
}

func (l *Ledger) Balance(addr common.Address) (uint64, error) {
	return l.st.Balance(addr)
}

func (l *Ledger) Transfer(wTx db.WriteTx, from, to common.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: zero transfer", types.ErrInvalidAmount)
	}
	fromBalance, err := l.st.BalanceTx(wTx, from)
	if err != nil {
		return err
	}
	if fromBalance < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientBalance, from.Hex(), fromBalance, amount)
	}
	if from == to {
		return nil
	}
	toBalance, err := l.st.BalanceTx(wTx, to)
	if err != nil {
		return err
	}
	if toBalance > math.MaxUint64-amount {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, to.Hex())
	}
	if err := l.st.SetBalanceTx(wTx, from, fromBalance-amount); err != nil {
		return err
	}
	return l.st.SetBalanceTx(wTx, to, toBalance+amount)
}

// Credit mints amount to addr. It funds depositors and custody outside the
// settlement flow.
func (l *Ledger) Credit(addr common.Address, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: zero credit", types.ErrInvalidAmount)
	}
	unlock := l.st.Locks().Lock(storage.BalanceLockKey(addr))
	defer unlock()

	wTx := l.st.WriteTx()
	defer wTx.Discard()
	balance, err := l.st.BalanceTx(wTx, addr)
	if err != nil {
		return err
	}
	if balance > math.MaxUint64-amount {
		return fmt.Errorf("%w: %s", ErrBalanceOverflow, addr.Hex())
	}
	if err := l.st.SetBalanceTx(wTx, addr, balance+amount); err != nil {
		return err
	}
	if err := wTx.Commit(); err != nil {
		return err
	}
	log.Debugw("ledger credit", "address", addr.Hex(), "amount", amount, "balance", balance+amount)
	return nil
}
