package storage

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/vocdoni/davinci-pool/db"
	"github.com/vocdoni/davinci-pool/types"
)

// AddCommitmentEventTx assigns ev a time-ordered id and stages it in wTx.
func (s *Storage) AddCommitmentEventTx(wTx db.WriteTx, ev *types.CommitmentEvent) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("could not generate event id: %w", err)
	}
	ev.ID = id.String()
	return setArtifact(wTx, commitmentEventPrefix, id[:], ev)
}

// AddSettlementEventTx stages ev in wTx, keyed by its nullifier.
func (s *Storage) AddSettlementEventTx(wTx db.WriteTx, ev *types.SettlementEvent) error {
	return setArtifact(wTx, settlementEventPrefix, ev.Nullifier.Bytes(), ev)
}

// CommitmentEvents returns every stored commitment event in emission order.
func (s *Storage) CommitmentEvents() ([]*types.CommitmentEvent, error) {
	var events []*types.CommitmentEvent
	err := listArtifacts(s.db, commitmentEventPrefix, func(_, data []byte) error {
		ev := &types.CommitmentEvent{}
		if err := DecodeArtifact(data, ev); err != nil {
			return fmt.Errorf("could not decode commitment event: %w", err)
		}
		events = append(events, ev)
		return nil
	})
	return events, err
}

// SettlementEvents returns every stored settlement event, ordered by
// nullifier.
func (s *Storage) SettlementEvents() ([]*types.SettlementEvent, error) {
	var events []*types.SettlementEvent
	err := listArtifacts(s.db, settlementEventPrefix, func(_, data []byte) error {
		ev := &types.SettlementEvent{}
		if err := DecodeArtifact(data, ev); err != nil {
			return fmt.Errorf("could not decode settlement event: %w", err)
		}
		events = append(events, ev)
		return nil
	})
	return events, err
}

// SettlementEvent returns the settlement recorded for nullifier, or
// ErrNotFound.
func (s *Storage) SettlementEvent(nullifier common.Hash) (*types.SettlementEvent, error) {
	ev := &types.SettlementEvent{}
	if err := getArtifact(s.db, settlementEventPrefix, nullifier.Bytes(), ev); err != nil {
		return nil, err
	}
	return ev, nil
}
