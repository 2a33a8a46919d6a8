package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/vocdoni/davinci-pool/nullifier"
	"github.com/vocdoni/davinci-pool/relayer"
	"github.com/vocdoni/davinci-pool/storage"
	"github.com/vocdoni/davinci-pool/types"
)

// poolInfo returns the pool policy, the current root and the provisioned
// nullifier chunks.
// GET /pool
func (a *API) poolInfo(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.access.Snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	root, err := a.state.Root()
	if err != nil {
		writeError(w, err)
		return
	}
	chunks, err := a.nullifiers.Chunks()
	if err != nil {
		writeError(w, err)
		return
	}
	httpWriteJSON(w, &PoolInfo{
		Authority:        cfg.Authority,
		Custody:          cfg.Custody,
		DenyList:         cfg.DenyList,
		VerifierMode:     uint8(cfg.VerifierMode),
		VerifierModeName: cfg.VerifierMode.String(),
		VerifierMagic:    cfg.VerifierMagic,
		Paused:           cfg.Paused,
		Root:             root,
		Chunks:           chunks,
	})
}

// nullifierStatus reports whether a nullifier can still be spent.
// GET /nullifiers/{nullifier}
func (a *API) nullifierStatus(w http.ResponseWriter, r *http.Request) {
	n, err := types.HexStringToHash(chi.URLParam(r, NullifierURLParam))
	if err != nil {
		ErrMalformedNullifier.WithErr(err).Write(w)
		return
	}
	chunk, bit := nullifier.Position(n)
	status := &NullifierStatus{
		Nullifier: n,
		Chunk:     chunk,
		Bit:       bit,
	}
	if _, err := a.nullifiers.Chunk(chunk); err == nil {
		status.ChunkCreated = true
	} else if !errors.Is(err, storage.ErrNotFound) {
		writeError(w, err)
		return
	}
	if status.Spent, err = a.nullifiers.IsSpent(n); err != nil {
		writeError(w, err)
		return
	}
	ev, err := a.storage.SettlementEvent(n)
	switch {
	case err == nil:
		status.Settlement = ev
	case !errors.Is(err, storage.ErrNotFound):
		writeError(w, err)
		return
	}
	httpWriteJSON(w, status)
}

// balance returns the ledger balance of an address.
// GET /balances/{address}
func (a *API) balance(w http.ResponseWriter, r *http.Request) {
	addr, err := types.HexStringToAddress(chi.URLParam(r, AddressURLParam))
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	bal, err := a.ledger.Balance(addr)
	if err != nil {
		writeError(w, err)
		return
	}
	httpWriteJSON(w, &BalanceResponse{Address: addr, Balance: bal})
}

// relayer returns the rate limit state of a registered relayer.
// GET /relayers/{address}
func (a *API) relayer(w http.ResponseWriter, r *http.Request) {
	addr, err := types.HexStringToAddress(chi.URLParam(r, AddressURLParam))
	if err != nil {
		ErrMalformedAddress.WithErr(err).Write(w)
		return
	}
	rs, err := a.relayers.Relayer(addr)
	if err != nil {
		if errors.Is(err, relayer.ErrRelayerNotRegistered) {
			ErrResourceNotFound.WithErr(err).Write(w)
			return
		}
		writeError(w, err)
		return
	}
	httpWriteJSON(w, &RelayerInfo{
		Relayer:       rs.Relayer,
		Limit:         rs.Limit,
		WindowSeconds: uint64(rs.Window.Seconds()),
		WindowStart:   rs.WindowStart,
		Count:         rs.Count,
	})
}

// commitmentEvents lists every committed deposit event.
// GET /events/commitments
func (a *API) commitmentEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := a.engine.CommitmentEvents()
	if err != nil {
		writeError(w, err)
		return
	}
	if evs == nil {
		evs = []*types.CommitmentEvent{}
	}
	httpWriteJSON(w, &CommitmentEventList{Events: evs})
}

// settlementEvents lists every committed withdrawal event.
// GET /events/settlements
func (a *API) settlementEvents(w http.ResponseWriter, r *http.Request) {
	evs, err := a.engine.SettlementEvents()
	if err != nil {
		writeError(w, err)
		return
	}
	if evs == nil {
		evs = []*types.SettlementEvent{}
	}
	httpWriteJSON(w, &SettlementEventList{Events: evs})
}
