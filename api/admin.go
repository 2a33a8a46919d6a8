package api

import (
	"math"
	"net/http"
	"time"

	"github.com/vocdoni/davinci-pool/log"
)

// Every handler in this file decodes a SignedRequest through decodeAdmin and
// acts on behalf of its signer.

// setVerifier selects the verifier mode and magic.
// POST /admin/verifier
func (a *API) setVerifier(w http.ResponseWriter, r *http.Request) {
	req := &VerifierRequest{}
	signer, err := a.decodeAdmin(w, r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.access.SetVerifierMode(signer, req.Mode, req.Magic); err != nil {
		writeError(w, err)
		return
	}
	httpWriteOK(w)
}

// addToDenyList blocks an address.
// POST /admin/denylist
func (a *API) addToDenyList(w http.ResponseWriter, r *http.Request) {
	req := &AddressRequest{}
	signer, err := a.decodeAdmin(w, r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.access.AddToDenyList(signer, req.Address); err != nil {
		writeError(w, err)
		return
	}
	httpWriteOK(w)
}

// removeFromDenyList unblocks an address.
// DELETE /admin/denylist
func (a *API) removeFromDenyList(w http.ResponseWriter, r *http.Request) {
	req := &AddressRequest{}
	signer, err := a.decodeAdmin(w, r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.access.RemoveFromDenyList(signer, req.Address); err != nil {
		writeError(w, err)
		return
	}
	httpWriteOK(w)
}

// setPause pauses or resumes withdrawals.
// POST /admin/pause
func (a *API) setPause(w http.ResponseWriter, r *http.Request) {
	req := &PauseRequest{}
	signer, err := a.decodeAdmin(w, r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.access.SetPause(signer, req.Paused); err != nil {
		writeError(w, err)
		return
	}
	httpWriteOK(w)
}

// updateRoot overwrites the pool root.
// POST /admin/root
func (a *API) updateRoot(w http.ResponseWriter, r *http.Request) {
	req := &RootRequest{}
	signer, err := a.decodeAdmin(w, r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := a.state.UpdateRoot(signer, req.Root); err != nil {
		writeError(w, err)
		return
	}
	httpWriteOK(w)
}

// createChunk provisions a nullifier chunk.
// POST /admin/chunks
func (a *API) createChunk(w http.ResponseWriter, r *http.Request) {
	req := &ChunkRequest{}
	if _, err := a.decodeAdmin(w, r, req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.nullifiers.CreateChunk(req.Index); err != nil {
		writeError(w, err)
		return
	}
	log.Infow("nullifier chunk created", "index", req.Index)
	httpWriteOK(w)
}

// initRelayer registers a relayer with its rate limit.
// POST /admin/relayers
func (a *API) initRelayer(w http.ResponseWriter, r *http.Request) {
	req := &RelayerRequest{}
	signer, err := a.decodeAdmin(w, r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.WindowSeconds > uint64(math.MaxInt64/int64(time.Second)) {
		ErrInvalidRelayerLimits.Withf("window of %d seconds is too large", req.WindowSeconds).Write(w)
		return
	}
	window := time.Duration(req.WindowSeconds) * time.Second
	if err := a.relayers.InitRelayer(signer, req.Relayer, req.Limit, window); err != nil {
		writeError(w, err)
		return
	}
	httpWriteOK(w)
}
