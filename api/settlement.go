package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/crypto/signatures/ethereum"
	"github.com/vocdoni/davinci-pool/types"
)

// newDeposit settles a deposit signed by the depositor. The depositor is the
// signer; a depositor field in the payload must match it. The payload nonce
// is consumed in the settlement transaction.
// POST /deposits
func (a *API) newDeposit(w http.ResponseWriter, r *http.Request) {
	req := &types.DepositRequest{}
	signer, nonce, err := decodeSigned(w, r, req)
	if err != nil {
		writeError(w, err)
		return
	}
	if req.Depositor != (common.Address{}) && req.Depositor != signer {
		ErrUnauthorized.Withf("depositor %s does not match signer %s", req.Depositor.Hex(), signer.Hex()).Write(w)
		return
	}
	req.Depositor = signer
	req.Nonce = nonce
	ev, err := a.engine.Deposit(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	httpWriteJSON(w, ev)
}

// newWithdrawal settles a withdrawal. The proof authorizes the request; a
// relayer named in it must also sign the nullifier so its budget cannot be
// spent by others.
// POST /withdrawals
func (a *API) newWithdrawal(w http.ResponseWriter, r *http.Request) {
	req := &WithdrawalRequest{}
	if err := decodeJSON(w, r, req); err != nil {
		writeError(w, err)
		return
	}
	if req.Relayer != (common.Address{}) {
		if len(req.RelayerSignature) == 0 {
			ErrMissingRelayerSigning.Write(w)
			return
		}
		signer, err := ethereum.AddrFromSignature(req.Nullifier.Bytes(), req.RelayerSignature)
		if err != nil {
			ErrInvalidSignature.WithErr(err).Write(w)
			return
		}
		if signer != req.Relayer {
			ErrUnauthorized.Withf("relayer %s does not match signer %s", req.Relayer.Hex(), signer.Hex()).Write(w)
			return
		}
	}
	ev, err := a.engine.Withdraw(r.Context(), &req.WithdrawRequest)
	if err != nil {
		writeError(w, err)
		return
	}
	httpWriteJSON(w, ev)
}
