//nolint:lll
package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/vocdoni/davinci-pool/crypto/signatures/ethereum"
	"github.com/vocdoni/davinci-pool/ledger"
	"github.com/vocdoni/davinci-pool/nullifier"
	"github.com/vocdoni/davinci-pool/relayer"
	"github.com/vocdoni/davinci-pool/types"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the user's fault,
// and they return HTTP Status 400, 403, 404, 409 or 429, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX
// If you notice there's a gap (say, error code 4010, 4011 and 4013 exist, 4012 is missing) DON'T fill in the gap,
// that code was used in the past for some error (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrResourceNotFound      = Error{Code: 40001, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("resource not found")}
	ErrMalformedBody         = Error{Code: 40004, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrInvalidSignature      = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid signature")}
	ErrUnauthorized          = Error{Code: 40014, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("unauthorized")}
	ErrMalformedParam        = Error{Code: 40015, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed parameter")}
	ErrMalformedNullifier    = Error{Code: 40016, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed nullifier")}
	ErrMalformedAddress      = Error{Code: 40017, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed address")}
	ErrPoolPaused            = Error{Code: 40023, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("pool is paused")}
	ErrAddressDenied         = Error{Code: 40024, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("address is deny-listed")}
	ErrRootMismatch          = Error{Code: 40025, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("root mismatch")}
	ErrNullifierAlreadyUsed  = Error{Code: 40026, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("nullifier already used")}
	ErrInvalidProof          = Error{Code: 40027, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid proof")}
	ErrInvalidAmount         = Error{Code: 40028, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid amount")}
	ErrInsufficientBalance   = Error{Code: 40029, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("insufficient balance")}
	ErrRelayerNotRegistered  = Error{Code: 40030, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("relayer not registered")}
	ErrRelayerRateLimited    = Error{Code: 40031, HTTPstatus: http.StatusTooManyRequests, Err: fmt.Errorf("relayer rate limit exceeded")}
	ErrRelayerExists         = Error{Code: 40032, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("relayer already registered")}
	ErrChunkExists           = Error{Code: 40033, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("nullifier chunk already exists")}
	ErrInvalidVerifierMode   = Error{Code: 40034, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid verifier mode")}
	ErrInvalidRelayerLimits  = Error{Code: 40035, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("invalid relayer limits")}
	ErrMalformedHash         = Error{Code: 40036, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed hash")}
	ErrMissingRelayerSigning = Error{Code: 40037, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("relayed withdrawal requires a relayer signature")}
	ErrMissingNonce          = Error{Code: 40038, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("signed payload requires a non-zero nonce")}
	ErrNonceUsed             = Error{Code: 40039, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("nonce already used")}

	ErrMarshalingServerJSONFailed = Error{Code: 50001, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
	ErrPoolNotInitialized         = Error{Code: 50003, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("pool not initialized")}
)

// proofErrors are the structural and delegated proof failures, all reported
// under ErrInvalidProof with the detail of the original error.
var proofErrors = []error{
	types.ErrInvalidProof,
	types.ErrProofParsingFailed,
	types.ErrFieldElementParsingFailed,
	types.ErrFieldElementOutOfRange,
	types.ErrMissingEvaluations,
	types.ErrInvalidPublicInput,
	types.ErrInvalidPublicInputsCount,
	types.ErrInvalidCurvePoint,
	types.ErrInvalidHexFormat,
	types.ErrMissingMerkleProof,
}

// domainErrors maps the settlement error taxonomy to API errors.
var domainErrors = []struct {
	err error
	api Error
}{
	{types.ErrUnauthorized, ErrUnauthorized},
	{types.ErrContractPaused, ErrPoolPaused},
	{types.ErrDenyListBlocked, ErrAddressDenied},
	{types.ErrRootMismatch, ErrRootMismatch},
	{types.ErrNullifierAlreadyUsed, ErrNullifierAlreadyUsed},
	{types.ErrInvalidAmount, ErrInvalidAmount},
	{types.ErrInvalidVerifierMode, ErrInvalidVerifierMode},
	{types.ErrNonceUsed, ErrNonceUsed},
	{types.ErrNotInitialized, ErrPoolNotInitialized},
	{ledger.ErrInsufficientBalance, ErrInsufficientBalance},
	{relayer.ErrRelayerNotRegistered, ErrRelayerNotRegistered},
	{relayer.ErrRelayerRateLimited, ErrRelayerRateLimited},
	{relayer.ErrRelayerExists, ErrRelayerExists},
	{relayer.ErrInvalidLimits, ErrInvalidRelayerLimits},
	{nullifier.ErrChunkExists, ErrChunkExists},
	{ethereum.ErrInvalidSignature, ErrInvalidSignature},
}

// toAPIError translates err into the API error carrying its code. Unknown
// errors become ErrGenericInternalServerError.
func toAPIError(err error) Error {
	for _, e := range domainErrors {
		if errors.Is(err, e.err) {
			return e.api.WithErr(err)
		}
	}
	for _, e := range proofErrors {
		if errors.Is(err, e) {
			return ErrInvalidProof.WithErr(err)
		}
	}
	return ErrGenericInternalServerError.WithErr(err)
}
