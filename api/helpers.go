package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/crypto/signatures/ethereum"
	"github.com/vocdoni/davinci-pool/log"
)

// maxRequestBodySize bounds every request body, proofs included.
const maxRequestBodySize = 1 << 20

// httpWriteJSON helper function allows to write a JSON response.
func httpWriteJSON(w http.ResponseWriter, data any) {
	jdata, err := json.Marshal(data)
	if err != nil {
		ErrMarshalingServerJSONFailed.WithErr(err).Write(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	n, err := w.Write(jdata)
	if err != nil {
		log.Warnw("failed to write http response", "error", err)
		return
	}
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
		return
	}
	if !DisabledLogging && log.Level() == log.LogLevelDebug {
		log.Debugw("api response", "bytes", n, "data", strings.ReplaceAll(string(jdata), "\"", ""))
	}
}

// httpWriteOK helper function allows to write an OK response.
func httpWriteOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("\n")); err != nil {
		log.Warnw("failed to write on response", "error", err)
	}
}

// writeError writes err as an API error. Errors that are already API errors
// are written as they are, anything else goes through toAPIError.
func writeError(w http.ResponseWriter, err error) {
	var apiErr Error
	if errors.As(err, &apiErr) {
		apiErr.Write(w)
		return
	}
	toAPIError(err).Write(w)
}

// decodeJSON decodes the request body into out, rejecting unknown fields
// and bodies larger than maxRequestBodySize.
func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return ErrMalformedBody.WithErr(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ErrMalformedBody.With("trailing data after JSON body")
	}
	return nil
}

// decodeSigned decodes a SignedRequest, recovers the address that signed its
// payload and decodes the payload into out. It also returns the payload
// nonce, which must be set.
func decodeSigned(w http.ResponseWriter, r *http.Request, out any) (common.Address, uint64, error) {
	req := &SignedRequest{}
	if err := decodeJSON(w, r, req); err != nil {
		return common.Address{}, 0, err
	}
	if len(req.Payload) == 0 {
		return common.Address{}, 0, ErrMalformedBody.With("missing payload")
	}
	signer, err := ethereum.AddrFromSignature(req.Payload, req.Signature)
	if err != nil {
		return common.Address{}, 0, ErrInvalidSignature.WithErr(err)
	}
	var replay struct {
		Nonce uint64 `json:"nonce"`
	}
	if err := json.Unmarshal(req.Payload, &replay); err != nil {
		return common.Address{}, 0, ErrMalformedBody.Withf("payload: %v", err)
	}
	if replay.Nonce == 0 {
		return common.Address{}, 0, ErrMissingNonce
	}
	if err := json.Unmarshal(req.Payload, out); err != nil {
		return common.Address{}, 0, ErrMalformedBody.Withf("payload: %v", err)
	}
	return signer, replay.Nonce, nil
}

// decodeAdmin decodes a signed admin request, checks that the pool authority
// signed it and consumes its nonce. The nonce is spent even if the
// operation then fails, so a captured request never runs twice.
func (a *API) decodeAdmin(w http.ResponseWriter, r *http.Request, out any) (common.Address, error) {
	signer, nonce, err := decodeSigned(w, r, out)
	if err != nil {
		return common.Address{}, err
	}
	if err := a.access.Authorize(signer); err != nil {
		return common.Address{}, err
	}
	if err := a.storage.UseNonce(signer, nonce); err != nil {
		return common.Address{}, err
	}
	return signer, nil
}

// NewSignedRequest signs the JSON encoding of payload with signer. Clients
// and tests use it to build the body of signed endpoints.
func NewSignedRequest(signer *ethereum.Signer, payload any) (*SignedRequest, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("could not encode payload: %w", err)
	}
	sig, err := signer.Sign(data)
	if err != nil {
		return nil, err
	}
	return &SignedRequest{Payload: data, Signature: sig.HexBytes()}, nil
}
