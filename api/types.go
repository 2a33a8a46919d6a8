package api

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/types"
)

// SignedRequest wraps a JSON payload with the Ethereum personal-message
// signature of its author. The signature covers the payload bytes exactly as
// sent, so clients must sign the serialized payload they put on the wire.
// Every payload carries a "nonce" greater than the last one accepted from
// the same signer.
type SignedRequest struct {
	Payload   json.RawMessage `json:"payload"`
	Signature types.HexBytes  `json:"signature"`
}

// WithdrawalRequest is the body of POST /withdrawals. When Relayer is set,
// RelayerSignature must be the relayer's signature over the nullifier bytes.
type WithdrawalRequest struct {
	types.WithdrawRequest
	RelayerSignature types.HexBytes `json:"relayerSignature,omitempty"`
}

// VerifierRequest is the signed payload of POST /admin/verifier.
type VerifierRequest struct {
	Mode  types.VerifierMode `json:"mode"`
	Magic types.HexBytes     `json:"magic,omitempty"`
	Nonce uint64             `json:"nonce"`
}

// AddressRequest is the signed payload of the deny-list endpoints.
type AddressRequest struct {
	Address common.Address `json:"address"`
	Nonce   uint64         `json:"nonce"`
}

// PauseRequest is the signed payload of POST /admin/pause.
type PauseRequest struct {
	Paused bool   `json:"paused"`
	Nonce  uint64 `json:"nonce"`
}

// RootRequest is the signed payload of POST /admin/root.
type RootRequest struct {
	Root  common.Hash `json:"root"`
	Nonce uint64      `json:"nonce"`
}

// ChunkRequest is the signed payload of POST /admin/chunks.
type ChunkRequest struct {
	Index uint64 `json:"index"`
	Nonce uint64 `json:"nonce"`
}

// RelayerRequest is the signed payload of POST /admin/relayers.
type RelayerRequest struct {
	Relayer       common.Address `json:"relayer"`
	Limit         uint64         `json:"limit"`
	WindowSeconds uint64         `json:"windowSeconds"`
	Nonce         uint64         `json:"nonce"`
}

// PoolInfo is the response of GET /pool.
type PoolInfo struct {
	Authority        common.Address   `json:"authority"`
	Custody          common.Address   `json:"custody"`
	DenyList         []common.Address `json:"denyList"`
	VerifierMode     uint8            `json:"verifierMode"`
	VerifierModeName string           `json:"verifierModeName"`
	VerifierMagic    types.HexBytes   `json:"verifierMagic,omitempty"`
	Paused           bool             `json:"paused"`
	Root             common.Hash      `json:"root"`
	Chunks           []uint64         `json:"chunks"`
}

// NullifierStatus is the response of GET /nullifiers/{nullifier}. A nullifier
// whose chunk was never created reports Spent, since no withdrawal can use it.
type NullifierStatus struct {
	Nullifier    common.Hash            `json:"nullifier"`
	Chunk        uint64                 `json:"chunk"`
	Bit          uint64                 `json:"bit"`
	ChunkCreated bool                   `json:"chunkCreated"`
	Spent        bool                   `json:"spent"`
	Settlement   *types.SettlementEvent `json:"settlement,omitempty"`
}

// BalanceResponse is the response of GET /balances/{address}.
type BalanceResponse struct {
	Address common.Address `json:"address"`
	Balance uint64         `json:"balance"`
}

// RelayerInfo is the response of GET /relayers/{address}.
type RelayerInfo struct {
	Relayer       common.Address `json:"relayer"`
	Limit         uint64         `json:"limit"`
	WindowSeconds uint64         `json:"windowSeconds"`
	WindowStart   int64          `json:"windowStart"`
	Count         uint64         `json:"count"`
}

// CommitmentEventList is the response of GET /events/commitments.
type CommitmentEventList struct {
	Events []*types.CommitmentEvent `json:"events"`
}

// SettlementEventList is the response of GET /events/settlements.
type SettlementEventList struct {
	Events []*types.SettlementEvent `json:"events"`
}
