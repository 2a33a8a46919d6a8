package types

import "github.com/ethereum/go-ethereum/common"

// CommitmentEvent is the audit record emitted by a deposit. EncryptedNote is
// forwarded untouched for off-chain holders of a view key.
type CommitmentEvent struct {
	ID            string         `json:"id" cbor:"0,keyasint"`
	Depositor     common.Address `json:"depositor" cbor:"1,keyasint"`
	Commitment    common.Hash    `json:"commitment" cbor:"2,keyasint"`
	Amount        uint64         `json:"amount" cbor:"3,keyasint"`
	Root          common.Hash    `json:"root" cbor:"4,keyasint"`
	EncryptedNote HexBytes       `json:"encryptedNote,omitempty" cbor:"5,keyasint,omitempty"`
	Timestamp     int64          `json:"timestamp" cbor:"6,keyasint"`
}

// SettlementEvent is the audit record emitted by a successful withdrawal.
type SettlementEvent struct {
	Nullifier common.Hash    `json:"nullifier" cbor:"0,keyasint"`
	Recipient common.Address `json:"recipient" cbor:"1,keyasint"`
	Amount    uint64         `json:"amount" cbor:"2,keyasint"`
	Relayer   common.Address `json:"relayer,omitzero" cbor:"3,keyasint,omitempty"`
	Timestamp int64          `json:"timestamp" cbor:"4,keyasint"`
}
