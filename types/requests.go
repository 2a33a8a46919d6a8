package types

import "github.com/ethereum/go-ethereum/common"

// WithdrawRequest carries everything a withdrawal settlement needs.
// PublicInputs is only consulted by the structural verifier, VerifierTarget
// only in delegated mode. A zero Relayer means the request was submitted
// directly by the recipient.
type WithdrawRequest struct {
	Proof          HexBytes       `json:"proof"`
	Nullifier      common.Hash    `json:"nullifier"`
	Root           common.Hash    `json:"root"`
	Amount         uint64         `json:"amount"`
	Recipient      common.Address `json:"recipient"`
	PublicInputs   []string       `json:"publicInputs,omitempty"`
	VerifierTarget string         `json:"verifierTarget,omitempty"`
	Relayer        common.Address `json:"relayer,omitzero"`
}

// DepositRequest moves Amount from Depositor into pool custody and records
// Commitment. A non-zero Nonce is consumed from the depositor's nonce
// sequence in the same transaction, so a signed deposit settles only once.
type DepositRequest struct {
	Depositor     common.Address `json:"depositor"`
	Amount        uint64         `json:"amount"`
	Commitment    common.Hash    `json:"commitment"`
	EncryptedNote HexBytes       `json:"encryptedNote,omitempty"`
	Nonce         uint64         `json:"nonce,omitempty"`
}
