package types

import "errors"

// Settlement error taxonomy. Components wrap these with context using
// fmt.Errorf("%w: ...") so callers match them with errors.Is.
var (
	// Authorization
	ErrUnauthorized = errors.New("unauthorized")

	// Policy
	ErrContractPaused  = errors.New("contract paused")
	ErrDenyListBlocked = errors.New("address is deny-listed")

	// State conflict
	ErrRootMismatch         = errors.New("root mismatch")
	ErrNullifierAlreadyUsed = errors.New("nullifier already used")

	// Proof validation
	ErrInvalidProof              = errors.New("invalid proof")
	ErrProofParsingFailed        = errors.New("proof parsing failed")
	ErrFieldElementParsingFailed = errors.New("field element parsing failed")
	ErrFieldElementOutOfRange    = errors.New("field element out of range")
	ErrMissingEvaluations        = errors.New("missing evaluations")
	ErrInvalidPublicInput        = errors.New("invalid public input")
	ErrInvalidPublicInputsCount  = errors.New("invalid public inputs count")
	ErrInvalidCurvePoint         = errors.New("invalid curve point")
	ErrInvalidHexFormat          = errors.New("invalid hex format")
	ErrMissingMerkleProof        = errors.New("missing merkle proof")

	// Request validation
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidVerifierMode = errors.New("invalid verifier mode")
	ErrNonceUsed           = errors.New("nonce already used")

	// Pool lifecycle
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrAlreadyInitialized = errors.New("pool already initialized")
)
