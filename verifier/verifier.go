// Package verifier implements the proof acceptance policies of the pool. A
// Verifier is selected per settlement from the verifier mode of the pool
// configuration snapshot; each mode is a distinct type with its own Verify.
package verifier

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vocdoni/davinci-pool/types"
)

// Input is the material a verifier judges. PublicInputs is only read by the
// structural verifier and Target only by the delegated one.
type Input struct {
	Proof        []byte
	PublicInputs []string
	Target       string
}

// Verifier accepts or rejects a proof. Rejections are errors wrapping one of
// the proof validation errors of the types package.
type Verifier interface {
	Verify(ctx context.Context, in *Input) error
	Mode() types.VerifierMode
}

// Options holds the long-lived collaborators shared by every verifier built
// with New.
type Options struct {
	// Cache memoizes structural verification outcomes. Optional.
	Cache *Cache
	// Service is the external acceptor used in delegated mode. Optional;
	// without it delegated verification always fails.
	Service Service
}

// New returns the verifier of mode. magic is copied.
func New(mode types.VerifierMode, magic []byte, opts Options) (Verifier, error) {
	switch mode {
	case types.VerifierModeDisabled:
		return Disabled{}, nil
	case types.VerifierModeStubMagic:
		return StubMagic{Magic: bytes.Clone(magic)}, nil
	case types.VerifierModeDelegated:
		return Delegated{Magic: bytes.Clone(magic), Service: opts.Service}, nil
	case types.VerifierModeStructuralPlonk:
		return StructuralPlonk{Cache: opts.Cache}, nil
	default:
		return nil, fmt.Errorf("%w: %d", types.ErrInvalidVerifierMode, mode)
	}
}

// Disabled accepts any non-empty proof. It is a placeholder, not a security
// control.
type Disabled struct{}

func (Disabled) Mode() types.VerifierMode { return types.VerifierModeDisabled }

func (Disabled) Verify(_ context.Context, in *Input) error {
	if len(in.Proof) == 0 {
		return fmt.Errorf("%w: empty proof", types.ErrInvalidProof)
	}
	return nil
}

// StubMagic accepts a proof byte-equal to a configured non-empty magic.
type StubMagic struct {
	Magic []byte
}

func (StubMagic) Mode() types.VerifierMode { return types.VerifierModeStubMagic }

func (v StubMagic) Verify(_ context.Context, in *Input) error {
	return VerifyLegacy(in.Proof, v.Magic)
}

// VerifyLegacy is the magic-equality check kept for callers predating
// verifier modes. It never parses the proof.
func VerifyLegacy(proof, magic []byte) error {
	if len(magic) == 0 {
		return fmt.Errorf("%w: no magic configured", types.ErrInvalidProof)
	}
	if !bytes.Equal(proof, magic) {
		return types.ErrInvalidProof
	}
	return nil
}

// Delegated forwards the proof and magic to an external Service.
type Delegated struct {
	Magic   []byte
	Service Service
}

func (Delegated) Mode() types.VerifierMode { return types.VerifierModeDelegated }

func (v Delegated) Verify(ctx context.Context, in *Input) error {
	if in.Target == "" {
		return fmt.Errorf("%w: missing verifier target", types.ErrInvalidProof)
	}
	if v.Service == nil {
		return fmt.Errorf("%w: no delegated verifier available", types.ErrInvalidProof)
	}
	var magic []byte
	if len(v.Magic) > 0 {
		magic = v.Magic
	}
	if err := v.Service.Verify(ctx, in.Target, in.Proof, magic); err != nil {
		return fmt.Errorf("%w: delegated verifier %q: %v", types.ErrInvalidProof, in.Target, err)
	}
	return nil
}

// StructuralPlonk runs the format-level Plonk checks of VerifyStructure,
// memoizing outcomes in Cache when set.
type StructuralPlonk struct {
	Cache *Cache
}

func (StructuralPlonk) Mode() types.VerifierMode { return types.VerifierModeStructuralPlonk }

func (v StructuralPlonk) Verify(_ context.Context, in *Input) error {
	if v.Cache == nil {
		return VerifyStructure(in.Proof, in.PublicInputs)
	}
	key := CacheKey(in.Proof, in.PublicInputs)
	if err, ok := v.Cache.Get(key); ok {
		return err
	}
	err := VerifyStructure(in.Proof, in.PublicInputs)
	v.Cache.Add(key, err)
	return err
}
