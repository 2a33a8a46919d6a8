package verifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/vocdoni/davinci-pool/log"
	"github.com/vocdoni/davinci-pool/types"
)

// MinPublicInputs is the number of public inputs every proof carries: the
// claimed root and the claimed nullifier.
const MinPublicInputs = 2

// PlonkProof is the JSON wire form of a Plonk proof: every element is a hex
// string with an optional 0x prefix.
type PlonkProof struct {
	A          string `json:"a"`
	B          string `json:"b"`
	C          string `json:"c"`
	Z          string `json:"z"`
	T1         string `json:"t1"`
	T2         string `json:"t2"`
	T3         string `json:"t3"`
	Wxi        string `json:"wxi"`
	Wxiw       string `json:"wxiw"`
	AEval      string `json:"a_eval"`
	BEval      string `json:"b_eval"`
	CEval      string `json:"c_eval"`
	S1Eval     string `json:"s1_eval"`
	S2Eval     string `json:"s2_eval"`
	ZOmegaEval string `json:"z_omega_eval"`
}

// wirePlonkProof detects absent and null fields, which the value form
// cannot tell apart from empty strings.
type wirePlonkProof struct {
	A          *string `json:"a"`
	B          *string `json:"b"`
	C          *string `json:"c"`
	Z          *string `json:"z"`
	T1         *string `json:"t1"`
	T2         *string `json:"t2"`
	T3         *string `json:"t3"`
	Wxi        *string `json:"wxi"`
	Wxiw       *string `json:"wxiw"`
	AEval      *string `json:"a_eval"`
	BEval      *string `json:"b_eval"`
	CEval      *string `json:"c_eval"`
	S1Eval     *string `json:"s1_eval"`
	S2Eval     *string `json:"s2_eval"`
	ZOmegaEval *string `json:"z_omega_eval"`
}

// ParsePlonkProof decodes data as a JSON object holding exactly the fifteen
// proof fields, all strings. Anything else fails with
// types.ErrProofParsingFailed.
func ParsePlonkProof(data []byte) (*PlonkProof, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	w := &wirePlonkProof{}
	if err := dec.Decode(w); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrProofParsingFailed, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after proof object", types.ErrProofParsingFailed)
	}
	fields := []struct {
		name string
		v    *string
	}{
		{"a", w.A}, {"b", w.B}, {"c", w.C}, {"z", w.Z},
		{"t1", w.T1}, {"t2", w.T2}, {"t3", w.T3},
		{"wxi", w.Wxi}, {"wxiw", w.Wxiw},
		{"a_eval", w.AEval}, {"b_eval", w.BEval}, {"c_eval", w.CEval},
		{"s1_eval", w.S1Eval}, {"s2_eval", w.S2Eval}, {"z_omega_eval", w.ZOmegaEval},
	}
	for _, f := range fields {
		if f.v == nil {
			return nil, fmt.Errorf("%w: missing field %q", types.ErrProofParsingFailed, f.name)
		}
	}
	return &PlonkProof{
		A: *w.A, B: *w.B, C: *w.C, Z: *w.Z,
		T1: *w.T1, T2: *w.T2, T3: *w.T3,
		Wxi: *w.Wxi, Wxiw: *w.Wxiw,
		AEval: *w.AEval, BEval: *w.BEval, CEval: *w.CEval,
		S1Eval: *w.S1Eval, S2Eval: *w.S2Eval, ZOmegaEval: *w.ZOmegaEval,
	}, nil
}

// Evaluations returns the six evaluation scalars in wire order.
func (p *PlonkProof) Evaluations() []string {
	return []string{p.AEval, p.BEval, p.CEval, p.S1Eval, p.S2Eval, p.ZOmegaEval}
}

// WireCommitments returns the polynomial commitments a, b, c and z, the ones
// validated as curve points.
func (p *PlonkProof) WireCommitments() []string {
	return []string{p.A, p.B, p.C, p.Z}
}

// Commitments returns every commitment of the proof (a, b, c, z, t1, t2, t3)
// in transcript order.
func (p *PlonkProof) Commitments() []string {
	return []string{p.A, p.B, p.C, p.Z, p.T1, p.T2, p.T3}
}

// VerifyStructure runs the structural checks on a proof in a fixed order and
// returns the error of the first one violated:
//
//  1. proof parses (ErrProofParsingFailed)
//  2. at least two public inputs (ErrInvalidPublicInputsCount)
//  3. evaluations are hex field elements (ErrFieldElementParsingFailed, ErrFieldElementOutOfRange)
//  4. evaluations are present (ErrMissingEvaluations)
//  5. public inputs are field elements (ErrInvalidPublicInput)
//  6. a, b, c, z are curve points (ErrInvalidCurvePoint, ErrInvalidHexFormat)
//  7. the transcript challenge is derived
//  8. root and nullifier claims are usable (ErrMissingMerkleProof)
//
// No pairing or opening check is performed.
func VerifyStructure(proof []byte, publicInputs []string) error {
	p, err := ParsePlonkProof(proof)
	if err != nil {
		return err
	}
	if len(publicInputs) < MinPublicInputs {
		return fmt.Errorf("%w: got %d, want at least %d",
			types.ErrInvalidPublicInputsCount, len(publicInputs), MinPublicInputs)
	}
	evals := make([]uint64, 0, 6)
	for _, s := range p.Evaluations() {
		e, err := ParseHexFieldElement(s)
		if err != nil {
			return err
		}
		evals = append(evals, e)
	}
	// ParsePlonkProof guarantees six evaluations, so this and the merkle
	// checkpoint below only fail if the proof layout changes. They stay as
	// named checks to keep the error order fixed.
	if len(evals) == 0 {
		return types.ErrMissingEvaluations
	}
	inputs := make([]uint64, 0, len(publicInputs))
	for i, s := range publicInputs {
		v, err := ParseFieldElement(s)
		if err != nil {
			return fmt.Errorf("%w: index %d: %v", types.ErrInvalidPublicInput, i, err)
		}
		inputs = append(inputs, v)
	}
	for _, point := range p.WireCommitments() {
		if err := ValidateCurvePoint(point); err != nil {
			return err
		}
	}
	challenge := Challenge(p.Commitments(), publicInputs)
	if len(inputs) < MinPublicInputs || len(evals) == 0 {
		return types.ErrMissingMerkleProof
	}
	log.Debugw("structural proof accepted", "challenge", challenge, "root", inputs[0], "nullifier", inputs[1])
	return nil
}
