// Package ethereum recovers and produces Ethereum personal-message ECDSA
// signatures. Pool administration and deposits are authenticated by the
// address recovered from these signatures.
package ethereum

import (
	"errors"
	"fmt"
	"math/big"

	gecdsa "github.com/consensys/gnark-crypto/ecc/secp256k1/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/vocdoni/davinci-pool/types"
)

const (
	// SignatureLength is the size of an ECDSA signature with recovery byte.
	SignatureLength = ethcrypto.SignatureLength
	// SigningPrefix is the prefix added when hashing Ethereum messages
	SigningPrefix = "\u0019Ethereum Signed Message:\n"
)

// ErrInvalidSignature is returned when a signature cannot be decoded or no
// public key can be recovered from it.
var ErrInvalidSignature = errors.New("invalid signature")

// ECDSASignature represents an Ethereum ECDSA signature. R and S are kept as
// big integers and the recovery id is normalized to 0..3.
type ECDSASignature struct {
	R        *big.Int
	S        *big.Int
	recovery byte
}

// BytesToSignature decodes a 65 byte [R || S || V] signature. V may be given
// either as 0..3 or with the Ethereum 27 offset.
func BytesToSignature(signature []byte) (*ECDSASignature, error) {
	if len(signature) != SignatureLength {
		return nil, fmt.Errorf("%w: length %d, expected %d", ErrInvalidSignature, len(signature), SignatureLength)
	}
	// R and S are decoded as fixed-size secp256k1 scalars
	var gsig gecdsa.Signature
	if _, err := gsig.SetBytes(signature[:64]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	v := signature[64]
	if v >= 27 {
		v -= 27
	}
	if v > 3 {
		return nil, fmt.Errorf("%w: recovery id %d", ErrInvalidSignature, signature[64])
	}
	return &ECDSASignature{
		R:        new(big.Int).SetBytes(gsig.R[:]),
		S:        new(big.Int).SetBytes(gsig.S[:]),
		recovery: v,
	}, nil
}

// HexToSignature decodes a hex string (with or without 0x) into a signature.
func HexToSignature(hexSignature string) (*ECDSASignature, error) {
	b, err := types.HexStringToHexBytes(hexSignature)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return BytesToSignature(b)
}

// Valid reports whether both R and S are set.
func (sig *ECDSASignature) Valid() bool {
	return sig != nil && sig.R != nil && sig.S != nil
}

// Bytes returns the 65 byte [R || S || V] encoding with V in 0..3, the
// layout expected by ethcrypto.SigToPub.
func (sig *ECDSASignature) Bytes() []byte {
	out := make([]byte, SignatureLength)
	sig.R.FillBytes(out[:32])
	sig.S.FillBytes(out[32:64])
	out[64] = sig.recovery
	return out
}

// HexBytes returns Bytes as types.HexBytes, with V shifted to 27/28 so the
// output matches what wallets produce.
func (sig *ECDSASignature) HexBytes() types.HexBytes {
	b := sig.Bytes()
	b[64] += 27
	return b
}

// Recover returns the address that signed msg.
func (sig *ECDSASignature) Recover(msg []byte) (common.Address, error) {
	if !sig.Valid() {
		return common.Address{}, fmt.Errorf("%w: missing R or S", ErrInvalidSignature)
	}
	pubKey, err := ethcrypto.SigToPub(HashMessage(msg), sig.Bytes())
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return ethcrypto.PubkeyToAddress(*pubKey), nil
}

// Verify checks that msg was signed by expected.
func (sig *ECDSASignature) Verify(msg []byte, expected common.Address) bool {
	addr, err := sig.Recover(msg)
	return err == nil && addr == expected
}

func (sig *ECDSASignature) String() string {
	return fmt.Sprintf("R: %s, S: %s, Recovery: %d", sig.R.String(), sig.S.String(), sig.recovery)
}

// AddrFromSignature recovers the Ethereum address that signed message from
// the raw signature bytes.
func AddrFromSignature(message, signature []byte) (common.Address, error) {
	sig, err := BytesToSignature(signature)
	if err != nil {
		return common.Address{}, err
	}
	return sig.Recover(message)
}
