package ethereum

import (
	"bytes"
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Signer wraps an ECDSA private key and signs Ethereum personal messages
// (keccak256 over the prefixed message).
type Signer ecdsa.PrivateKey

// Address returns the Ethereum address derived from the public key of the signer.
func (s *Signer) Address() common.Address {
	return ethcrypto.PubkeyToAddress(s.PublicKey)
}

// Sign signs msg with the Ethereum message prefix.
func (s *Signer) Sign(msg []byte) (*ECDSASignature, error) {
	ethSignature, err := ethcrypto.Sign(HashMessage(msg), (*ecdsa.PrivateKey)(s))
	if err != nil {
		return nil, fmt.Errorf("could not sign message: %w", err)
	}
	return BytesToSignature(ethSignature)
}

// NewSigner creates a signer with a fresh random key.
func NewSigner() (*Signer, error) {
	s, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("could not generate key: %w", err)
	}
	return (*Signer)(s), nil
}

// NewSignerFromHex creates a signer from a hex-encoded private key.
func NewSignerFromHex(hexKey string) (*Signer, error) {
	s, err := ethcrypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("could not load key: %w", err)
	}
	return (*Signer)(s), nil
}

// NewSignerFromSeed derives a signer from the keccak256 hash of seed, so any
// seed length works. Meant for tests and development setups.
func NewSignerFromSeed(seed []byte) (*Signer, error) {
	s, err := ethcrypto.ToECDSA(ethcrypto.Keccak256(seed))
	if err != nil {
		return nil, fmt.Errorf("could not derive key: %w", err)
	}
	return (*Signer)(s), nil
}

// HashMessage performs a keccak256 hash over the data adding Ethereum Message
// prefix.
func HashMessage(data []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s%d%s", SigningPrefix, len(data), data)
	return ethcrypto.Keccak256(buf.Bytes())
}
