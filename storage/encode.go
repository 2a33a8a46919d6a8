package storage

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

var (
	encModeOnce sync.Once
	encMode     cbor.EncMode
	encModeErr  error
)

func artifactEncMode() (cbor.EncMode, error) {
	encModeOnce.Do(func() {
		encMode, encModeErr = cbor.CoreDetEncOptions().EncMode()
	})
	return encMode, encModeErr
}

// EncodeArtifact encodes an artifact into deterministic CBOR, so equal
// records always produce equal bytes.
func EncodeArtifact(a any) ([]byte, error) {
	em, err := artifactEncMode()
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return em.Marshal(a)
}

// DecodeArtifact decodes a CBOR-encoded artifact into the provided output
// variable.
func DecodeArtifact(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}
