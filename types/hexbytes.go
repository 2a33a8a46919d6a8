package types

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/vocdoni/davinci-pool/util"
)

// HexBytes is a []byte which encodes as hexadecimal in json, as opposed to the
// base64 default.
type HexBytes []byte

// Bytes returns the underlying byte slice of the HexBytes.
func (b *HexBytes) Bytes() []byte {
	return *b
}

// Hex returns the hexadecimal string representation of the HexBytes.
func (b *HexBytes) Hex() string {
	return hex.EncodeToString(*b)
}

// String returns the hexadecimal string representation of the HexBytes,
// prefixed with "0x".
func (b *HexBytes) String() string {
	return "0x" + b.Hex()
}

// Equal reports whether b and other hold the same bytes.
func (b HexBytes) Equal(other HexBytes) bool {
	return bytes.Equal(b, other)
}

// MarshalJSON implements the json.Marshaler interface for HexBytes. It encodes
// the byte slice as a hexadecimal string prefixed with "0x".
func (b HexBytes) MarshalJSON() ([]byte, error) {
	enc := make([]byte, hex.EncodedLen(len(b))+4)
	enc[0] = '"'
	enc[1] = '0'
	enc[2] = 'x'
	hex.Encode(enc[3:], b)
	enc[len(enc)-1] = '"'
	return enc, nil
}

// UnmarshalJSON implements the json.Unmarshaler interface for HexBytes. It
// expects a JSON string containing a hexadecimal representation, optionally
// prefixed with "0x".
func (b *HexBytes) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("invalid JSON string: %q", data)
	}
	decoded, err := HexStringToHexBytes(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*b = decoded
	return nil
}

// HexStringToHexBytes converts a hex string to a HexBytes. A leading "0x" or
// "0X" is stripped.
func HexStringToHexBytes(hexString string) (HexBytes, error) {
	b, err := hex.DecodeString(util.TrimHex(hexString))
	if err != nil {
		return nil, fmt.Errorf("invalid hex string %q: %w", hexString, err)
	}
	return b, nil
}

// HexStringToHash decodes a hex string holding exactly 32 bytes. Unlike
// common.HexToHash it rejects short, long or malformed input instead of
// silently padding or truncating it.
func HexStringToHash(hexString string) (common.Hash, error) {
	b, err := HexStringToHexBytes(hexString)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash length %d, expected %d", len(b), common.HashLength)
	}
	return common.BytesToHash(b), nil
}

// HexStringToAddress decodes a hex string holding exactly 20 bytes.
func HexStringToAddress(hexString string) (common.Address, error) {
	b, err := HexStringToHexBytes(hexString)
	if err != nil {
		return common.Address{}, err
	}
	if len(b) != common.AddressLength {
		return common.Address{}, fmt.Errorf("invalid address length %d, expected %d", len(b), common.AddressLength)
	}
	return common.BytesToAddress(b), nil
}
