package verifier

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/holiman/uint256"
	"github.com/vocdoni/davinci-pool/types"
)

// FieldModulus is the modulus field elements are reduced by. It stands in
// for the BN254 scalar field; changing it changes which proofs are accepted.
var FieldModulus = uint256.NewInt(math.MaxUint64)

// ParseFieldElement parses a public input: a 0x-prefixed hex integer or,
// without the prefix, a decimal integer. The value is reduced by
// FieldModulus. Strings that are not unsigned integers fail with
// types.ErrFieldElementParsingFailed; values wider than 256 bits fail with
// types.ErrFieldElementOutOfRange.
func ParseFieldElement(s string) (uint64, error) {
	if digits, ok := cutHexPrefix(s); ok {
		return parseField(s, digits, 16)
	}
	return parseField(s, s, 10)
}

// ParseHexFieldElement parses a proof field value, which is always hex with
// an optional 0x prefix, and reduces it like ParseFieldElement.
func ParseHexFieldElement(s string) (uint64, error) {
	digits, _ := cutHexPrefix(s)
	return parseField(s, digits, 16)
}

func cutHexPrefix(s string) (string, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:], true
	}
	return s, false
}

func parseField(s, digits string, base int) (uint64, error) {
	if digits == "" || digits[0] == '+' || digits[0] == '-' {
		return 0, fmt.Errorf("%w: %q", types.ErrFieldElementParsingFailed, s)
	}
	b, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return 0, fmt.Errorf("%w: %q", types.ErrFieldElementParsingFailed, s)
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return 0, fmt.Errorf("%w: %q exceeds 256 bits", types.ErrFieldElementOutOfRange, s)
	}
	return v.Mod(v, FieldModulus).Uint64(), nil
}
