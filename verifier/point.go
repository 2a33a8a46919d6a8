package verifier

import (
	"fmt"

	"github.com/vocdoni/davinci-pool/types"
	"github.com/vocdoni/davinci-pool/util"
)

// Accepted curve point encodings, in hex characters.
const (
	compressedPointLen     = 64
	compressedFlagPointLen = 66
	uncompressedPointLen   = 128
)

// ValidateCurvePoint checks the encoding of a curve point string: after an
// optional 0x prefix it must hold 64, 66 or 128 hex digits. A wrong length
// fails with types.ErrInvalidCurvePoint before the digits are inspected;
// non-hex digits fail with types.ErrInvalidHexFormat. The point is not
// checked to lie on the curve.
func ValidateCurvePoint(s string) error {
	h := util.TrimHex(s)
	switch len(h) {
	case compressedPointLen, compressedFlagPointLen, uncompressedPointLen:
	default:
		return fmt.Errorf("%w: %d hex characters", types.ErrInvalidCurvePoint, len(h))
	}
	for i := 0; i < len(h); i++ {
		if !isHexDigit(h[i]) {
			return fmt.Errorf("%w: %q at offset %d", types.ErrInvalidHexFormat, h[i], i)
		}
	}
	return nil
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
