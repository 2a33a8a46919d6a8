package verifier

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/davinci-pool/types"
)

func TestParseFieldElement(t *testing.T) {
	c := qt.New(t)

	for in, want := range map[string]uint64{
		"0":                                  0,
		"990123457":                          990123457,
		"0x10":                               16,
		"0X1f":                               31,
		"0x0a":                               10,
		"18446744073709551614":               18446744073709551614,
		"18446744073709551615":               0,
		"18446744073709551616":               1,
		"0x" + strings.Repeat("f", 64):       0,
		"0x" + strings.Repeat("0", 70) + "5": 5,
	} {
		got, err := ParseFieldElement(in)
		c.Assert(err, qt.IsNil, qt.Commentf("input %q", in))
		c.Assert(got, qt.Equals, want, qt.Commentf("input %q", in))
	}

	for _, in := range []string{"", "0x", "abc", "ff", "-1", "+1", "0xzz", "1.5", "1_000", " 1"} {
		_, err := ParseFieldElement(in)
		c.Assert(err, qt.ErrorIs, types.ErrFieldElementParsingFailed, qt.Commentf("input %q", in))
	}

	_, err := ParseFieldElement("0x1" + strings.Repeat("0", 64))
	c.Assert(err, qt.ErrorIs, types.ErrFieldElementOutOfRange)
}

func TestParseHexFieldElement(t *testing.T) {
	c := qt.New(t)

	for in, want := range map[string]uint64{
		"0":                     0,
		"ff":                    255,
		"0xff":                  255,
		"1234":                  0x1234,
		"0X1f":                  31,
		"0a123456789012345678":  0x345678901234608a,
		strings.Repeat("f", 16): 0,
	} {
		got, err := ParseHexFieldElement(in)
		c.Assert(err, qt.IsNil, qt.Commentf("input %q", in))
		c.Assert(got, qt.Equals, want, qt.Commentf("input %q", in))
	}

	// the prefix is optional
	eval := "0a123456789012345678901234567890"
	withPrefix, err := ParseHexFieldElement("0x" + eval)
	c.Assert(err, qt.IsNil)
	withoutPrefix, err := ParseHexFieldElement(eval)
	c.Assert(err, qt.IsNil)
	c.Assert(withoutPrefix, qt.Equals, withPrefix)

	for _, in := range []string{"", "0x", "zz", "0xg1", "-1", "+1", " 1", "1_0"} {
		_, err := ParseHexFieldElement(in)
		c.Assert(err, qt.ErrorIs, types.ErrFieldElementParsingFailed, qt.Commentf("input %q", in))
	}

	_, err = ParseHexFieldElement("1" + strings.Repeat("0", 64))
	c.Assert(err, qt.ErrorIs, types.ErrFieldElementOutOfRange)
}

func TestValidateCurvePoint(t *testing.T) {
	c := qt.New(t)

	for _, n := range []int{64, 66, 128} {
		c.Assert(ValidateCurvePoint("0x"+strings.Repeat("a", n)), qt.IsNil, qt.Commentf("length %d", n))
		c.Assert(ValidateCurvePoint(strings.Repeat("F", n)), qt.IsNil, qt.Commentf("length %d", n))
	}
	for _, n := range []int{0, 32, 63, 65, 100, 130} {
		c.Assert(ValidateCurvePoint("0x"+strings.Repeat("0", n)), qt.ErrorIs, types.ErrInvalidCurvePoint,
			qt.Commentf("length %d", n))
	}
	c.Assert(ValidateCurvePoint("0x"+strings.Repeat("0", 63)+"g"), qt.ErrorIs, types.ErrInvalidHexFormat)
	// length is checked before the digits
	c.Assert(ValidateCurvePoint("0xZZZZ"), qt.ErrorIs, types.ErrInvalidCurvePoint)
}

func TestChallenge(t *testing.T) {
	c := qt.New(t)

	got := Challenge([]string{"0x01", "0x02", "0x03"}, validPublicInputs)
	c.Assert(got, qt.HasLen, 66)
	c.Assert(got, qt.Equals, "0x"+strings.Repeat("0", 34)+"0x010x020x03990123457988502805")

	long := "0x" + strings.Repeat("ab", 40)
	got = Challenge([]string{long, long}, validPublicInputs)
	c.Assert(got, qt.Equals, "0x"+long[:64])

	c.Assert(Challenge(nil, nil), qt.Equals, "0x"+strings.Repeat("0", 64))
	c.Assert(Challenge([]string{"0x01"}, nil), qt.Equals, Challenge([]string{"0x01"}, nil))
}
