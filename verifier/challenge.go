package verifier

import (
	"strings"
	"unicode/utf8"
)

const challengeChars = 64

// Challenge derives the transcript challenge of a proof: the commitment
// strings followed by the public input strings are concatenated as given,
// the first 64 characters kept, left-padded with zeros and prefixed with 0x.
// The value is not yet bound to the proof.
func Challenge(commitments, publicInputs []string) string {
	var sb strings.Builder
	for _, c := range commitments {
		sb.WriteString(c)
	}
	for _, pi := range publicInputs {
		sb.WriteString(pi)
	}
	s := sb.String()
	n, cut := 0, len(s)
	for i := range s {
		if n == challengeChars {
			cut = i
			break
		}
		n++
	}
	s = s[:cut]
	if pad := challengeChars - utf8.RuneCountInString(s); pad > 0 {
		s = strings.Repeat("0", pad) + s
	}
	return "0x" + s
}
