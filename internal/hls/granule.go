package hls

import (
	"fmt"
	"strings"

	"hlsrecon/internal/types"
)

// GranuleIDForFile recovers the granule id embedded in an HLS product
// filename. A granule id runs from the start of the filename through its
// version, e.g.
//
//	HLS.S30.T36PWU.2124237T080609.v3.0.1.B01.tif
//	-> HLS.S30.T36PWU.2124237T080609.v3.0.1
//
// The filename is tokenized on "." and scanned left to right for the first
// token of the form v<digits>. That token must be followed by one or two
// all-digit version components; the last component may carry a trailing
// marker (as in ...v2.0_stac.json), in which case only its digit prefix
// belongs to the id. Everything after the version is a band or metadata
// suffix and is discarded.
//
// Filenames with no qualifying version token fail, including the common trap
// of a bare numeric version missing the leading v (e.g. "2.0").
func GranuleIDForFile(filename string) (string, error) {
	tokens := strings.Split(filename, ".")

	for i, tok := range tokens {
		if !isVersionStart(tok) {
			continue
		}

		// Consume up to two numeric components after the v token.
		end := i
		consumed := 0
		partial := 0 // digit-prefix length when the last component carries a trailing marker
		for j := i + 1; j < len(tokens) && consumed < 2; j++ {
			digits := leadingDigits(tokens[j])
			if digits == 0 {
				break
			}
			consumed++
			end = j
			if digits < len(tokens[j]) {
				partial = digits
				break
			}
		}
		if consumed == 0 {
			// A lone v<digits> token is not a version; keep scanning.
			continue
		}

		if partial > 0 {
			return strings.Join(tokens[:end], ".") + "." + tokens[end][:partial], nil
		}
		return strings.Join(tokens[:end+1], "."), nil
	}

	return "", types.NewAppError(types.ErrCodeUnparsableGranuleID,
		fmt.Sprintf("no version token in filename %q", filename), nil)
}

// isVersionStart reports whether tok is a lowercase v followed by one or
// more decimal digits, such as "v2" or "v10".
func isVersionStart(tok string) bool {
	if len(tok) < 2 || tok[0] != 'v' {
		return false
	}
	for i := 1; i < len(tok); i++ {
		if tok[i] < '0' || tok[i] > '9' {
			return false
		}
	}
	return true
}

// leadingDigits returns the number of leading decimal digits in s.
func leadingDigits(s string) int {
	n := 0
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	return n
}
