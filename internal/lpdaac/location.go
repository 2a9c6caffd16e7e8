package lpdaac

import (
	"fmt"
	"strings"

	"hlsrecon/internal/types"
)

// ReportLocation identifies the reconciliation report object in S3.
type ReportLocation struct {
	Bucket string
	Key    string
}

// URI returns the s3:// form of the location.
func (l ReportLocation) URI() string {
	return fmt.Sprintf("s3://%s/%s", l.Bucket, l.Key)
}

const s3Scheme = "s3://"

// ExtractReportLocation scans free-form notification text for the first S3
// reference to a JSON report, in either bare "bucket/key" form or as an
// "s3://bucket/key" URI (the notifications typically mention both, e.g. once
// in prose and once inside an aws-cli example). Both forms yield the same
// (bucket, key).
//
// The bucket token is a run of alphanumerics and hyphens; the key is a run of
// alphanumerics, hyphens, underscores, slashes and dots that must end in
// ".json" once adjacent sentence punctuation is trimmed. Surrounding quotes
// and punctuation are tolerated. When no reference matches, the error carries
// the full message verbatim so operators can see exactly what arrived.
func ExtractReportLocation(message string) (ReportLocation, error) {
	for i := 0; i < len(message); i++ {
		if !isBucketChar(message[i]) {
			continue
		}
		// Only start a candidate at a token boundary; a preceding bucket,
		// path, or slash character means we are mid-token.
		if i > 0 && blocksTokenStart(message[i-1]) {
			continue
		}
		if loc, ok := matchLocation(message[i:]); ok {
			return loc, nil
		}
	}

	return ReportLocation{}, types.NewAppError(types.ErrCodeUnparsableLocation,
		fmt.Sprintf("cannot determine report location from message: %q", message), nil)
}

// matchLocation attempts to parse [s3://]bucket/key.json at the start of s.
func matchLocation(s string) (ReportLocation, bool) {
	s = strings.TrimPrefix(s, s3Scheme)

	n := 0
	for n < len(s) && isBucketChar(s[n]) {
		n++
	}
	if n == 0 || n >= len(s) || s[n] != '/' {
		return ReportLocation{}, false
	}
	bucket := s[:n]

	k := n + 1
	for k < len(s) && isPathChar(s[k]) {
		k++
	}
	// A sentence-final period lands inside the path-character run; it is
	// punctuation, not part of the key.
	key := strings.TrimRight(s[n+1:k], ".")
	if !strings.HasSuffix(key, ".json") {
		return ReportLocation{}, false
	}

	return ReportLocation{Bucket: bucket, Key: key}, true
}

func isBucketChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '-'
}

func isPathChar(c byte) bool {
	return isBucketChar(c) || c == '_' || c == '/' || c == '.'
}

// blocksTokenStart reports whether a character immediately before a candidate
// means the candidate is the tail of a larger token rather than a bucket
// name. Dots and quotes do not block: they are ordinary sentence punctuation.
func blocksTokenStart(c byte) bool {
	return isBucketChar(c) || c == '_' || c == '/'
}
