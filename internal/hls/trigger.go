package hls

import (
	"fmt"
	"strings"

	"hlsrecon/internal/types"
)

// NotificationTriggerKey derives the S3 key of the notification trigger
// object for a granule. Writing any object at this key causes the forward
// pipeline to resend exactly that granule, so the layout is an external
// contract:
//
//	HLS.S30.T15XWH.2124237T194859.v2.0
//	-> S30/data/2124237/HLS.S30.T15XWH.2124237T194859.v2.0/HLS.S30.T15XWH.2124237T194859.v2.0.json
//
// The key prefix is the sensor token; hyphenated product lines append the
// product suffix (HLS-VI -> L30_VI). The day directory is the 7-digit
// YYYYDDD prefix of the acquisition timestamp token.
func NotificationTriggerKey(granuleID string) (string, error) {
	tokens := strings.Split(granuleID, ".")
	if len(tokens) < 4 {
		return "", types.NewAppError(types.ErrCodeMalformedGranuleID,
			fmt.Sprintf("granule id %q has %d dot-separated tokens, need at least 4", granuleID, len(tokens)), nil)
	}

	product := tokens[0]
	sensor := tokens[1]
	timestamp := tokens[3]

	if leadingDigits(timestamp) < 7 {
		return "", types.NewAppError(types.ErrCodeMalformedGranuleID,
			fmt.Sprintf("granule id %q acquisition token %q does not start with a 7-digit YYYYDDD day", granuleID, timestamp), nil)
	}
	day := timestamp[:7]

	prefix := sensor
	if _, suffix, found := strings.Cut(product, "-"); found {
		prefix += "_" + suffix
	}

	return fmt.Sprintf("%s/data/%s/%s/%s.json", prefix, day, granuleID, granuleID), nil
}
