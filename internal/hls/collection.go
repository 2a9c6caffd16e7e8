// Package hls implements the naming grammars shared by the HLS archive and
// the LP DAAC reconciliation pipeline: collection identifiers, granule
// identifiers embedded in product filenames, and the S3 trigger keys watched
// by the forward-processing pipeline.
//
// Everything in this package is a pure function over strings. Correctness
// here decides which granules get reprocessed, so each grammar is written as
// an explicit scan with its edge cases pinned by tests rather than as one
// opaque pattern.
package hls

import (
	"fmt"
	"strings"

	"hlsrecon/internal/types"
)

// collectionDelimiter separates short name from version in an encoded
// collection id, per Cumulus convention. Short names may contain single
// underscores (e.g. HLSS30_VI) but never this triple-underscore sequence.
const collectionDelimiter = "___"

// CollectionID identifies a versioned collection as named in the CMR,
// e.g. short name HLSS30, version 2.0.
type CollectionID struct {
	ShortName string
	Version   string
}

// DecodeCollectionID splits an encoded collection id such as "HLSS30___2.0"
// on the rightmost triple-underscore delimiter. It fails when the delimiter
// is absent or either side is empty.
func DecodeCollectionID(encoded string) (CollectionID, error) {
	i := strings.LastIndex(encoded, collectionDelimiter)
	if i < 0 {
		return CollectionID{}, types.NewAppError(types.ErrCodeInvalidCollectionID,
			fmt.Sprintf("collection id %q has no %q delimiter", encoded, collectionDelimiter), nil)
	}

	shortName := encoded[:i]
	version := encoded[i+len(collectionDelimiter):]
	if shortName == "" || version == "" {
		return CollectionID{}, types.NewAppError(types.ErrCodeInvalidCollectionID,
			fmt.Sprintf("collection id %q has an empty short name or version", encoded), nil)
	}

	return CollectionID{ShortName: shortName, Version: version}, nil
}

// Encode returns the encoded textual form, the exact inverse of
// DecodeCollectionID for every valid CollectionID.
func (c CollectionID) Encode() string {
	return c.ShortName + collectionDelimiter + c.Version
}

// Product returns the short name with the leading "HLS" stripped, e.g.
// "S30_VI" for short name "HLSS30_VI". This is the S3 prefix the product's
// granules live under and the token used in report filenames.
func (c CollectionID) Product() string {
	return strings.TrimPrefix(c.ShortName, "HLS")
}
