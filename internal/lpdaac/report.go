// Package lpdaac parses the artifacts LP DAAC sends back during
// reconciliation: the free-form discrepancy notification and the JSON detail
// report it points at, plus the grouping of that report into per-collection
// reprocessing work.
package lpdaac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"hlsrecon/internal/types"
)

// ReconciliationReport is the parsed detail report: a sequence of pages, each
// mapping encoded collection ids (SHORT_NAME___VERSION) to the collection's
// reconciliation entry. Collection ids are assumed unique across pages.
type ReconciliationReport []ReportPage

// ReportPage is one object in the report array. In practice each page holds a
// single collection, but nothing depends on that.
type ReportPage map[string]CollectionReconciliation

// CollectionReconciliation is one collection's slice of the report. Keys in
// the source JSON beyond these are ignored.
type CollectionReconciliation struct {
	Sent   int        `json:"sent"`
	Failed int        `json:"failed"`
	Report FileReport `json:"report"`
}

// FileStatus is the per-file detail. granuleId is optional; when absent the
// granule id is recovered from the filename.
type FileStatus struct {
	GranuleID string `json:"granuleId,omitempty"`
	Status    string `json:"status,omitempty"`
}

// FileEntry is one filename/status pair from a collection's file mapping.
type FileEntry struct {
	Filename string
	Status   FileStatus
}

// FileReport holds a collection's file entries in document order. The source
// JSON is an object keyed by filename; decoding it into a stock map would
// randomize iteration order and make grouping nondeterministic, so the
// entries are kept as an ordered slice instead.
type FileReport []FileEntry

// UnmarshalJSON decodes the filename-keyed object one token at a time,
// preserving the order entries appear in the document.
func (r *FileReport) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("lpdaac: file report must be a JSON object, got %v", tok)
	}

	var entries FileReport
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		filename, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("lpdaac: file report key is not a string: %v", keyTok)
		}

		var status FileStatus
		if err := dec.Decode(&status); err != nil {
			return fmt.Errorf("lpdaac: file report entry %q: %w", filename, err)
		}
		entries = append(entries, FileEntry{Filename: filename, Status: status})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*r = entries
	return nil
}

// ParseReport decodes a reconciliation report read from S3.
func ParseReport(r io.Reader) (ReconciliationReport, error) {
	var report ReconciliationReport
	if err := json.NewDecoder(r).Decode(&report); err != nil {
		return nil, types.NewAppError(types.ErrCodeMalformedReport,
			"reconciliation report is not a valid JSON report array", err)
	}
	return report, nil
}
