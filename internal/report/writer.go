// Package report builds the per-product reconciliation report files from
// inventory query records and publishes them for LP DAAC pickup.
package report

import (
	"encoding/csv"
	"io"
	"os"

	"hlsrecon/internal/inventory"
)

// FieldNames is the fixed column order of a report file. LP DAAC parses
// report rows positionally, so the order is an external contract and the
// file carries no header row.
var FieldNames = []string{"short_name", "version", "filename", "size", "last_modified", "checksum"}

// Writer serializes records as CSV rows in the fixed column order.
type Writer struct {
	cw *csv.Writer
}

// NewWriter returns a Writer emitting CSV rows to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{cw: csv.NewWriter(w)}
}

// Write emits one record as a CSV row. Fields missing from the record are
// written as empty cells.
func (w *Writer) Write(rec inventory.Record) error {
	row := make([]string, len(FieldNames))
	for i, name := range FieldNames {
		row[i] = rec[name]
	}
	return w.cw.Write(row)
}

// Flush writes buffered rows to the underlying writer and reports any
// write error encountered.
func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

// WriteFile writes records to path as one CSV row each, creating or
// truncating the file first. It returns the number of records written.
// I/O failures propagate to the caller unretried.
func WriteFile(path string, records []inventory.Record) (int, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}

	w := NewWriter(f)
	written := 0
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			f.Close()
			return written, err
		}
		written++
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return written, err
	}

	return written, f.Close()
}
