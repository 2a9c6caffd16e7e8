package inventory

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// Record is one result row keyed by column name. Cells with no value are
// present with an empty string so every record carries the full header.
type Record map[string]string

// RowValues returns the cell values of one result row in column order.
// A cell with no value yields nil; an empty row yields an empty slice.
func RowValues(row athenatypes.Row) []*string {
	values := make([]*string, len(row.Data))
	for i, datum := range row.Data {
		values[i] = datum.VarCharValue
	}
	return values
}

// resultsPager is the subset of the SDK results paginator the stream uses.
type resultsPager interface {
	HasMorePages() bool
	NextPage(ctx context.Context, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// RecordStream yields one Record per result row without buffering the
// whole result set. The first row of the first page supplies the column
// names for every subsequent row; Athena repeats that header row only
// once, so later pages are pure data.
type RecordStream struct {
	pager   resultsPager
	header  []string
	rows    []athenatypes.Row
	started bool
}

func newRecordStream(pager resultsPager) *RecordStream {
	return &RecordStream{pager: pager}
}

// Next returns the next record, reporting false once the result set is
// exhausted. Result pages are fetched lazily as rows are consumed.
func (s *RecordStream) Next(ctx context.Context) (Record, bool, error) {
	for len(s.rows) == 0 {
		if !s.pager.HasMorePages() {
			return nil, false, nil
		}

		page, err := s.pager.NextPage(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("inventory: fetching result page: %w", err)
		}
		if page.ResultSet == nil {
			continue
		}

		s.rows = page.ResultSet.Rows
		if !s.started {
			s.started = true
			if len(s.rows) > 0 {
				s.header = headerNames(s.rows[0])
				s.rows = s.rows[1:]
			}
		}
	}

	row := s.rows[0]
	s.rows = s.rows[1:]
	return s.record(row), true, nil
}

// record zips one data row against the header positionally.
func (s *RecordStream) record(row athenatypes.Row) Record {
	rec := make(Record, len(s.header))
	for i, value := range RowValues(row) {
		if i >= len(s.header) {
			break
		}
		rec[s.header[i]] = aws.ToString(value)
	}
	return rec
}

func headerNames(row athenatypes.Row) []string {
	names := make([]string, len(row.Data))
	for i, datum := range row.Data {
		names[i] = aws.ToString(datum.VarCharValue)
	}
	return names
}
