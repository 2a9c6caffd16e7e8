package report

import (
	"context"
	"fmt"
	"time"
)

// RunRequest is the Lambda event for one report generation run. Both
// fields are optional; the scheduled trigger sends an empty event.
type RunRequest struct {
	// ReportStartDate overrides the window start as an ISO date,
	// e.g. "2024-08-24".
	ReportStartDate string `json:"report_start_date"`

	// ProductPrefixes narrows which products are reported on.
	ProductPrefixes []string `json:"product_prefixes"`
}

// The default window is the single day starting two days back, giving the
// inventory partition for that day time to land before it is queried.
const defaultStartOffsetDays = 2

const startDateLayout = "2006-01-02"

// Handler is the Lambda entrypoint for report generation. It returns row
// counts per product for direct invocations.
func (g *Generator) Handler(ctx context.Context, req RunRequest) (map[string]int, error) {
	window, err := g.window(req)
	if err != nil {
		return nil, err
	}
	return g.Generate(ctx, window)
}

// window resolves the reporting window from the request, defaulting the
// start date and always spanning exactly one day.
func (g *Generator) window(req RunRequest) (Window, error) {
	start := g.nowFn().UTC().AddDate(0, 0, -defaultStartOffsetDays)
	if req.ReportStartDate != "" {
		parsed, err := time.Parse(startDateLayout, req.ReportStartDate)
		if err != nil {
			return Window{}, fmt.Errorf("report: invalid report_start_date %q: %w", req.ReportStartDate, err)
		}
		start = parsed
	}
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	return Window{
		StartDate:       start,
		EndDate:         start.AddDate(0, 0, 1),
		ProductPrefixes: req.ProductPrefixes,
	}, nil
}
