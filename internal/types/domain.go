package types

// GranuleStatus records the outcome of a reprocessing attempt for one granule
// named in an LP DAAC reconciliation report.
type GranuleStatus string

const (
	// StatusTriggered means the granule's trigger object existed and was
	// touched, so the forward pipeline will resend it.
	StatusTriggered GranuleStatus = "triggered"
	// StatusMissing means no trigger object exists for the granule; the
	// granule never reached the bucket and needs operator attention.
	StatusMissing GranuleStatus = "missing"
)

// CollectionSummary counts granules per status for one collection.
type CollectionSummary map[GranuleStatus]int

// ReconciliationSummary maps an encoded collection id (SHORT_NAME___VERSION)
// to its per-status granule counts. Counts, never granule id lists: a report
// with a large number of missing granules must not blow up log volume.
type ReconciliationSummary map[string]CollectionSummary

// Total returns the summed count across all collections for one status.
func (s ReconciliationSummary) Total(status GranuleStatus) int {
	total := 0
	for _, c := range s {
		total += c[status]
	}
	return total
}

// ReportRef points at a reconciliation report object in S3.
type ReportRef struct {
	URI string `json:"uri"`
}

// RequestMessage is the payload published to the LP DAAC request topic when a
// new HLS inventory report lands. The JSON shape is an external contract with
// the LP DAAC side; do not rename fields.
type RequestMessage struct {
	Report ReportRef `json:"report"`
}
