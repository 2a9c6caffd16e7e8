// Package inventory runs Athena queries against the S3 Inventory table
// backing the HLS archive and streams the result rows back as records.
// The query projects raw inventory columns into the fixed report shape
// consumed by the reconciliation report writer.
package inventory

import (
	"fmt"
	"strings"
	"time"
)

// DefaultProductPrefixes lists the HLS product prefixes included in a
// report run when the caller does not narrow them.
var DefaultProductPrefixes = []string{"S30", "L30", "S30_VI", "L30_VI"}

// athenaDateLayout renders window bounds as date-only TIMESTAMP literals,
// which Athena reads as midnight of that day.
const athenaDateLayout = "2006-01-02"

const queryTemplate = `SELECT regexp_replace(key, '^([^/]+).*', 'HLS$1') AS short_name,
    regexp_extract(key, 'v([0-9]+(?:\.[0-9]+)*)', 1) AS version,
    regexp_extract(key, '[^/]+$') AS filename,
    size,
    format_datetime(last_modified_date, 'yyyy-MM-dd''T''HH:mm:ss.SSS''Z''') AS last_modified,
    'NA' AS checksum
FROM %s
WHERE dt = (SELECT max(dt) FROM %s)
AND last_modified_date BETWEEN TIMESTAMP '%s' AND TIMESTAMP '%s'
AND regexp_like(key, '%s')
ORDER BY key, last_modified_date`

// KeyPattern builds the regexp that restricts inventory rows to HLS
// product objects: keys under a product prefix's data/ tree ending in one
// of the delivered file extensions.
func KeyPattern(productPrefixes []string) string {
	return fmt.Sprintf(`^(%s)/data/.*(tif|jpg|xml|stac\.json)$`, strings.Join(productPrefixes, "|"))
}

// BuildQuery renders the SELECT that projects inventory rows into report
// columns. Only the most recent dt partition is read, so the report always
// reflects the latest inventory snapshot. Rows are ordered by key so that
// downstream per-product grouping sees each product's rows contiguously.
func BuildQuery(tableName string, start, end time.Time, keyPattern string) string {
	return fmt.Sprintf(queryTemplate,
		tableName,
		tableName,
		start.Format(athenaDateLayout),
		end.Format(athenaDateLayout),
		keyPattern,
	)
}
