package report

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"hlsrecon/internal/inventory"
	"hlsrecon/internal/types"
)

// S3Client abstracts the S3 PutObject operation for testability.
// Production code uses the *s3.Client from aws-sdk-go-v2.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// MetricsRecorder records report generation metrics. Implementations log
// and swallow delivery failures rather than failing the run.
type MetricsRecorder interface {
	ReportRows(ctx context.Context, product string, rows int)
}

// Window is the reporting window and product scope of one run.
type Window struct {
	StartDate       time.Time
	EndDate         time.Time
	ProductPrefixes []string
}

// Generator runs the inventory query for a window and writes one report
// file per product to the LP DAAC drop prefix.
type Generator struct {
	runner          *inventory.Runner
	s3              S3Client
	tableName       string
	outputPrefix    string
	productVersion  string
	reportExtension string
	metrics         MetricsRecorder
	logger          *slog.Logger
	nowFn           func() time.Time
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithNowFunc replaces the clock used to compute the default reporting
// window. Tests use this to pin the window.
func WithNowFunc(fn func() time.Time) GeneratorOption {
	return func(g *Generator) {
		g.nowFn = fn
	}
}

// NewGenerator creates a Generator. outputPrefix is the s3:// prefix the
// report files are written under, without a trailing slash.
func NewGenerator(
	runner *inventory.Runner,
	s3Client S3Client,
	tableName string,
	outputPrefix string,
	productVersion string,
	reportExtension string,
	metrics MetricsRecorder,
	logger *slog.Logger,
	opts ...GeneratorOption,
) *Generator {
	g := &Generator{
		runner:          runner,
		s3:              s3Client,
		tableName:       tableName,
		outputPrefix:    outputPrefix,
		productVersion:  productVersion,
		reportExtension: reportExtension,
		metrics:         metrics,
		logger:          logger,
		nowFn:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs the inventory query for the window and uploads one CSV
// report per product that has rows. It returns row counts keyed by
// product. Products without rows are skipped entirely.
//
// The query orders rows by key, so each product's rows arrive
// contiguously and the stream can be split into per-product files
// without buffering the full result set.
func (g *Generator) Generate(ctx context.Context, window Window) (map[string]int, error) {
	prefixes := window.ProductPrefixes
	if len(prefixes) == 0 {
		prefixes = inventory.DefaultProductPrefixes
	}

	g.logger.InfoContext(ctx, "generating reconciliation report",
		"start_date", window.StartDate.Format("2006-01-02"),
		"end_date", window.EndDate.Format("2006-01-02"),
		"product_prefixes", prefixes,
	)

	sql := inventory.BuildQuery(g.tableName, window.StartDate, window.EndDate, inventory.KeyPattern(prefixes))
	queryID, err := g.runner.Run(ctx, sql)
	if err != nil {
		return nil, err
	}

	stream := g.runner.Results(queryID)
	counts := make(map[string]int)

	var current *productFile
	defer func() {
		if current != nil {
			current.discard()
		}
	}()

	for {
		rec, ok, err := stream.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}

		product := strings.TrimPrefix(rec["short_name"], "HLS")
		if current == nil || current.product != product {
			if current != nil {
				if err := g.publish(ctx, current, window, counts); err != nil {
					return nil, err
				}
				current = nil
			}
			current, err = newProductFile(product)
			if err != nil {
				return nil, err
			}
		}

		if err := current.writer.Write(rec); err != nil {
			return nil, fmt.Errorf("report: writing row for product %s: %w", product, err)
		}
		current.rows++
	}

	if current != nil {
		if err := g.publish(ctx, current, window, counts); err != nil {
			return nil, err
		}
		current = nil
	}

	if len(counts) == 0 {
		g.logger.InfoContext(ctx, "inventory query returned no rows, no reports written")
	}

	return counts, nil
}

// publish flushes and uploads one product's report file, then removes the
// local temp file. Empty files are discarded without an upload.
func (g *Generator) publish(ctx context.Context, pf *productFile, window Window, counts map[string]int) error {
	defer pf.discard()

	if err := pf.writer.Flush(); err != nil {
		return fmt.Errorf("report: flushing rows for product %s: %w", pf.product, err)
	}
	if pf.rows == 0 {
		g.logger.InfoContext(ctx, "no rows for product, skipping upload", "product", pf.product)
		return nil
	}

	objectURL := ReportURL(g.outputPrefix, window.StartDate, pf.product, g.productVersion, g.reportExtension)
	bucket, key, err := splitObjectURL(objectURL)
	if err != nil {
		return err
	}

	if _, err := pf.file.Seek(0, 0); err != nil {
		return fmt.Errorf("report: rewinding report file for product %s: %w", pf.product, err)
	}

	if _, err := g.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pf.file,
	}); err != nil {
		return types.NewAppError(
			types.ErrCodeStorageUnavailable,
			fmt.Sprintf("failed to upload report to %s", objectURL),
			err,
		)
	}

	g.logger.InfoContext(ctx, "report uploaded",
		"product", pf.product,
		"rows", pf.rows,
		"object_url", objectURL,
	)
	g.metrics.ReportRows(ctx, pf.product, pf.rows)
	counts[pf.product] = pf.rows

	return nil
}

// ReportURL returns the destination for one product's report file:
// <prefix>/<YYYYDDD>/HLS_reconcile_<YYYYDDD>_<product>_<version><ext>,
// where YYYYDDD is the report start date as year plus ordinal day.
func ReportURL(outputPrefix string, startDate time.Time, product, productVersion, extension string) string {
	day := dayOfYear(startDate)
	return fmt.Sprintf("%s/%s/HLS_reconcile_%s_%s_%s%s",
		outputPrefix, day, day, product, productVersion, extension)
}

func dayOfYear(t time.Time) string {
	return fmt.Sprintf("%04d%03d", t.Year(), t.YearDay())
}

func splitObjectURL(objectURL string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(objectURL, "s3://")
	if !ok {
		return "", "", fmt.Errorf("report: object URL %q must start with s3://", objectURL)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("report: object URL %q is missing a bucket or key", objectURL)
	}
	return bucket, key, nil
}

// productFile is one product's in-progress report: a temp file plus the
// CSV writer over it.
type productFile struct {
	product string
	file    *os.File
	writer  *Writer
	rows    int
}

func newProductFile(product string) (*productFile, error) {
	f, err := os.CreateTemp("", "hls-reconcile-*.rpt")
	if err != nil {
		return nil, fmt.Errorf("report: creating temp report file for product %s: %w", product, err)
	}
	return &productFile{product: product, file: f, writer: NewWriter(f)}, nil
}

// discard closes and removes the temp file. Safe to call more than once.
func (pf *productFile) discard() {
	if pf.file == nil {
		return
	}
	pf.file.Close()
	os.Remove(pf.file.Name())
	pf.file = nil
}
