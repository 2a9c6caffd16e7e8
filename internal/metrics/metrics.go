// Package metrics emits reconciliation metrics to CloudWatch.
package metrics

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metric and dimension names.
const (
	MetricGranulesTriggered   = "GranulesTriggered"
	MetricGranulesMissing     = "GranulesMissing"
	MetricReportFilesExamined = "ReportFilesExamined"
	MetricReportRowsWritten   = "ReportRowsWritten"

	DimCollection = "Collection"
	DimProduct    = "Product"
)

// Recorder publishes metrics to CloudWatch. Publish failures are logged
// and swallowed; metrics never fail a reconciliation run.
type Recorder struct {
	client    CloudWatchClient
	namespace string
	logger    *slog.Logger
}

// NewRecorder creates a Recorder publishing into the given namespace.
func NewRecorder(client CloudWatchClient, namespace string, logger *slog.Logger) *Recorder {
	return &Recorder{
		client:    client,
		namespace: namespace,
		logger:    logger,
	}
}

// CollectionOutcome emits the per-collection counters for one run:
// granules re-triggered, granules missing upstream, and report file
// entries examined.
func (r *Recorder) CollectionOutcome(ctx context.Context, collection string, triggered, missing, filesExamined int) {
	dims := []cwtypes.Dimension{
		{
			Name:  aws.String(DimCollection),
			Value: aws.String(collection),
		},
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricGranulesTriggered),
				Value:      aws.Float64(float64(triggered)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(MetricGranulesMissing),
				Value:      aws.Float64(float64(missing)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
			{
				MetricName: aws.String(MetricReportFilesExamined),
				Value:      aws.Float64(float64(filesExamined)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: dims,
			},
		},
	}

	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.ErrorContext(ctx, "failed to record collection outcome metrics",
			"error", err.Error(),
			"collection", collection,
		)
	}
}

// ReportRows emits the row count written to one product's report file.
func (r *Recorder) ReportRows(ctx context.Context, product string, rows int) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace: aws.String(r.namespace),
		MetricData: []cwtypes.MetricDatum{
			{
				MetricName: aws.String(MetricReportRowsWritten),
				Value:      aws.Float64(float64(rows)),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{
					{
						Name:  aws.String(DimProduct),
						Value: aws.String(product),
					},
				},
			},
		},
	}

	if _, err := r.client.PutMetricData(ctx, input); err != nil {
		r.logger.ErrorContext(ctx, "failed to record report rows metric",
			"error", err.Error(),
			"product", product,
			"rows", rows,
		)
	}
}
