// Package config loads the per-Lambda configuration for the reconciliation
// pipeline. Configuration is read once at cold start and is immutable
// afterwards. Values resolve through a priority chain:
//
//	OS environment (highest) -> dotenv file -> AWS SSM Parameter Store (lowest)
//
// Each Lambda has its own config struct so a function sees only the settings
// it needs; all three load through the same lifecycle (Load). Any missing
// required value or invalid format fails the cold start immediately.
package config

import "log/slog"

// Settings holds the fields shared by every Lambda in the pipeline.
type Settings struct {
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

// SlogLevel maps the configured level name to its slog level.
func (s Settings) SlogLevel() slog.Level {
	switch s.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ResponseWorkerConfig configures the response worker Lambda, which consumes
// LP DAAC discrepancy notifications and re-triggers the affected granules.
type ResponseWorkerConfig struct {
	Settings

	// ForwardBucket and HistoricalBucket hold the granule trigger objects for
	// the forward-processing and historical-reprocessing pipelines.
	ForwardBucket    string `envconfig:"HLS_FORWARD_BUCKET" validate:"required"`
	HistoricalBucket string `envconfig:"HLS_HISTORICAL_BUCKET" validate:"required"`

	// LedgerTable is the DynamoDB table recording processed notifications.
	LedgerTable string `envconfig:"LEDGER_TABLE_NAME" validate:"required"`

	// ReviewQueueURL is the SQS queue receiving notifications that can never
	// be processed and need operator review.
	ReviewQueueURL string `envconfig:"REVIEW_QUEUE_URL" validate:"required,url"`

	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"HLSReconciliation"`

	// TouchConcurrency bounds parallel trigger-object probes per collection.
	TouchConcurrency int `envconfig:"TOUCH_CONCURRENCY" default:"8" validate:"min=1,max=64"`
}

// RequestForwarderConfig configures the request forwarder Lambda, which
// announces new HLS inventory reports to LP DAAC.
type RequestForwarderConfig struct {
	Settings

	// RequestTopicARN is the cross-account SNS topic LP DAAC listens on.
	// In deployed environments it is usually published as an SSM parameter
	// and referenced via LPDAAC_REQUEST_TOPIC_ARN_SSM_PARAM.
	RequestTopicARN string `envconfig:"LPDAAC_REQUEST_TOPIC_ARN" validate:"required"`

	// InventoryBucket is the bucket report objects are expected to land in.
	// Empty disables the source-bucket check.
	InventoryBucket string `envconfig:"INVENTORY_BUCKET"`
}

// ReportGeneratorConfig configures the report generator Lambda, which queries
// the S3 inventory via Athena and writes per-product reconciliation reports.
type ReportGeneratorConfig struct {
	Settings

	// InventoryTable is the Athena table over the HLS S3 inventory, within
	// the "default" database.
	InventoryTable string `envconfig:"INVENTORY_TABLE_NAME" validate:"required"`

	// QueryOutputPrefix is the s3:// prefix Athena writes raw query results
	// under.
	QueryOutputPrefix string `envconfig:"QUERY_OUTPUT_PREFIX" validate:"required"`

	// ReportOutputPrefix is the s3:// prefix the per-product report files are
	// written under, destined for LP DAAC pickup. A trailing slash is trimmed.
	ReportOutputPrefix string `envconfig:"REPORT_OUTPUT_PREFIX" validate:"required,startswith=s3://"`

	// ProductVersion is the HLS version stamped into report filenames,
	// excluding the v prefix (e.g. "2.0").
	ProductVersion string `envconfig:"HLS_PRODUCT_VERSION" validate:"required"`

	ReportExtension string `envconfig:"HLS_LPDAAC_REPORT_EXTENSION" default:".rpt"`

	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"HLSReconciliation"`
}

// normalize trims the trailing slash so ReportURL composition never doubles it.
func (c *ReportGeneratorConfig) normalize() {
	c.ReportOutputPrefix = trimTrailingSlashes(c.ReportOutputPrefix)
}

func trimTrailingSlashes(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when resolving parameters from
	// AWS SSM Parameter Store.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
