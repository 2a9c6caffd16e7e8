// Package main is the entrypoint for the Response Worker Lambda function.
//
// The Response Worker consumes LP DAAC reconciliation notifications from the
// response SNS topic. For each notification it locates the discrepancy
// report in S3, groups the reported files by collection, and re-triggers
// every granule the archive is missing files for by touching that granule's
// notification trigger object.
//
// Cold Start (main):
//  1. Initialize structured logger.
//  2. Load and validate configuration (SSM-resolved in deployed envs).
//  3. Load AWS SDK configuration.
//  4. Initialize S3, DynamoDB, SQS, and CloudWatch clients.
//  5. Wire the reconcile.Processor with its storage, ledger, review queue,
//     and metrics dependencies.
//  6. Register the handler and call lambda.Start.
//
// Notifications whose input can never be processed (unparsable message
// text, malformed report, bad identifiers) are routed to the review queue
// and acknowledged; transient faults are returned so SNS redelivers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"hlsrecon/internal/config"
	"hlsrecon/internal/ledger"
	"hlsrecon/internal/metrics"
	"hlsrecon/internal/queue"
	"hlsrecon/internal/reconcile"
	"hlsrecon/internal/storage"
)

func main() {
	// Initialize structured logger at startup (Cold Start).
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Response Worker Lambda initializing (cold start)")

	cfg, err := config.LoadResponseWorker(config.NewSSMProvider(os.Getenv("AWS_REGION")))
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Re-create the logger at the configured level.
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.SlogLevel(),
	}))

	ctx := context.Background()

	// Load AWS SDK configuration.
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		logger.Error("Failed to load AWS SDK config", "error", err)
		os.Exit(1)
	}

	// Initialize AWS clients.
	s3Client := s3.NewFromConfig(awsCfg)
	dynamoClient := dynamodb.NewFromConfig(awsCfg)
	sqsClient := sqs.NewFromConfig(awsCfg)
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	processor := &reconcile.Processor{
		Config: reconcile.ProcessorConfig{
			ForwardBucket:    cfg.ForwardBucket,
			HistoricalBucket: cfg.HistoricalBucket,
			TouchConcurrency: cfg.TouchConcurrency,
		},
		Log:      logger,
		Reports:  storage.NewReportFetcher(s3Client, logger),
		Triggers: storage.NewTriggerStore(s3Client, logger),
		Ledger:   ledger.New(dynamoClient, cfg.LedgerTable, logger),
		Review:   queue.NewReviewQueue(sqsClient, cfg.ReviewQueueURL, logger),
		Metrics:  metrics.NewRecorder(cwClient, cfg.MetricNamespace, logger),
	}

	build := config.NewBuildInfo()
	logger.Info("Response Worker Lambda initialized",
		"version", build.Version,
		"commit", build.Commit,
		"forward_bucket", cfg.ForwardBucket,
		"historical_bucket", cfg.HistoricalBucket,
		"ledger_table", cfg.LedgerTable,
		"touch_concurrency", cfg.TouchConcurrency,
	)

	// Local mode: read a JSON SNS event from stdin instead of starting the
	// Lambda runtime. Usage:
	//
	//	echo '{"Records":[{"Sns":{"MessageId":"1","Subject":"...","Message":"..."}}]}' \
	//	    | go run ./cmd/response-worker
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading SNS event from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("Failed to read stdin", "error", err)
			os.Exit(1)
		}
		if len(payload) == 0 {
			logger.Error("No input received on stdin")
			os.Exit(1)
		}
		var snsEvent events.SNSEvent
		if err := json.Unmarshal(payload, &snsEvent); err != nil {
			logger.Error("Failed to parse stdin as SNS event", "error", err)
			os.Exit(1)
		}
		summary, err := processor.Handler(ctx, snsEvent)
		if err != nil {
			logger.Error("Handler execution failed", "error", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Fprintln(os.Stdout, string(out))
		return
	}

	lambda.Start(processor.Handler)
}
