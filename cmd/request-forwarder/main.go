// Package main is the entrypoint for the Request Forwarder Lambda function.
//
// The Request Forwarder is invoked by S3 object-created events on the HLS
// inventory bucket. Each new report object is announced to LP DAAC by
// publishing its s3:// URI to the cross-account request topic, which asks
// the archive to reconcile that report against its holdings.
//
// Cold Start (main):
//  1. Initialize structured logger.
//  2. Load and validate configuration (topic ARN is usually SSM-resolved).
//  3. Load AWS SDK configuration and initialize the SNS client.
//  4. Wire the reconcile.Forwarder and call lambda.Start.
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
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"hlsrecon/internal/config"
	"hlsrecon/internal/notify"
	"hlsrecon/internal/reconcile"
)

func main() {
	// Initialize structured logger at startup (Cold Start).
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Request Forwarder Lambda initializing (cold start)")

	cfg, err := config.LoadRequestForwarder(config.NewSSMProvider(os.Getenv("AWS_REGION")))
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

	snsClient := sns.NewFromConfig(awsCfg)

	forwarder := &reconcile.Forwarder{
		Config: reconcile.ForwarderConfig{
			InventoryBucket: cfg.InventoryBucket,
		},
		Log:       logger,
		Publisher: notify.NewRequestPublisher(snsClient, cfg.RequestTopicARN, logger),
	}

	build := config.NewBuildInfo()
	logger.Info("Request Forwarder Lambda initialized",
		"version", build.Version,
		"commit", build.Commit,
		"request_topic_arn", cfg.RequestTopicARN,
		"inventory_bucket", cfg.InventoryBucket,
	)

	// Local mode: read a JSON S3 event from stdin instead of starting the
	// Lambda runtime.
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading S3 event from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("Failed to read stdin", "error", err)
			os.Exit(1)
		}
		if len(payload) == 0 {
			logger.Error("No input received on stdin")
			os.Exit(1)
		}
		var s3Event events.S3Event
		if err := json.Unmarshal(payload, &s3Event); err != nil {
			logger.Error("Failed to parse stdin as S3 event", "error", err)
			os.Exit(1)
		}
		msg, err := forwarder.Handler(ctx, s3Event)
		if err != nil {
			logger.Error("Handler execution failed", "error", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(msg, "", "  ")
		fmt.Fprintln(os.Stdout, string(out))
		return
	}

	lambda.Start(forwarder.Handler)
}
