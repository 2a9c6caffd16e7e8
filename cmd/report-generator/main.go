// Package main is the entrypoint for the Report Generator Lambda function.
//
// The Report Generator runs daily via an EventBridge rule. It queries the
// HLS S3 inventory through Athena for objects created in the reporting
// window and writes one reconciliation report file per product to the
// LP DAAC drop prefix. The Request Forwarder Lambda then announces each
// report as it lands.
//
// Cold Start (main):
//  1. Initialize structured logger.
//  2. Load and validate configuration.
//  3. Load AWS SDK configuration.
//  4. Initialize Athena, S3, and CloudWatch clients.
//  5. Wire the inventory.Runner and report.Generator.
//  6. Register the handler and call lambda.Start.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"hlsrecon/internal/config"
	"hlsrecon/internal/inventory"
	"hlsrecon/internal/metrics"
	"hlsrecon/internal/report"
)

func main() {
	// Initialize structured logger at startup (Cold Start).
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Report Generator Lambda initializing (cold start)")

	cfg, err := config.LoadReportGenerator(config.NewSSMProvider(os.Getenv("AWS_REGION")))
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
	athenaClient := athena.NewFromConfig(awsCfg)
	s3Client := s3.NewFromConfig(awsCfg)
	cwClient := cloudwatch.NewFromConfig(awsCfg)

	runner := inventory.NewRunner(athenaClient, cfg.QueryOutputPrefix, logger)
	generator := report.NewGenerator(
		runner,
		s3Client,
		cfg.InventoryTable,
		cfg.ReportOutputPrefix,
		cfg.ProductVersion,
		cfg.ReportExtension,
		metrics.NewRecorder(cwClient, cfg.MetricNamespace, logger),
		logger,
	)

	build := config.NewBuildInfo()
	logger.Info("Report Generator Lambda initialized",
		"version", build.Version,
		"commit", build.Commit,
		"inventory_table", cfg.InventoryTable,
		"query_output_prefix", cfg.QueryOutputPrefix,
		"report_output_prefix", cfg.ReportOutputPrefix,
		"product_version", cfg.ProductVersion,
		"report_extension", cfg.ReportExtension,
	)

	// Local mode: read a JSON run request from stdin instead of starting the
	// Lambda runtime. An empty request ({}) runs the default window.
	if cfg.Environment == "local" {
		logger.Info("APP_ENV=local: reading run request from stdin")
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("Failed to read stdin", "error", err)
			os.Exit(1)
		}
		if len(payload) == 0 {
			logger.Error("No input received on stdin")
			os.Exit(1)
		}
		var req report.RunRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			logger.Error("Failed to parse stdin as run request", "error", err)
			os.Exit(1)
		}
		counts, err := generator.Handler(ctx, req)
		if err != nil {
			logger.Error("Handler execution failed", "error", err)
			os.Exit(1)
		}
		out, _ := json.MarshalIndent(counts, "", "  ")
		fmt.Fprintln(os.Stdout, string(out))
		return
	}

	lambda.Start(generator.Handler)
}
