package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"

	"hlsrecon/internal/types"
)

const (
	defaultCatalog  = "AwsDataCatalog"
	defaultDatabase = "default"

	defaultPollInterval = 5 * time.Second
	defaultMaxPolls     = 60

	resultPageSize = 1000
)

// AthenaClient abstracts the Athena operations the runner needs.
// Production code uses the *athena.Client from aws-sdk-go-v2.
type AthenaClient interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

// Runner starts inventory queries and polls them to completion. Athena
// query execution is asynchronous; Run blocks until the query reaches a
// terminal state or the poll budget runs out.
type Runner struct {
	client       AthenaClient
	catalog      string
	database     string
	outputPrefix string
	pollInterval time.Duration
	maxPolls     int
	logger       *slog.Logger
	sleepFn      func(time.Duration)
}

// RunnerOption is a functional option for configuring a Runner.
type RunnerOption func(*Runner)

// WithDatabase overrides the Glue database the query runs against.
func WithDatabase(database string) RunnerOption {
	return func(r *Runner) {
		r.database = database
	}
}

// WithSleepFunc overrides the sleep function used between status polls.
// This is intended for testing to avoid real delays.
func WithSleepFunc(fn func(time.Duration)) RunnerOption {
	return func(r *Runner) {
		r.sleepFn = fn
	}
}

// NewRunner creates a Runner that writes query results under the given
// s3:// output prefix.
func NewRunner(client AthenaClient, outputPrefix string, logger *slog.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		client:       client,
		catalog:      defaultCatalog,
		database:     defaultDatabase,
		outputPrefix: outputPrefix,
		pollInterval: defaultPollInterval,
		maxPolls:     defaultMaxPolls,
		logger:       logger,
		sleepFn:      time.Sleep,
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Run submits the query and waits for it to succeed, returning the query
// execution id used to page through the results.
func (r *Runner) Run(ctx context.Context, sql string) (string, error) {
	out, err := r.client.StartQueryExecution(ctx, &athena.StartQueryExecutionInput{
		QueryString: aws.String(sql),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Catalog:  aws.String(r.catalog),
			Database: aws.String(r.database),
		},
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(r.outputPrefix),
		},
	})
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeQueryFailed,
			"failed to start inventory query",
			err,
		)
	}

	queryID := aws.ToString(out.QueryExecutionId)
	r.logger.InfoContext(ctx, "inventory query started",
		"query_execution_id", queryID,
		"database", r.database,
	)

	if err := r.awaitCompletion(ctx, queryID); err != nil {
		return "", err
	}

	return queryID, nil
}

// awaitCompletion polls the query status until it succeeds, fails, or the
// poll budget is exhausted.
func (r *Runner) awaitCompletion(ctx context.Context, queryID string) error {
	for attempt := 0; attempt < r.maxPolls; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("inventory: awaiting query %s: %w", queryID, err)
		}

		out, err := r.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(queryID),
		})
		if err != nil {
			return fmt.Errorf("inventory: fetching status of query %s: %w", queryID, err)
		}
		if out.QueryExecution == nil || out.QueryExecution.Status == nil {
			r.sleepFn(r.pollInterval)
			continue
		}

		status := out.QueryExecution.Status
		switch status.State {
		case athenatypes.QueryExecutionStateSucceeded:
			return nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			return types.NewAppErrorWithDetails(
				types.ErrCodeQueryFailed,
				fmt.Sprintf("inventory query finished in state %s: %s",
					status.State, aws.ToString(status.StateChangeReason)),
				nil,
				map[string]any{"query_execution_id": queryID},
			)
		default:
			r.sleepFn(r.pollInterval)
		}
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeQueryTimeout,
		fmt.Sprintf("inventory query did not finish within %s",
			time.Duration(r.maxPolls)*r.pollInterval),
		nil,
		map[string]any{"query_execution_id": queryID},
	)
}

// Results returns a stream over the query's result rows. Pages are fetched
// on demand as the stream is consumed.
func (r *Runner) Results(queryID string) *RecordStream {
	pager := athena.NewGetQueryResultsPaginator(r.client, &athena.GetQueryResultsInput{
		QueryExecutionId: aws.String(queryID),
	}, func(o *athena.GetQueryResultsPaginatorOptions) {
		o.Limit = resultPageSize
	})
	return newRecordStream(pager)
}
