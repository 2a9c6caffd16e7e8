// Package ledger records processed reconciliation notifications in
// DynamoDB. The ledger serves two purposes: redelivered SNS messages are
// detected before the worker re-touches hundreds of trigger objects, and
// every run's outcome stays queryable for operators.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"hlsrecon/internal/types"
)

// ErrAlreadyProcessed reports that a notification with the same message
// id was recorded earlier, i.e. this delivery is a duplicate.
var ErrAlreadyProcessed = errors.New("ledger: notification already processed")

// DynamoDBClient abstracts the DynamoDB operations the ledger needs.
// Production code uses the *dynamodb.Client from aws-sdk-go-v2.
type DynamoDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

// RunRecord is one processed notification. The SNS message id is the
// table's partition key.
type RunRecord struct {
	MessageID   string                      `dynamodbav:"message_id"`
	RunID       string                      `dynamodbav:"run_id"`
	Subject     string                      `dynamodbav:"subject,omitempty"`
	ReportURI   string                      `dynamodbav:"report_uri,omitempty"`
	Outcome     string                      `dynamodbav:"outcome"`
	Summary     types.ReconciliationSummary `dynamodbav:"summary,omitempty"`
	ProcessedAt time.Time                   `dynamodbav:"processed_at"`
}

// Run outcomes stored in the ledger.
const (
	OutcomeProcessed = "processed"
	OutcomeClean     = "clean"
	OutcomeReview    = "review"
)

// Ledger reads and writes run records in one DynamoDB table.
type Ledger struct {
	client    DynamoDBClient
	tableName string
	logger    *slog.Logger
}

// New creates a Ledger backed by the given table.
func New(client DynamoDBClient, tableName string, logger *slog.Logger) *Ledger {
	return &Ledger{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Seen reports whether a notification with this message id was already
// recorded. It uses a consistent read so a record written moments ago by
// another invocation is visible.
func (l *Ledger) Seen(ctx context.Context, messageID string) (bool, error) {
	out, err := l.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(l.tableName),
		Key: map[string]ddbtypes.AttributeValue{
			"message_id": &ddbtypes.AttributeValueMemberS{Value: messageID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return false, types.NewAppError(
			types.ErrCodeStorageUnavailable,
			fmt.Sprintf("failed to look up message %s in run ledger", messageID),
			err,
		)
	}
	return len(out.Item) > 0, nil
}

// Record writes the run record. It fails with ErrAlreadyProcessed when a
// record with the same message id exists, so a racing duplicate delivery
// loses cleanly.
func (l *Ledger) Record(ctx context.Context, rec RunRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("ledger: marshaling run record: %w", err)
	}

	_, err = l.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(l.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(message_id)"),
	})
	if err != nil {
		var conditionFailed *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrAlreadyProcessed
		}
		return types.NewAppError(
			types.ErrCodeStorageUnavailable,
			fmt.Sprintf("failed to record run for message %s", rec.MessageID),
			err,
		)
	}

	l.logger.InfoContext(ctx, "run recorded",
		"message_id", rec.MessageID,
		"run_id", rec.RunID,
		"outcome", rec.Outcome,
	)

	return nil
}
