package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlsrecon/internal/types"
)

var _ DynamoDBClient = (*fakeDynamo)(nil)

type fakeDynamo struct {
	putInput *dynamodb.PutItemInput
	putErr   error
	getInput *dynamodb.GetItemInput
	getItem  map[string]ddbtypes.AttributeValue
	getErr   error
}

func (f *fakeDynamo) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.putInput = params
	if f.putErr != nil {
		return nil, f.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDynamo) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.getInput = params
	if f.getErr != nil {
		return nil, f.getErr
	}
	return &dynamodb.GetItemOutput{Item: f.getItem}, nil
}

func newTestLedger(client DynamoDBClient) *Ledger {
	return New(client, "reconciliation-runs", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func sampleRecord() RunRecord {
	return RunRecord{
		MessageID: "95df01b4-ee98-5cb9-9903-4c221d41eb5e",
		RunID:     "run-1234",
		Subject:   "Rec-Report HLS lp-prod HLS_reconcile_2024239_2.0.rpt",
		ReportURI: "s3://lp-prod-reconciliation/reports/HLS_reconcile_2024239_2.0.json",
		Outcome:   OutcomeProcessed,
		Summary: types.ReconciliationSummary{
			"HLSS30___2.0": {types.StatusTriggered: 1, types.StatusMissing: 2},
		},
		ProcessedAt: time.Date(2024, 8, 26, 12, 0, 0, 0, time.UTC),
	}
}

func TestRecord(t *testing.T) {
	client := &fakeDynamo{}
	l := newTestLedger(client)

	err := l.Record(context.Background(), sampleRecord())
	require.NoError(t, err)

	in := client.putInput
	require.NotNil(t, in)
	assert.Equal(t, "reconciliation-runs", aws.ToString(in.TableName))
	assert.Equal(t, "attribute_not_exists(message_id)", aws.ToString(in.ConditionExpression))

	id, ok := in.Item["message_id"].(*ddbtypes.AttributeValueMemberS)
	require.True(t, ok, "message_id should marshal as a string attribute")
	assert.Equal(t, "95df01b4-ee98-5cb9-9903-4c221d41eb5e", id.Value)

	outcome, ok := in.Item["outcome"].(*ddbtypes.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, OutcomeProcessed, outcome.Value)

	_, ok = in.Item["summary"].(*ddbtypes.AttributeValueMemberM)
	assert.True(t, ok, "summary should marshal as a map attribute")
}

func TestRecordDuplicate(t *testing.T) {
	client := &fakeDynamo{putErr: &ddbtypes.ConditionalCheckFailedException{}}
	l := newTestLedger(client)

	err := l.Record(context.Background(), sampleRecord())
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func TestRecordStorageError(t *testing.T) {
	client := &fakeDynamo{putErr: errors.New("throughput exceeded")}
	l := newTestLedger(client)

	err := l.Record(context.Background(), sampleRecord())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrAlreadyProcessed)

	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeStorageUnavailable, appErr.Code)
}

func TestSeen(t *testing.T) {
	client := &fakeDynamo{getItem: map[string]ddbtypes.AttributeValue{
		"message_id": &ddbtypes.AttributeValueMemberS{Value: "m-1"},
	}}
	l := newTestLedger(client)

	seen, err := l.Seen(context.Background(), "m-1")
	require.NoError(t, err)
	assert.True(t, seen)

	in := client.getInput
	require.NotNil(t, in)
	assert.Equal(t, "reconciliation-runs", aws.ToString(in.TableName))
	assert.True(t, aws.ToBool(in.ConsistentRead))

	key, ok := in.Key["message_id"].(*ddbtypes.AttributeValueMemberS)
	require.True(t, ok)
	assert.Equal(t, "m-1", key.Value)
}

func TestSeenMiss(t *testing.T) {
	client := &fakeDynamo{}
	l := newTestLedger(client)

	seen, err := l.Seen(context.Background(), "m-unknown")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSeenStorageError(t *testing.T) {
	client := &fakeDynamo{getErr: errors.New("connection reset")}
	l := newTestLedger(client)

	_, err := l.Seen(context.Background(), "m-1")
	var appErr *types.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, types.ErrCodeStorageUnavailable, appErr.Code)
}
