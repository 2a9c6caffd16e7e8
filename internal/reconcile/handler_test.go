package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlsrecon/internal/ledger"
	"hlsrecon/internal/types"
)

func snsEvent(subject, message string) events.SNSEvent {
	return events.SNSEvent{
		Records: []events.SNSEventRecord{
			{
				EventSource: "aws:sns",
				SNS: events.SNSEntity{
					Type:      "Notification",
					MessageID: fixtureMessageID,
					TopicArn:  "arn:aws:sns:us-west-2:123456789012:lpdaac-response",
					Subject:   subject,
					Message:   message,
					Timestamp: time.Date(2024, 8, 27, 3, 15, 0, 0, time.UTC),
				},
			},
		},
	}
}

func TestHandlerProcessesNotification(t *testing.T) {
	f := newProcessorFixture()

	summary, err := f.processor.Handler(context.Background(), snsEvent(fixtureSubject, fixtureMessage))
	require.NoError(t, err)

	assert.Equal(t, types.ReconciliationSummary{
		"HLSL30___2.0": {},
		"HLSS30___2.0": {
			types.StatusTriggered: 1,
			types.StatusMissing:   2,
		},
	}, summary)
	assert.Empty(t, f.review.submits)
}

func TestHandlerRoutesPermanentErrorToReview(t *testing.T) {
	f := newProcessorFixture()

	summary, err := f.processor.Handler(context.Background(), snsEvent(fixtureSubject, "no report location in this text"))

	// The delivery is acknowledged: redelivering unparsable input can
	// never succeed.
	require.NoError(t, err)
	assert.Empty(t, summary)
	assert.NotNil(t, summary)

	require.Len(t, f.review.submits, 1)
	msg := f.review.submits[0]
	assert.Equal(t, fixtureMessageID, msg.MessageID)
	assert.NotEmpty(t, msg.RunID)
	assert.Equal(t, fixtureSubject, msg.Subject)
	assert.Equal(t, "no report location in this text", msg.Body)
	assert.Equal(t, string(types.ErrCodeUnparsableLocation), msg.FailureCode)
	assert.Contains(t, msg.FailureDetail, "cannot determine report location")
	assert.Equal(t, time.Date(2024, 8, 27, 3, 15, 0, 0, time.UTC), msg.ReceivedAt)

	require.Len(t, f.ledger.records, 1)
	rec := f.ledger.records[0]
	assert.Equal(t, ledger.OutcomeReview, rec.Outcome)
	assert.Equal(t, msg.RunID, rec.RunID)
}

func TestHandlerReviewSubmitFailureRetries(t *testing.T) {
	f := newProcessorFixture()
	f.review.err = types.NewAppError(types.ErrCodeStorageUnavailable, "sqs unavailable", nil)

	_, err := f.processor.Handler(context.Background(), snsEvent(fixtureSubject, "no report location in this text"))

	// With the review queue down the notification must not be dropped;
	// returning the error makes SNS redeliver.
	require.Error(t, err)
	assert.Empty(t, f.ledger.records)
}

func TestHandlerReturnsTransientError(t *testing.T) {
	f := newProcessorFixture()
	f.fetcher.err = types.NewAppError(types.ErrCodeStorageUnavailable, "s3 timeout", nil)

	_, err := f.processor.Handler(context.Background(), snsEvent(fixtureSubject, fixtureMessage))
	require.Error(t, err)
	assert.Empty(t, f.review.submits)
}

func TestHandlerRejectsEmptyEvent(t *testing.T) {
	f := newProcessorFixture()

	_, err := f.processor.Handler(context.Background(), events.SNSEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no records")
}
