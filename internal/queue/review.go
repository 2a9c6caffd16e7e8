// Package queue provides the SQS-based producer for routing reconciliation
// notifications that need operator attention.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// ReviewMessage is the payload enqueued when a notification cannot be
// processed. It carries the original message so an operator can inspect
// and replay it.
type ReviewMessage struct {
	RunID         string    `json:"run_id"`
	MessageID     string    `json:"message_id"`
	Subject       string    `json:"subject,omitempty"`
	Body          string    `json:"body"`
	FailureCode   string    `json:"failure_code"`
	FailureDetail string    `json:"failure_detail"`
	ReceivedAt    time.Time `json:"received_at"`
}

// ReviewQueue forwards unprocessable notifications to the operator review
// queue instead of letting the worker retry them forever. Only input-format
// failures belong here; transient faults are left to the normal retry path.
type ReviewQueue struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewReviewQueue creates a ReviewQueue publishing to the given queue URL.
func NewReviewQueue(client SQSSender, queueURL string, logger *slog.Logger) *ReviewQueue {
	return &ReviewQueue{
		client:   client,
		queueURL: queueURL,
		logger:   logger,
	}
}

// Submit serializes the review message and enqueues it. The failure code
// rides along as a message attribute so operators can filter by cause
// without parsing bodies.
func (q *ReviewQueue) Submit(ctx context.Context, msg ReviewMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("queue: failed to marshal review message: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"failure_code": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.FailureCode),
			},
		},
	}

	_, err = q.client.SendMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("queue: failed to send review message to %s: %w", q.queueURL, err)
	}

	q.logger.InfoContext(ctx, "notification routed to review queue",
		"queue_url", q.queueURL,
		"run_id", msg.RunID,
		"message_id", msg.MessageID,
		"failure_code", msg.FailureCode,
	)

	return nil
}
