package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"hlsrecon/internal/ledger"
	"hlsrecon/internal/queue"
	"hlsrecon/internal/types"
)

// Handler is the Lambda entrypoint for the response worker. SNS invokes
// the function with exactly one record per delivery; only the first record
// is examined.
//
// Error routing: permanent input errors (unparsable notification text,
// malformed report JSON, bad collection or granule ids) are forwarded to
// the review queue and acknowledged, so SNS does not redeliver input that
// can never succeed. Transient faults return an error and the delivery is
// retried.
func (p *Processor) Handler(ctx context.Context, event events.SNSEvent) (types.ReconciliationSummary, error) {
	if len(event.Records) == 0 {
		return nil, fmt.Errorf("reconcile: SNS event has no records")
	}

	sns := event.Records[0].SNS
	n := Notification{
		MessageID:  sns.MessageID,
		Subject:    sns.Subject,
		Message:    sns.Message,
		ReceivedAt: sns.Timestamp,
	}

	p.Log.InfoContext(ctx, "processing reconciliation notification",
		"message_id", n.MessageID,
		"subject", n.Subject,
	)

	summary, err := p.ProcessNotification(ctx, n)
	if err == nil {
		return summary, nil
	}
	if !types.IsPermanent(err) {
		return nil, err
	}
	if reviewErr := p.submitForReview(ctx, n, err); reviewErr != nil {
		// The review queue itself failed; retry the whole delivery rather
		// than dropping the notification.
		return nil, reviewErr
	}
	return types.ReconciliationSummary{}, nil
}

// submitForReview routes an unprocessable notification to the operator
// review queue and records the outcome so redeliveries of the same message
// are skipped.
func (p *Processor) submitForReview(ctx context.Context, n Notification, cause error) error {
	runID := uuid.New().String()

	code := types.ErrCodeInternalUnexpected
	var appErr *types.AppError
	if errors.As(cause, &appErr) {
		code = appErr.Code
	}

	if err := p.Review.Submit(ctx, queue.ReviewMessage{
		RunID:         runID,
		MessageID:     n.MessageID,
		Subject:       n.Subject,
		Body:          n.Message,
		FailureCode:   string(code),
		FailureDetail: cause.Error(),
		ReceivedAt:    n.ReceivedAt,
	}); err != nil {
		return err
	}

	p.Log.ErrorContext(ctx, "notification cannot be processed, sent for review",
		"run_id", runID,
		"message_id", n.MessageID,
		"subject", n.Subject,
		"failure_code", string(code),
		"error", cause.Error(),
	)

	p.record(ctx, p.Log, ledger.RunRecord{
		MessageID:   n.MessageID,
		RunID:       runID,
		Subject:     n.Subject,
		Outcome:     ledger.OutcomeReview,
		ProcessedAt: time.Now().UTC(),
	})

	return nil
}
