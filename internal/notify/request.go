// Package notify publishes reconciliation request messages to the LP DAAC
// SNS topic.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"hlsrecon/internal/types"
)

// SNSPublisher abstracts the SNS Publish operation for testability.
// Production code uses the *sns.Client from aws-sdk-go-v2.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// RequestPublisher announces newly written inventory report files to
// LP DAAC so a reconciliation run starts on their side.
type RequestPublisher struct {
	client   SNSPublisher
	topicARN string
	logger   *slog.Logger
}

// NewRequestPublisher creates a RequestPublisher for the given topic.
func NewRequestPublisher(client SNSPublisher, topicARN string, logger *slog.Logger) *RequestPublisher {
	return &RequestPublisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger,
	}
}

// PublishReport publishes the request message pointing at the report
// object and returns the message as sent.
func (p *RequestPublisher) PublishReport(ctx context.Context, ref types.ReportRef) (types.RequestMessage, error) {
	msg := types.RequestMessage{Report: ref}

	body, err := json.Marshal(msg)
	if err != nil {
		return types.RequestMessage{}, fmt.Errorf("notify: failed to marshal request message: %w", err)
	}

	if _, err := p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
	}); err != nil {
		return types.RequestMessage{}, fmt.Errorf("notify: failed to publish request for %s: %w", ref.URI, err)
	}

	p.logger.InfoContext(ctx, "reconciliation request published",
		"topic_arn", p.topicARN,
		"report_uri", ref.URI,
	)

	return msg, nil
}
