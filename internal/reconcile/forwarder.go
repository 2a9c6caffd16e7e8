package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"hlsrecon/internal/types"
)

// RequestPublisher announces a report to LP DAAC over SNS.
type RequestPublisher interface {
	PublishReport(ctx context.Context, ref types.ReportRef) (types.RequestMessage, error)
}

// ForwarderConfig holds the configuration for the request forwarder Lambda.
type ForwarderConfig struct {
	// InventoryBucket is the bucket report objects are expected to land in.
	// Events from any other bucket are discarded. Empty disables the check.
	InventoryBucket string
}

// Forwarder handles object-created events from the HLS inventory bucket
// and asks LP DAAC to reconcile each new report.
type Forwarder struct {
	Config    ForwarderConfig
	Log       *slog.Logger
	Publisher RequestPublisher
}

// Handler is the Lambda entrypoint for the request forwarder. S3 delivers
// one record per event; only the first record is examined. The published
// request message is returned for direct invocations.
func (f *Forwarder) Handler(ctx context.Context, event events.S3Event) (types.RequestMessage, error) {
	if len(event.Records) == 0 {
		return types.RequestMessage{}, fmt.Errorf("reconcile: S3 event has no records")
	}

	record := event.Records[0]
	bucket := record.S3.Bucket.Name
	// S3 event notifications URL-encode the object key. URLDecodedKey holds
	// the decoded form; older event shapes leave it empty.
	key := record.S3.Object.URLDecodedKey
	if key == "" {
		key = record.S3.Object.Key
	}

	// An event from another bucket is a misconfigured notification or a
	// cross-account injection. Discard without retrying.
	if f.Config.InventoryBucket != "" && bucket != f.Config.InventoryBucket {
		f.Log.ErrorContext(ctx, "S3 event from unexpected bucket, discarding",
			"expected_bucket", f.Config.InventoryBucket,
			"actual_bucket", bucket,
			"key", key,
		)
		return types.RequestMessage{}, nil
	}

	msg, err := f.Publisher.PublishReport(ctx, types.ReportRef{
		URI: fmt.Sprintf("s3://%s/%s", bucket, key),
	})
	if err != nil {
		return types.RequestMessage{}, err
	}

	return msg, nil
}
