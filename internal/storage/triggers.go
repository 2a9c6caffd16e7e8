package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sony/gobreaker/v2"

	"hlsrecon/internal/types"
)

// TriggerStore checks and re-touches granule trigger objects in the HLS
// buckets. All calls share one circuit breaker so a throttling or outage
// episode during a large reconciliation run stops the touch loop quickly
// instead of grinding through hundreds of failing calls.
type TriggerStore struct {
	client  S3Client
	breaker *gobreaker.CircuitBreaker[bool]
	logger  *slog.Logger
}

// NewTriggerStore creates a TriggerStore.
func NewTriggerStore(client S3Client, logger *slog.Logger) *TriggerStore {
	cb := gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:        "s3-triggers",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return &TriggerStore{client: client, breaker: cb, logger: logger}
}

// Exists reports whether the trigger object is present.
func (s *TriggerStore) Exists(ctx context.Context, bucket, key string) (bool, error) {
	exists, err := s.breaker.Execute(func() (bool, error) {
		_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			var notFound *s3types.NotFound
			if errors.As(err, &notFound) {
				return false, nil
			}
			return false, err
		}
		return true, nil
	})
	if err != nil {
		return false, s.mapError(err, fmt.Sprintf("failed to check trigger object s3://%s/%s", bucket, key))
	}
	return exists, nil
}

// Touch rewrites the trigger object in place so its last-modified moves
// forward and the ingest pipeline's bucket notification fires again.
// S3 rejects a self-copy unless the metadata directive is REPLACE.
func (s *TriggerStore) Touch(ctx context.Context, bucket, key string) error {
	_, err := s.breaker.Execute(func() (bool, error) {
		_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
			Bucket:            aws.String(bucket),
			Key:               aws.String(key),
			CopySource:        aws.String(bucket + "/" + key),
			MetadataDirective: s3types.MetadataDirectiveReplace,
		})
		return false, err
	})
	if err != nil {
		return s.mapError(err, fmt.Sprintf("failed to touch trigger object s3://%s/%s", bucket, key))
	}

	s.logger.DebugContext(ctx, "trigger object touched", "bucket", bucket, "key", key)
	return nil
}

func (s *TriggerStore) mapError(err error, message string) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamThrottled,
			"trigger store circuit breaker is open",
			err,
		)
	}
	return types.NewAppError(types.ErrCodeStorageUnavailable, message, err)
}
