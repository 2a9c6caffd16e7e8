package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"hlsrecon/internal/types"
)

func TestExistsTrue(t *testing.T) {
	client := &fakeS3{}
	store := NewTriggerStore(client, discardLogger())

	exists, err := store.Exists(context.Background(), "hls-forward", "S30/data/2124237/id/id.json")
	if err != nil {
		t.Fatalf("Exists error: %v", err)
	}
	if !exists {
		t.Error("exists = false, want true")
	}
	if aws.ToString(client.lastHead.Bucket) != "hls-forward" {
		t.Errorf("bucket = %q", aws.ToString(client.lastHead.Bucket))
	}
	if aws.ToString(client.lastHead.Key) != "S30/data/2124237/id/id.json" {
		t.Errorf("key = %q", aws.ToString(client.lastHead.Key))
	}
}

func TestExistsNotFound(t *testing.T) {
	client := &fakeS3{headErr: &s3types.NotFound{}}
	store := NewTriggerStore(client, discardLogger())

	exists, err := store.Exists(context.Background(), "hls-forward", "S30/data/2124237/id/id.json")
	if err != nil {
		t.Fatalf("a missing object is not an error, got: %v", err)
	}
	if exists {
		t.Error("exists = true, want false")
	}
}

func TestExistsRequestError(t *testing.T) {
	client := &fakeS3{headErr: errors.New("internal error")}
	store := NewTriggerStore(client, discardLogger())

	_, err := store.Exists(context.Background(), "hls-forward", "k.json")
	if err == nil {
		t.Fatal("expected error")
	}

	var appErr *types.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("error is not an AppError: %v", err)
	}
	if appErr.Code != types.ErrCodeStorageUnavailable {
		t.Errorf("code = %q, want %q", appErr.Code, types.ErrCodeStorageUnavailable)
	}
}

func TestTouch(t *testing.T) {
	client := &fakeS3{}
	store := NewTriggerStore(client, discardLogger())

	key := "L30_VI/data/2025083/HLS-VI.L30.T50WPA.2025083T034714.v2.0/HLS-VI.L30.T50WPA.2025083T034714.v2.0.json"
	if err := store.Touch(context.Background(), "hls-forward", key); err != nil {
		t.Fatalf("Touch error: %v", err)
	}

	if client.copyCalls != 1 {
		t.Fatalf("copyCalls = %d, want 1", client.copyCalls)
	}
	in := client.lastCopy
	if aws.ToString(in.Bucket) != "hls-forward" {
		t.Errorf("Bucket = %q", aws.ToString(in.Bucket))
	}
	if aws.ToString(in.Key) != key {
		t.Errorf("Key = %q", aws.ToString(in.Key))
	}
	if aws.ToString(in.CopySource) != "hls-forward/"+key {
		t.Errorf("CopySource = %q", aws.ToString(in.CopySource))
	}
	if in.MetadataDirective != s3types.MetadataDirectiveReplace {
		t.Errorf("MetadataDirective = %q, want REPLACE", in.MetadataDirective)
	}
}

func TestTouchError(t *testing.T) {
	client := &fakeS3{copyErr: errors.New("slow down")}
	store := NewTriggerStore(client, discardLogger())

	err := store.Touch(context.Background(), "hls-forward", "k.json")
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeStorageUnavailable {
		t.Fatalf("want %s AppError, got %v", types.ErrCodeStorageUnavailable, err)
	}
}

// TestBreakerOpens drives consecutive failures until the shared breaker
// trips, then verifies both operations fail fast without reaching S3.
func TestBreakerOpens(t *testing.T) {
	client := &fakeS3{headErr: errors.New("internal error")}
	store := NewTriggerStore(client, discardLogger())
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		if _, err := store.Exists(ctx, "hls-forward", "k.json"); err == nil {
			t.Fatalf("call %d should fail", i)
		}
	}
	if client.headCalls != 6 {
		t.Fatalf("headCalls = %d, want 6", client.headCalls)
	}

	_, err := store.Exists(ctx, "hls-forward", "k.json")
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeUpstreamThrottled {
		t.Fatalf("want %s AppError, got %v", types.ErrCodeUpstreamThrottled, err)
	}
	if client.headCalls != 6 {
		t.Errorf("open breaker should not reach S3, headCalls = %d", client.headCalls)
	}

	if err := store.Touch(ctx, "hls-forward", "k.json"); err == nil {
		t.Fatal("Touch should fail while the breaker is open")
	}
	if client.copyCalls != 0 {
		t.Errorf("copyCalls = %d, want 0", client.copyCalls)
	}
}
