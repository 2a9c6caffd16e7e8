// Package storage wraps the S3 operations performed while reconciling:
// fetching LP DAAC detail reports and re-touching granule trigger objects.
package storage

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"

	"hlsrecon/internal/types"
)

// S3Client abstracts the S3 operations this package needs. Production
// code uses the *s3.Client from aws-sdk-go-v2.
type S3Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	CopyObject(ctx context.Context, params *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
}

// ReportFetcher downloads reconciliation detail reports.
type ReportFetcher struct {
	client S3Client
	logger *slog.Logger
}

// NewReportFetcher creates a ReportFetcher.
func NewReportFetcher(client S3Client, logger *slog.Logger) *ReportFetcher {
	return &ReportFetcher{client: client, logger: logger}
}

// Fetch opens the report object and returns a reader over its decoded
// bytes. Reports are sometimes delivered gzip-compressed without a
// matching Content-Encoding, so the leading bytes are sniffed for the
// gzip magic number instead of trusting object metadata.
func (f *ReportFetcher) Fetch(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeStorageUnavailable,
			fmt.Sprintf("failed to fetch report s3://%s/%s", bucket, key),
			err,
		)
	}

	br := bufio.NewReader(out.Body)
	magic, err := br.Peek(2)
	if err == nil && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			out.Body.Close()
			return nil, types.NewAppError(
				types.ErrCodeMalformedReport,
				fmt.Sprintf("report s3://%s/%s has a gzip header but does not decompress", bucket, key),
				err,
			)
		}
		f.logger.DebugContext(ctx, "report is gzip-compressed", "bucket", bucket, "key", key)
		return &gzipReadCloser{zr: zr, body: out.Body}, nil
	}

	return &plainReadCloser{Reader: br, body: out.Body}, nil
}

type plainReadCloser struct {
	io.Reader
	body io.Closer
}

func (p *plainReadCloser) Close() error {
	return p.body.Close()
}

type gzipReadCloser struct {
	zr   *gzip.Reader
	body io.Closer
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.zr.Read(p)
}

func (g *gzipReadCloser) Close() error {
	zerr := g.zr.Close()
	if berr := g.body.Close(); zerr == nil {
		return berr
	}
	return zerr
}
