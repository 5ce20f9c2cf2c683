// Package journal archives cycle results.
package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ignite/aicmo-cam/internal/contracts"
	"github.com/ignite/aicmo-cam/internal/pkg/logger"
)

var log = logger.Named("journal")

// Sink stores one cycle result.
type Sink interface {
	Write(ctx context.Context, result contracts.CycleResult) error
}

// S3API is the subset of the S3 client the sink uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes each cycle as a JSON object under
// <prefix>/cycles/YYYY/MM/DD/<worker>-<cycle>.json.
type S3Sink struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Sink loads the default AWS config for region.
func NewS3Sink(ctx context.Context, region, bucket, prefix string) (*S3Sink, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3SinkWithClient(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// NewS3SinkWithClient wraps an existing client.
func NewS3SinkWithClient(client S3API, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// Key returns the object key for a cycle.
func (s *S3Sink) Key(result contracts.CycleResult) string {
	day := result.StartedAt.UTC().Format("2006/01/02")
	return path.Join(s.prefix, "cycles", day, fmt.Sprintf("%s-%08d.json", result.WorkerID, result.CycleNumber))
}

// Write implements Sink.
func (s *S3Sink) Write(ctx context.Context, result contracts.CycleResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal cycle: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.Key(result)),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("put cycle %d: %w", result.CycleNumber, err)
	}
	return nil
}

// LogSink writes a one-line summary of each cycle to the log.
type LogSink struct{}

// Write implements Sink.
func (LogSink) Write(_ context.Context, r contracts.CycleResult) error {
	failed, skipped := 0, 0
	for _, s := range r.Steps {
		switch {
		case s.Skipped:
			skipped++
		case !s.Success:
			failed++
		}
	}
	log.Info("cycle journal", "worker_id", r.WorkerID, "cycle", r.CycleNumber, "success", r.Success,
		"duration", r.Duration.Round(time.Millisecond).String(), "steps", len(r.Steps), "failed", failed, "skipped", skipped)
	return nil
}
