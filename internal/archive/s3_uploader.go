// internal/archive/s3_uploader.go
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"fireworks-assets/internal/config"
	"fireworks-assets/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfgLib "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// PutObjectAPI 는 S3Uploader 가 쓰는 S3 client 의 부분 집합이다.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader 는 journal 파일을 S3 로 올린다.
//   - 메모리 바이트 업로드 (UploadBytesWithRetryCtx)
//   - spool 파일 업로드 (UploadFileWithRetryCtx)
//
// 재시도 횟수는 애플리케이션 레벨(S3AppRetries)에서만 제어하고 SDK retry 는 0 으로 고정한다.
type S3Uploader struct {
	cfg     config.ArchiveConfig
	metrics *metrics.Metrics
	client  PutObjectAPI

	backoff    time.Duration
	maxBackoff time.Duration
}

func NewS3Uploader(cfg config.ArchiveConfig, m *metrics.Metrics, client PutObjectAPI) *S3Uploader {
	return &S3Uploader{
		cfg:        cfg,
		metrics:    m,
		client:     client,
		backoff:    200 * time.Millisecond,
		maxBackoff: 2 * time.Second,
	}
}

// NewS3Client 는 region / endpoint 설정으로 S3 client 를 만든다.
// Endpoint 가 있으면 path-style 로 접근한다 (MinIO, localstack).
func NewS3Client(ctx context.Context, cfg config.ArchiveConfig) (*s3.Client, error) {
	awsCfg, err := awsCfgLib.LoadDefaultConfig(ctx, awsCfgLib.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		// RetryMaxAttempts=0 은 "SDK 기본값" 이므로 retryer 자체를 끈다.
		o.Retryer = aws.NopRetryer{}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// UploadBytesWithRetryCtx 는 메모리의 gzip+JSONL 바이트를 올린다.
// 재시도마다 reader 를 새로 만든다.
func (u *S3Uploader) UploadBytesWithRetryCtx(ctx context.Context, key string, body []byte) error {
	return u.withRetry(ctx, func() error {
		return u.putObject(ctx, key, bytes.NewReader(body), int64(len(body)))
	})
}

// UploadFileWithRetryCtx 는 spool 파일을 올린다. 재시도 전에 Seek(0) 으로 되감는다.
func (u *S3Uploader) UploadFileWithRetryCtx(ctx context.Context, key string, f io.ReadSeeker, size int64) error {
	return u.withRetry(ctx, func() error {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return err
		}
		return u.putObject(ctx, key, f, size)
	})
}

func (u *S3Uploader) withRetry(ctx context.Context, attemptFn func() error) error {
	var lastErr error
	backoff := u.backoff

	for attempt := 1; attempt <= u.cfg.S3AppRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := attemptFn()
		if err == nil {
			return nil
		}
		lastErr = err
		u.metrics.S3PutErrorsTotal.Inc()

		if attempt == u.cfg.S3AppRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > u.maxBackoff {
				backoff = u.maxBackoff
			}
		}
	}

	return lastErr
}

// putObject 는 PutObject 1회 호출. 시도마다 S3Timeout 을 건다.
func (u *S3Uploader) putObject(ctx context.Context, key string, body io.Reader, size int64) error {
	ctx2, cancel := context.WithTimeout(ctx, u.cfg.S3Timeout)
	defer cancel()

	_, err := u.client.PutObject(ctx2, &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
	})
	return err
}
