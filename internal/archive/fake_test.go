package archive

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"fireworks-assets/internal/config"
	"fireworks-assets/internal/metrics"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/prometheus/client_golang/prometheus"
)

// fakeS3 는 PutObject 호출을 메모리에 기록한다. failures 만큼 먼저 실패한다.
type fakeS3 struct {
	mu       sync.Mutex
	objects  map[string][]byte
	failures int
	calls    int
}

func newFakeS3(failures int) *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, failures: failures}
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("s3 unavailable")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Key)] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) setFailures(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = n
}

func (f *fakeS3) snapshot() map[string][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string][]byte, len(f.objects))
	for k, v := range f.objects {
		out[k] = v
	}
	return out
}

func testArchiveConfig(t *testing.T) config.ArchiveConfig {
	t.Helper()
	return config.ArchiveConfig{
		Bucket:        "journal",
		Prefix:        "raw",
		DLQPrefix:     "raw_dlq",
		ChannelSize:   16,
		UploadQueue:   4,
		BatchSize:     3,
		FlushInterval: time.Hour,
		S3Timeout:     time.Second,
		S3AppRetries:  2,
		SpoolDir:      t.TempDir(),
		SpoolMaxAge:   time.Hour,
		SpoolMaxBytes: 1 << 20,
	}
}

func newTestUploader(cfg config.ArchiveConfig, m *metrics.Metrics, client PutObjectAPI) *S3Uploader {
	u := NewS3Uploader(cfg, m, client)
	u.backoff = time.Millisecond
	u.maxBackoff = time.Millisecond
	return u
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}
