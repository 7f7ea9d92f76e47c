package archive

import (
	"context"

	"fireworks-assets/internal/config"
	"fireworks-assets/internal/metrics"
	"fireworks-assets/internal/model"

	"github.com/rs/zerolog"
)

// Recorder 는 saved / moved 기록을 받는 쪽이다.
type Recorder interface {
	Record(model.Record)
}

// Journal 은 Recorder 에 종료 처리를 더한 것이다.
type Journal interface {
	Recorder
	Shutdown(ctx context.Context) error
}

// Discard 는 journal 이 꺼져 있을 때 쓰는 no-op 구현.
type Discard struct{}

func (Discard) Record(model.Record) {}

func (Discard) Shutdown(context.Context) error { return nil }

// Open 은 ARCHIVE_BUCKET 이 설정되어 있으면 S3 journal 을 시작하고, 아니면 Discard 를 돌려준다.
func Open(ctx context.Context, cfg config.Config, m *metrics.Metrics, log zerolog.Logger) (Journal, error) {
	if !cfg.Archive.Enabled() {
		return Discard{}, nil
	}

	client, err := NewS3Client(ctx, cfg.Archive)
	if err != nil {
		return nil, err
	}

	mgr, err := NewManager(cfg.Archive, cfg.InstanceID, m, NewS3Uploader(cfg.Archive, m, client), log.With().Str("component", "archive").Logger())
	if err != nil {
		return nil, err
	}
	mgr.Start()

	log.Info().Str("bucket", cfg.Archive.Bucket).Str("prefix", cfg.Archive.Prefix).Msg("archive journal enabled")
	return mgr, nil
}
