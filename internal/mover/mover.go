// Package mover relocates files matching a name pattern from a watched
// directory into a destination directory, once or by polling.
package mover

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"fireworks-assets/internal/archive"
	"fireworks-assets/internal/config"
	"fireworks-assets/internal/metrics"
	"fireworks-assets/internal/model"

	"github.com/rs/zerolog"
)

// Mover 는 SourceDir 에서 Pattern 에 맞는 파일을 DestDir 로 옮긴다.
type Mover struct {
	cfg      config.MoverConfig
	metrics  *metrics.Metrics
	recorder archive.Recorder
	log      zerolog.Logger
}

func New(cfg config.MoverConfig, m *metrics.Metrics, rec archive.Recorder, log zerolog.Logger) *Mover {
	if rec == nil {
		rec = archive.Discard{}
	}
	return &Mover{
		cfg:      cfg,
		metrics:  m,
		recorder: rec,
		log:      log,
	}
}

// Relocate 는 한 번의 이동 pass 를 돈다.
//
// DestDir 이 없으면 만든다. 파일별 실패(권한, 그 사이 사라진 파일 등)는
// 로그만 남기고 다음 파일로 넘어간다. 성공적으로 옮긴 파일 수를 돌려준다.
// 에러는 목적지 생성이나 source 목록 조회 자체가 실패한 경우에만 돌려준다.
func (mv *Mover) Relocate() (int, error) {
	if err := mv.ensureDest(); err != nil {
		return 0, err
	}

	matches, err := mv.matches()
	if err != nil {
		return 0, err
	}
	mv.metrics.MoverPassesTotal.Inc()

	if len(matches) == 0 {
		mv.log.Info().Str("source", mv.cfg.SourceDir).Str("pattern", mv.cfg.Pattern).Msg("no matching files")
		return 0, nil
	}

	moved := 0
	for _, name := range matches {
		src := filepath.Join(mv.cfg.SourceDir, name)
		dst := filepath.Join(mv.cfg.DestDir, name)

		if err := moveFile(src, dst); err != nil {
			mv.metrics.FileMoveErrorsTotal.Inc()
			mv.log.Warn().Err(err).Str("file", name).Msg("move failed, skipping")
			continue
		}

		moved++
		mv.metrics.FilesMovedTotal.Inc()
		mv.log.Info().Str("file", name).Msg("moved")

		var size int64
		if info, err := os.Stat(dst); err == nil {
			size = info.Size()
		}
		mv.recorder.Record(model.Record{
			Kind:   model.KindMoved,
			Name:   name,
			Path:   dst,
			Size:   size,
			Origin: src,
		})
	}

	mv.log.Info().Int("moved", moved).Str("dest", mv.cfg.DestDir).Msg("relocation pass finished")
	return moved, nil
}

// Count 는 SourceDir 에서 Pattern 에 맞는 항목 수.
func (mv *Mover) Count() (int, error) {
	matches, err := mv.matches()
	return len(matches), err
}

// Watch 는 ctx 가 끝날 때까지 PollInterval 마다 source 를 센다.
// 개수가 baseline 보다 늘었을 때만 Relocate 를 부른다.
// 중단은 정상 종료이므로 nil 을 돌려준다.
func (mv *Mover) Watch(ctx context.Context) error {
	baseline, err := mv.Count()
	if err != nil {
		return err
	}

	mv.log.Info().
		Str("source", mv.cfg.SourceDir).
		Str("dest", mv.cfg.DestDir).
		Dur("interval", mv.cfg.PollInterval).
		Int("baseline", baseline).
		Msg("watching for new files")

	ticker := time.NewTicker(mv.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			mv.log.Info().Msg("watch stopped")
			return nil
		case <-ticker.C:
			baseline = mv.poll(baseline)
		}
	}
}

// poll 은 watch 한 주기를 처리하고 새 baseline 을 돌려준다.
//
// 개수가 늘었으면 이동 후 남은 개수가 baseline 이 되고,
// 같거나 줄었으면 지금 개수가 그대로 baseline 이 된다.
// 추가와 삭제가 동시에 일어나 순증가가 없으면 이동하지 않는다.
func (mv *Mover) poll(baseline int) int {
	current, err := mv.Count()
	if err != nil {
		mv.log.Warn().Err(err).Msg("count failed")
		return baseline
	}
	if current <= baseline {
		return current
	}

	if _, err := mv.Relocate(); err != nil {
		mv.log.Error().Err(err).Msg("relocation pass failed")
		return current
	}

	after, err := mv.Count()
	if err != nil {
		return current
	}
	return after
}

func (mv *Mover) ensureDest() error {
	if _, err := os.Stat(mv.cfg.DestDir); err == nil {
		return nil
	}
	if err := os.MkdirAll(mv.cfg.DestDir, 0o755); err != nil {
		return fmt.Errorf("create destination %s: %w", mv.cfg.DestDir, err)
	}
	mv.log.Info().Str("dest", mv.cfg.DestDir).Msg("created destination directory")
	return nil
}

// matches 는 SourceDir 바로 아래(비재귀)에서 Pattern 에 맞는 이름을 정렬해 돌려준다.
// SourceDir 이 없으면 빈 결과다.
func (mv *Mover) matches() ([]string, error) {
	entries, err := os.ReadDir(mv.cfg.SourceDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", mv.cfg.SourceDir, err)
	}

	var names []string
	for _, e := range entries {
		ok, err := filepath.Match(mv.cfg.Pattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", mv.cfg.Pattern, err)
		}
		if ok {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
