// Package ingest turns WebSocket save requests into image files on disk.
package ingest

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"fireworks-assets/internal/archive"
	"fireworks-assets/internal/metrics"
	"fireworks-assets/internal/model"

	"github.com/rs/zerolog"
)

var (
	ErrDecode = errors.New("decode image payload")
	ErrWrite  = errors.New("write image file")
	ErrPanic  = errors.New("panic while handling message")
)

// Handler 는 연결 상태를 갖지 않는다. 여러 연결에서 동시에 불러도 된다.
type Handler struct {
	outputDir string
	metrics   *metrics.Metrics
	recorder  archive.Recorder
	log       zerolog.Logger
}

// NewHandler 는 outputDir 을 미리 만들어 둔다.
func NewHandler(outputDir string, m *metrics.Metrics, rec archive.Recorder, log zerolog.Logger) (*Handler, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", outputDir, err)
	}
	if rec == nil {
		rec = archive.Discard{}
	}
	return &Handler{
		outputDir: outputDir,
		metrics:   m,
		recorder:  rec,
		log:       log,
	}, nil
}

// OutputDir 은 이미지가 쓰이는 디렉토리.
func (h *Handler) OutputDir() string { return h.outputDir }

// Handle
//
// 메시지 한 건을 처리한다.
//
//  1. 비어 있음 / binary / '{...}' 모양 아님 / 파싱 실패 / type 없음 → 로그 후 버림
//  2. type == saveImage: image, filename 검사 → data URL 제거 → base64 decode → 파일 쓰기
//  3. 다른 type 은 아무것도 하지 않는다
//
// 저장에 성공했을 때만 Ack 를 돌려준다. 버려진 메시지는 (nil, nil).
// decode / write 실패와 panic 은 error 로 돌려주며 stack 과 함께 로그를 남긴다.
// 어떤 경우에도 연결은 계속 쓸 수 있다.
func (h *Handler) Handle(connID string, f Frame) (ack *Ack, err error) {
	log := h.log.With().Str("conn", connID).Logger()

	defer func() {
		if r := recover(); r != nil {
			ack = nil
			err = fmt.Errorf("%w: %v", ErrPanic, r)
			h.metrics.Message(metrics.OutcomeFailed)
			log.Error().Err(err).Str("stack", string(debug.Stack())).Msg("error processing message")
		}
	}()

	if len(f.Payload) == 0 {
		h.discard(log, metrics.OutcomeEmpty).Msg("received empty message")
		return nil, nil
	}
	if !f.Text {
		h.discard(log, metrics.OutcomeNonText).Int("bytes", len(f.Payload)).Msg("invalid message type: binary")
		return nil, nil
	}

	text := strings.TrimSpace(string(f.Payload))
	if !looksLikeObject(text) {
		h.discard(log, metrics.OutcomeNotJSON).Str("preview", preview(text, shapePreviewLen)).Msg("message doesn't look like JSON")
		return nil, nil
	}

	env, err := parseEnvelope(text)
	if err != nil {
		h.discard(log, metrics.OutcomeParseError).
			Err(err).
			Str("preview", preview(text, parsePreviewLen)).
			Msg("JSON decode error")
		return nil, nil
	}

	if !env.has("type") {
		h.discard(log, metrics.OutcomeMissingType).Msg("missing 'type' field in message")
		return nil, nil
	}
	if env.str("type") != TypeSaveImage {
		h.metrics.Message(metrics.OutcomeIgnored)
		return nil, nil
	}

	return h.saveImage(log, connID, env.str("image"), env.str("filename"))
}

func (h *Handler) saveImage(log zerolog.Logger, connID, image, filename string) (*Ack, error) {
	if image == "" || filename == "" {
		h.discard(log, metrics.OutcomeMissingFields).
			Bool("has_image", image != "").
			Bool("has_filename", filename != "").
			Msg("missing image data or filename")
		return nil, nil
	}

	// output 디렉토리 밖을 가리키는 이름(절대 경로, ..)은 쓰지 않는다.
	if !filepath.IsLocal(filename) {
		h.discard(log, metrics.OutcomeUnsafeFilename).Str("filename", filename).Msg("filename escapes output directory")
		return nil, nil
	}

	data, err := base64.StdEncoding.DecodeString(stripDataURL(image))
	if err != nil {
		return nil, h.fail(log, filename, fmt.Errorf("%w: %w", ErrDecode, err))
	}

	path := filepath.Join(h.outputDir, filename)
	if dir := filepath.Dir(path); dir != h.outputDir {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, h.fail(log, filename, fmt.Errorf("%w: %w", ErrWrite, err))
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, h.fail(log, filename, fmt.Errorf("%w: %w", ErrWrite, err))
	}

	h.metrics.Message(metrics.OutcomeSaved)
	h.metrics.ImagesSavedTotal.Inc()
	h.metrics.ImageBytesWrittenTotal.Add(float64(len(data)))
	h.recorder.Record(model.Record{
		Kind:   model.KindSaved,
		Name:   filename,
		Path:   path,
		Size:   int64(len(data)),
		Origin: connID,
	})

	log.Info().Str("filename", filename).Int("bytes", len(data)).Msg("saved image")
	return &Ack{Type: TypeSaved, Filename: filename}, nil
}

// discard 는 outcome 을 세고 warn 이벤트를 돌려준다. 호출자가 Msg 로 마무리한다.
func (h *Handler) discard(log zerolog.Logger, outcome string) *zerolog.Event {
	h.metrics.Message(outcome)
	return log.Warn().Str("outcome", outcome)
}

func (h *Handler) fail(log zerolog.Logger, filename string, err error) error {
	h.metrics.Message(metrics.OutcomeFailed)
	log.Error().
		Err(err).
		Str("filename", filename).
		Str("stack", string(debug.Stack())).
		Msg("error processing message")
	return err
}
