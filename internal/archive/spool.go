// internal/archive/spool.go
package archive

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"fireworks-assets/internal/config"
	"fireworks-assets/internal/metrics"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

const metaSuffix = ".meta.json"

// Spool 은 S3 업로드에 실패한 journal 배치를 로컬 디스크에 보관하고 나중에 다시 올린다.
// TTL 판단은 파일명 prefix 의 Unix timestamp 기준이다.
type Spool struct {
	cfg        config.ArchiveConfig
	instanceID string
	metrics    *metrics.Metrics
	uploader   *S3Uploader
	log        zerolog.Logger

	// 현재 spool 디렉토리의 data 파일 총 바이트 수
	sizeBytes int64
}

// NewSpool 은 spool 디렉토리를 만들고 기존 파일을 스캔해 크기/개수를 복원한다.
// data 없이 남은 meta 파일은 지운다.
func NewSpool(cfg config.ArchiveConfig, instanceID string, m *metrics.Metrics, uploader *S3Uploader, log zerolog.Logger) (*Spool, error) {
	if err := os.MkdirAll(cfg.SpoolDir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}

	s := &Spool{
		cfg:        cfg,
		instanceID: instanceID,
		metrics:    m,
		uploader:   uploader,
		log:        log,
	}

	entries, err := os.ReadDir(cfg.SpoolDir)
	if err != nil {
		return nil, fmt.Errorf("read spool dir: %w", err)
	}

	var total, count int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, metaSuffix) {
			dataName := strings.TrimSuffix(name, metaSuffix)
			if _, err := os.Stat(filepath.Join(cfg.SpoolDir, dataName)); os.IsNotExist(err) {
				_ = os.Remove(filepath.Join(cfg.SpoolDir, name))
			}
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
			count++
		}
	}

	atomic.StoreInt64(&s.sizeBytes, total)
	m.SpoolBytes.Add(float64(total))
	m.SpoolFiles.Add(float64(count))
	return s, nil
}

// Save 는 업로드 실패한 gzip+JSONL 배치를 저장한다.
// 용량이 모자라면 오래된 파일부터 지우고, 그래도 안 되면 버린다.
func (s *Spool) Save(data []byte, numRecords int) error {
	if len(data) == 0 || numRecords <= 0 {
		return nil
	}

	size := int64(len(data))
	if !s.ensureCapacity(size) {
		s.log.Error().Int64("bytes", size).Int("records", numRecords).Msg("archive spool full, dropping batch")
		s.metrics.SpoolRecordsDroppedTotal.Add(float64(numRecords))
		return nil
	}

	dataPath := filepath.Join(s.cfg.SpoolDir, NewFilename(s.instanceID))
	if err := os.WriteFile(dataPath, data, 0o600); err != nil {
		return fmt.Errorf("write spool file: %w", err)
	}

	meta := []byte(fmt.Sprintf(`{"num_records":%d}`, numRecords))
	_ = os.WriteFile(dataPath+metaSuffix, meta, 0o600)

	s.adjust(size, 1)
	s.metrics.SpoolRecordsTotal.Add(float64(numRecords))
	return nil
}

// ensureCapacity 는 SpoolMaxBytes 를 넘지 않도록 오래된 파일부터 지운다.
// 지울 파일이 더 없으면 false.
func (s *Spool) ensureCapacity(incoming int64) bool {
	max := s.cfg.SpoolMaxBytes
	if max <= 0 {
		return true
	}

	for {
		if atomic.LoadInt64(&s.sizeBytes)+incoming <= max {
			return true
		}

		oldest := s.pickOldest()
		if oldest == "" {
			return false
		}
		s.remove(oldest)
		s.metrics.SpoolFilesExpiredTotal.Inc()
		s.log.Warn().Str("file", oldest).Msg("archive spool capacity, removed oldest")
	}
}

// ProcessOneCtx 는 가장 오래된 파일 1개를 TTL 검사 후 재업로드한다.
// 처리할 파일이 있었으면 true.
func (s *Spool) ProcessOneCtx(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	name := s.pickOldest()
	if name == "" {
		return false
	}

	dataPath := filepath.Join(s.cfg.SpoolDir, name)
	metaPath := dataPath + metaSuffix

	info, err := os.Stat(dataPath)
	if err != nil {
		_ = os.Remove(metaPath)
		return true
	}
	size := info.Size()

	if s.cfg.SpoolMaxAge > 0 {
		if sec, ok := extractUnixFromFilename(name); ok {
			age := time.Duration(Unix()-sec) * time.Second
			if age > s.cfg.SpoolMaxAge {
				s.remove(name)
				s.metrics.SpoolFilesExpiredTotal.Inc()
				s.log.Info().Str("file", name).Dur("age", age).Msg("archive spool file expired")
				return true
			}
		}
	}

	f, err := os.Open(dataPath)
	if err != nil {
		s.log.Warn().Err(err).Str("file", name).Msg("archive spool open failed")
		return false
	}
	defer f.Close()

	// 첫 줄이 JSON 이 아니면 DLQ prefix 로 보낸다.
	prefix := s.cfg.Prefix
	if !validateFile(f, size) {
		prefix = s.cfg.DLQPrefix
	}
	key := BuildS3Key(prefix, name)

	if err := s.uploader.UploadFileWithRetryCtx(ctx, key, f, size); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("archive spool reupload failed")
		return false
	}

	numRecords := int64(1)
	if meta, err := os.ReadFile(metaPath); err == nil {
		var v struct {
			NumRecords int64 `json:"num_records"`
		}
		if json.Unmarshal(meta, &v) == nil && v.NumRecords > 0 {
			numRecords = v.NumRecords
		}
	}

	_ = f.Close()
	s.remove(name)
	s.metrics.SpoolRecordsReuploadedTotal.Add(float64(numRecords))
	s.log.Info().Str("key", key).Int64("records", numRecords).Msg("archive spool reuploaded")
	return true
}

// remove 는 data/meta 쌍을 지우고 크기/개수를 갱신한다.
func (s *Spool) remove(name string) {
	dataPath := filepath.Join(s.cfg.SpoolDir, name)
	var size int64
	if info, err := os.Stat(dataPath); err == nil {
		size = info.Size()
	}
	_ = os.Remove(dataPath)
	_ = os.Remove(dataPath + metaSuffix)
	s.adjust(-size, -1)
}

func (s *Spool) adjust(delta int64, files int) {
	atomic.AddInt64(&s.sizeBytes, delta)
	s.metrics.SpoolBytes.Add(float64(delta))
	s.metrics.SpoolFiles.Add(float64(files))
}

// validateFile 은 gzip 을 풀어 첫 JSONL 라인이 유효한 JSON 인지 본다.
func validateFile(f *os.File, size int64) bool {
	if size <= 0 {
		return false
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false
	}

	gz, err := gzip.NewReader(f)
	if err != nil {
		return false
	}
	defer gz.Close()

	line, err := bufio.NewReader(gz).ReadBytes('\n')
	if err != nil && err != io.EOF {
		return false
	}
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return false
	}

	var tmp map[string]any
	return json.Unmarshal(line, &tmp) == nil
}

// pickOldest 는 파일명(=timestamp) 기준으로 가장 오래된 data 파일을 돌려준다.
// ReadDir 순서에 의존하지 않도록 직접 정렬한다.
func (s *Spool) pickOldest() string {
	entries, err := os.ReadDir(s.cfg.SpoolDir)
	if err != nil {
		return ""
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, metaSuffix) || name == "" || name[0] == '.' {
			continue
		}
		files = append(files, name)
	}
	if len(files) == 0 {
		return ""
	}

	sort.Strings(files)
	return files[0]
}

// extractUnixFromFilename 은 "<unix>_<instance>_<counter>.jsonl.gz" 에서 unix 를 읽는다.
func extractUnixFromFilename(name string) (int64, bool) {
	idx := strings.IndexByte(name, '_')
	if idx <= 0 {
		return 0, false
	}
	sec, err := strconv.ParseInt(name[:idx], 10, 64)
	if err != nil || sec <= 0 {
		return 0, false
	}
	return sec, true
}
