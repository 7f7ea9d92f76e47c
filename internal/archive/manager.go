// internal/archive/manager.go
package archive

import (
	"context"
	"sync"
	"time"

	"fireworks-assets/internal/config"
	"fireworks-assets/internal/metrics"
	"fireworks-assets/internal/model"

	"github.com/rs/zerolog"
)

// spoolPerTick 는 한 번에 재업로드를 시도할 spool 파일 수 (starvation 방지).
const spoolPerTick = 3

// Manager 는 journal 파이프라인이다.
//
//   - recordCh: Record() → collectLoop
//   - collectLoop: BatchSize 또는 FlushInterval 마다 배치를 uploadCh 로 넘김
//   - uploadLoop: gzip+JSONL 인코딩 → S3 업로드, 실패 시 spool 저장, 틈틈이 spool 재업로드
//
// Shutdown 은 recordCh 를 닫고 남은 배치까지 업로드한 뒤 돌아온다.
type Manager struct {
	cfg        config.ArchiveConfig
	instanceID string
	metrics    *metrics.Metrics
	uploader   *S3Uploader
	spool      *Spool
	encoder    *Encoder
	log        zerolog.Logger

	recordCh chan model.Record
	uploadCh chan model.UploadJob

	// closed 이후의 Record 는 버린다. closed 채널에 send 하지 않기 위한 잠금.
	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc

	wg         sync.WaitGroup
	stopOnce   sync.Once
	spoolEvery time.Duration
}

// NewManager 는 uploader 와 spool 을 묶어 Manager 를 만든다.
func NewManager(cfg config.ArchiveConfig, instanceID string, m *metrics.Metrics, uploader *S3Uploader, log zerolog.Logger) (*Manager, error) {
	spool, err := NewSpool(cfg, instanceID, m, uploader, log)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:        cfg,
		instanceID: instanceID,
		metrics:    m,
		uploader:   uploader,
		spool:      spool,
		encoder:    NewEncoder(),
		log:        log,
		recordCh:   make(chan model.Record, cfg.ChannelSize),
		uploadCh:   make(chan model.UploadJob, cfg.UploadQueue),
		spoolEvery: time.Second,
	}, nil
}

// Start 는 collectLoop 와 uploadLoop 를 띄운다.
func (m *Manager) Start() {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.wg.Add(2)
	go m.collectLoop()
	go m.uploadLoop()
}

// Record 는 기록을 큐에 넣는다. 큐가 가득 찼거나 종료 중이면 버린다(block 하지 않음).
func (m *Manager) Record(r model.Record) {
	if r.Ts == 0 {
		r.Ts = Unix()
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		m.metrics.RecordsDroppedTotal.Inc()
		return
	}

	select {
	case m.recordCh <- r:
		m.metrics.RecordsEnqueuedTotal.Inc()
	default:
		m.metrics.RecordsDroppedTotal.Inc()
		m.log.Warn().Str("kind", r.Kind).Str("name", r.Name).Msg("archive queue full, record dropped")
	}
}

// Shutdown 은 남은 배치를 업로드하고 goroutine 종료를 기다린다.
// ctx 가 먼저 끝나면 진행 중인 업로드를 취소하고 ctx.Err() 를 돌려준다.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.stopOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		close(m.recordCh)
		m.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	cancel := func() {
		if m.cancel != nil {
			m.cancel()
		}
	}

	select {
	case <-done:
		cancel()
		return nil
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}

// collectLoop 는 recordCh 를 배치로 묶는다.
// flush 는 항상 새 slice 를 만들어 재사용으로 인한 데이터 오염을 막는다.
func (m *Manager) collectLoop() {
	defer m.wg.Done()
	defer close(m.uploadCh)

	batch := make([]model.Record, 0, m.cfg.BatchSize)
	ticker := time.NewTicker(m.cfg.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		m.uploadCh <- model.UploadJob{Records: batch}
		batch = make([]model.Record, 0, m.cfg.BatchSize)
	}

	for {
		select {
		case r, ok := <-m.recordCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, r)
			if len(batch) >= m.cfg.BatchSize {
				flush()
			}

		case <-ticker.C:
			flush()
		}
	}
}

// uploadLoop 는 uploadCh 의 배치를 처리하고, 유휴 시에도 spool 을 재업로드한다.
// uploadCh 가 닫히면 남은 작업을 마치고 끝난다.
func (m *Manager) uploadLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.spoolEvery)
	defer ticker.Stop()

	for {
		select {
		case job, ok := <-m.uploadCh:
			if !ok {
				m.log.Debug().Msg("archive uploader exiting")
				return
			}
			m.processUploadCtx(m.ctx, job)
			m.drainSpool()

		case <-ticker.C:
			m.drainSpool()
		}
	}
}

func (m *Manager) drainSpool() {
	for i := 0; i < spoolPerTick; i++ {
		if !m.spool.ProcessOneCtx(m.ctx) {
			return
		}
	}
}

// processUploadCtx 는 배치 1개를 처리한다.
//  1. 인코딩 실패 → 로그만 남기고 버림
//  2. 업로드 실패 → spool 저장
func (m *Manager) processUploadCtx(ctx context.Context, job model.UploadJob) {
	n := len(job.Records)
	if n == 0 {
		return
	}

	data, err := m.encoder.EncodeBatchJSONLGZ(job.Records)
	if err != nil {
		m.log.Error().Err(err).Int("records", n).Msg("archive encode failed")
		return
	}

	key := BuildS3Key(m.cfg.Prefix, NewFilename(m.instanceID))
	if err := m.uploader.UploadBytesWithRetryCtx(ctx, key, data); err != nil {
		m.log.Warn().Err(err).Str("key", key).Msg("archive upload failed, spooling")
		if err := m.spool.Save(data, n); err != nil {
			m.log.Error().Err(err).Msg("archive spool save failed")
		}
		return
	}

	m.metrics.RecordsStoredTotal.Add(float64(n))
	m.log.Debug().Str("key", key).Int("records", n).Msg("archive batch stored")
}
