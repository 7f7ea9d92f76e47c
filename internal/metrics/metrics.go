package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fireworks"

// ws_messages_total 의 outcome 라벨 값.
const (
	OutcomeEmpty          = "empty"
	OutcomeNonText        = "non_text"
	OutcomeNotJSON        = "not_json"
	OutcomeParseError     = "parse_error"
	OutcomeMissingType    = "missing_type"
	OutcomeMissingFields  = "missing_fields"
	OutcomeUnsafeFilename = "unsafe_filename"
	OutcomeIgnored        = "ignored"
	OutcomeSaved          = "saved"
	OutcomeFailed         = "failed"
)

// Metrics 는 asset server / mover / archive 의 prometheus collector 모음이다.
type Metrics struct {
	// ======================
	// WebSocket ingest
	// ======================

	WSConnectionsTotal  prometheus.Counter
	WSConnectionsActive prometheus.Gauge

	// WSMessagesTotal 은 수신 메시지를 처리 결과(outcome)별로 센다.
	// saved 외의 값이 늘어나면 클라이언트가 잘못된 envelope 을 보내고 있다는 뜻.
	WSMessagesTotal *prometheus.CounterVec

	ImagesSavedTotal       prometheus.Counter
	ImageBytesWrittenTotal prometheus.Counter

	// ======================
	// Static responder
	// ======================

	HTTPRequestsTotal *prometheus.CounterVec

	// ======================
	// Mover
	// ======================

	MoverPassesTotal    prometheus.Counter
	FilesMovedTotal     prometheus.Counter
	FileMoveErrorsTotal prometheus.Counter

	// ======================
	// Archive journal
	// ======================

	// RecordsEnqueuedTotal / RecordsDroppedTotal
	// - channel 이 가득 차면 기록은 버려진다(본 동작에는 영향 없음).
	RecordsEnqueuedTotal prometheus.Counter
	RecordsDroppedTotal  prometheus.Counter

	// RecordsStoredTotal 은 S3 에 저장 완료된 기록 수 (배치 수가 아님).
	RecordsStoredTotal prometheus.Counter

	// S3PutErrorsTotal 은 PutObject 실패 "시도" 횟수. retry 마다 증가한다.
	S3PutErrorsTotal prometheus.Counter

	SpoolRecordsTotal           prometheus.Counter
	SpoolRecordsReuploadedTotal prometheus.Counter
	SpoolRecordsDroppedTotal    prometheus.Counter
	SpoolFilesExpiredTotal      prometheus.Counter
	SpoolFiles                  prometheus.Gauge
	SpoolBytes                  prometheus.Gauge
}

// New 는 collector 들을 만들고 reg 에 등록한다.
// 테스트에서는 prometheus.NewRegistry() 를 넘겨 중복 등록 panic 을 피한다.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counter := func(subsystem, name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}
	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}

	m := &Metrics{
		WSConnectionsTotal:  counter("ws", "connections_total", "WebSocket clients accepted."),
		WSConnectionsActive: gauge("ws", "connections_active", "WebSocket clients currently connected."),
		WSMessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ws", Name: "messages_total",
			Help: "Inbound WebSocket messages by handling outcome.",
		}, []string{"outcome"}),
		ImagesSavedTotal:       counter("", "images_saved_total", "Images written to the output directory."),
		ImageBytesWrittenTotal: counter("", "image_bytes_written_total", "Decoded image bytes written."),

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "Static responder requests by status code.",
		}, []string{"code"}),

		MoverPassesTotal:    counter("mover", "passes_total", "Relocation passes run."),
		FilesMovedTotal:     counter("", "files_moved_total", "Files relocated into the destination directory."),
		FileMoveErrorsTotal: counter("", "file_move_errors_total", "Files skipped because relocation failed."),

		RecordsEnqueuedTotal: counter("archive", "records_enqueued_total", "Journal records accepted into the queue."),
		RecordsDroppedTotal:  counter("archive", "records_dropped_total", "Journal records dropped because the queue was full."),
		RecordsStoredTotal:   counter("archive", "records_stored_total", "Journal records stored in object storage."),
		S3PutErrorsTotal:     counter("archive", "s3_put_errors_total", "Failed PutObject attempts."),

		SpoolRecordsTotal:           counter("archive", "spool_records_total", "Journal records written to the local spool."),
		SpoolRecordsReuploadedTotal: counter("archive", "spool_records_reuploaded_total", "Spooled journal records uploaded later."),
		SpoolRecordsDroppedTotal:    counter("archive", "spool_records_dropped_total", "Journal records dropped because the spool was full."),
		SpoolFilesExpiredTotal:      counter("archive", "spool_files_expired_total", "Spool files removed by age or capacity."),
		SpoolFiles:                  gauge("archive", "spool_files", "Spool files currently on disk."),
		SpoolBytes:                  gauge("archive", "spool_bytes", "Spool bytes currently on disk."),
	}

	reg.MustRegister(
		m.WSConnectionsTotal, m.WSConnectionsActive, m.WSMessagesTotal,
		m.ImagesSavedTotal, m.ImageBytesWrittenTotal,
		m.HTTPRequestsTotal,
		m.MoverPassesTotal, m.FilesMovedTotal, m.FileMoveErrorsTotal,
		m.RecordsEnqueuedTotal, m.RecordsDroppedTotal, m.RecordsStoredTotal, m.S3PutErrorsTotal,
		m.SpoolRecordsTotal, m.SpoolRecordsReuploadedTotal, m.SpoolRecordsDroppedTotal,
		m.SpoolFilesExpiredTotal, m.SpoolFiles, m.SpoolBytes,
	)
	return m
}

// Message 는 outcome 라벨로 메시지 카운터를 1 증가시킨다.
func (m *Metrics) Message(outcome string) {
	m.WSMessagesTotal.WithLabelValues(outcome).Inc()
}

// Handler 는 g 의 지표를 prometheus text 형식으로 내보낸다.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
