// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix 는 모든 환경변수 키 앞에 붙는 prefix 이다.
// 예: http_addr → FIREWORKS_HTTP_ADDR
const EnvPrefix = "FIREWORKS"

// Config
//
// 프로세스 시작 시 한 번 만들어져서 각 컴포넌트에 그대로 전달되는 설정 값.
// Load() 이후에는 변경되지 않는 read-only 값들이다.
// 모든 키에는 기본값이 있으므로 환경변수 없이도 바로 실행할 수 있다.
type Config struct {

	// ---------------------------
	// 서비스 식별자 / 로깅
	// ---------------------------

	ServiceName string // 로그에 붙는 서비스명
	InstanceID  string // 호스트명 기반, 실패 시 랜덤 hex
	LogLevel    string // debug / info / warn / error
	LogPretty   bool   // true 면 console writer, false 면 JSON

	Server  ServerConfig
	Mover   MoverConfig
	Archive ArchiveConfig
}

// ServerConfig 는 asset server(HTTP + WebSocket) 설정이다.
type ServerConfig struct {
	HTTPAddr        string        // static file responder bind 주소
	WSAddr          string        // image ingest endpoint bind 주소
	StaticRoot      string        // static 파일 루트 (기본: 작업 디렉토리)
	OutputDir       string        // 저장된 이미지가 쓰이는 디렉토리
	MaxMessageSize  int64         // WebSocket 프레임 최대 크기 (바이트)
	ShutdownTimeout time.Duration // graceful shutdown 대기 시간
}

// MoverConfig 는 Downloads → 프로젝트 폴더 이동기 설정이다.
type MoverConfig struct {
	SourceDir    string
	DestDir      string
	Pattern      string
	PollInterval time.Duration
}

// ArchiveConfig 는 활동 기록(journal) 업로드 설정이다.
// Bucket 이 비어 있으면 journal 자체가 비활성화된다.
type ArchiveConfig struct {
	Bucket    string
	Region    string
	Endpoint  string // MinIO / localstack 등 S3 호환 endpoint (선택)
	Prefix    string
	DLQPrefix string

	ChannelSize   int
	UploadQueue   int
	BatchSize     int
	FlushInterval time.Duration

	S3Timeout    time.Duration
	S3AppRetries int

	SpoolDir      string
	SpoolMaxAge   time.Duration
	SpoolMaxBytes int64
}

// Enabled 는 journal 업로드가 설정되어 있는지 여부.
func (a ArchiveConfig) Enabled() bool {
	return strings.TrimSpace(a.Bucket) != ""
}

// Load
//
// 환경변수(FIREWORKS_*) 기반으로 Config 를 만든다.
// 값이 없으면 기본값을 쓰고, 형식이 잘못된 값은 에러로 돌려준다(fail-fast 는 caller 몫).
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		ServiceName: v.GetString("service_name"),
		InstanceID:  fallbackInstanceID(),
		LogLevel:    v.GetString("log_level"),
		LogPretty:   v.GetBool("log_pretty"),

		Server: ServerConfig{
			HTTPAddr:       v.GetString("http_addr"),
			WSAddr:         v.GetString("ws_addr"),
			StaticRoot:     v.GetString("static_root"),
			OutputDir:      v.GetString("output_dir"),
			MaxMessageSize: v.GetInt64("max_message_size"),
		},

		Mover: MoverConfig{
			SourceDir: v.GetString("mover_source_dir"),
			DestDir:   v.GetString("mover_dest_dir"),
			Pattern:   v.GetString("mover_pattern"),
		},

		Archive: ArchiveConfig{
			Bucket:    v.GetString("archive_bucket"),
			Region:    v.GetString("archive_region"),
			Endpoint:  v.GetString("archive_endpoint"),
			Prefix:    v.GetString("archive_prefix"),
			DLQPrefix: v.GetString("archive_dlq_prefix"),

			ChannelSize:  v.GetInt("archive_channel_size"),
			UploadQueue:  v.GetInt("archive_upload_queue"),
			BatchSize:    v.GetInt("archive_batch_size"),
			S3AppRetries: v.GetInt("archive_s3_retries"),

			SpoolDir:      v.GetString("archive_spool_dir"),
			SpoolMaxBytes: v.GetInt64("archive_spool_max_bytes"),
		},
	}

	// viper.GetDuration 은 파싱 실패 시 0 을 돌려주므로 직접 파싱한다.
	var err error
	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"shutdown_timeout", &cfg.Server.ShutdownTimeout},
		{"mover_poll_interval", &cfg.Mover.PollInterval},
		{"archive_flush_interval", &cfg.Archive.FlushInterval},
		{"archive_s3_timeout", &cfg.Archive.S3Timeout},
		{"archive_spool_max_age", &cfg.Archive.SpoolMaxAge},
	}
	for _, d := range durations {
		if *d.dst, err = duration(v, d.key); err != nil {
			return Config{}, err
		}
	}

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "fireworks-assets")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)

	v.SetDefault("http_addr", ":8082")
	v.SetDefault("ws_addr", "127.0.0.1:8083")
	v.SetDefault("static_root", ".")
	v.SetDefault("output_dir", "saved_images")
	v.SetDefault("max_message_size", 64<<20)
	v.SetDefault("shutdown_timeout", "5s")

	v.SetDefault("mover_source_dir", defaultSourceDir())
	v.SetDefault("mover_dest_dir", defaultDestDir())
	v.SetDefault("mover_pattern", "fireworks*.png")
	v.SetDefault("mover_poll_interval", "2s")

	v.SetDefault("archive_bucket", "")
	v.SetDefault("archive_region", "us-east-1")
	v.SetDefault("archive_endpoint", "")
	v.SetDefault("archive_prefix", "raw")
	v.SetDefault("archive_dlq_prefix", "raw_dlq")
	v.SetDefault("archive_channel_size", 1024)
	v.SetDefault("archive_upload_queue", 16)
	v.SetDefault("archive_batch_size", 100)
	v.SetDefault("archive_flush_interval", "10s")
	v.SetDefault("archive_s3_timeout", "5s")
	v.SetDefault("archive_s3_retries", 3)
	v.SetDefault("archive_spool_dir", ".archive-spool")
	v.SetDefault("archive_spool_max_age", "72h")
	v.SetDefault("archive_spool_max_bytes", 256<<20)
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %s_%s=%q: %w", EnvPrefix, strings.ToUpper(key), raw, err)
	}
	return d, nil
}

func validate(cfg Config) error {
	var errs []error
	if strings.TrimSpace(cfg.Server.HTTPAddr) == "" {
		errs = append(errs, errors.New("http_addr must not be empty"))
	}
	if strings.TrimSpace(cfg.Server.WSAddr) == "" {
		errs = append(errs, errors.New("ws_addr must not be empty"))
	}
	if strings.TrimSpace(cfg.Server.OutputDir) == "" {
		errs = append(errs, errors.New("output_dir must not be empty"))
	}
	if cfg.Server.MaxMessageSize <= 0 {
		errs = append(errs, errors.New("max_message_size must be positive"))
	}
	if cfg.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("shutdown_timeout must be positive"))
	}
	if strings.TrimSpace(cfg.Mover.Pattern) == "" {
		errs = append(errs, errors.New("mover_pattern must not be empty"))
	} else if _, err := filepath.Match(cfg.Mover.Pattern, ""); err != nil {
		errs = append(errs, fmt.Errorf("mover_pattern %q: %w", cfg.Mover.Pattern, err))
	}
	if cfg.Mover.PollInterval <= 0 {
		errs = append(errs, errors.New("mover_poll_interval must be positive"))
	}

	if cfg.Archive.Enabled() {
		a := cfg.Archive
		if a.ChannelSize <= 0 || a.UploadQueue <= 0 || a.BatchSize <= 0 {
			errs = append(errs, errors.New("archive channel/queue/batch sizes must be positive"))
		}
		if a.FlushInterval <= 0 || a.S3Timeout <= 0 {
			errs = append(errs, errors.New("archive flush interval and s3 timeout must be positive"))
		}
		if a.S3AppRetries < 1 {
			errs = append(errs, errors.New("archive_s3_retries must be at least 1"))
		}
		if strings.TrimSpace(a.SpoolDir) == "" {
			errs = append(errs, errors.New("archive_spool_dir must not be empty"))
		}
	}
	return errors.Join(errs...)
}

// defaultSourceDir 는 사용자의 기본 다운로드 폴더.
func defaultSourceDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "Downloads"
	}
	return filepath.Join(home, "Downloads")
}

// defaultDestDir 는 실행 파일이 있는 폴더 아래의 fireworks_images.
// 실행 파일 경로를 알 수 없으면 작업 디렉토리 기준으로 한다.
func defaultDestDir() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "fireworks_images")
	}
	return "fireworks_images"
}

// fallbackInstanceID
//
// 프로세스 식별 값.
//   - 기본: hostname
//   - fallback: 12자리 랜덤 hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
