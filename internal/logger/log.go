// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"fireworks-assets/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// 프로세스 시작 시 한 번만 호출되는 로거 초기화 함수.
//
//  1. 레벨: cfg.LogLevel (파싱 실패 시 info)
//  2. 출력: LogPretty 면 사람용 console, 아니면 JSON
//  3. 공통 필드: service, instance
//
// 초기화된 로거를 돌려주며, 전역 zerolog 로거와 표준 log 패키지도 이 설정을 따르게 한다.
func Init(cfg config.Config) zerolog.Logger {
	return initWith(cfg, os.Stdout)
}

func initWith(cfg config.Config, out io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil && l != zerolog.NoLevel {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer = out
	if cfg.LogPretty {
		// 예: 10:00:05 INF saved image filename=x.png service=fireworks-assets
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: "15:04:05",
		}
	}

	logger := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	zlog.Logger = logger

	// 표준 log 패키지(예: net/http 내부 에러 로그)도 zerolog 로 보낸다.
	stdlog.SetFlags(0)
	stdlog.SetOutput(logger)

	return logger
}
