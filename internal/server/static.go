package server

import (
	"net/http"
	"strconv"
	"time"

	"fireworks-assets/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// NewStaticHandler
//
// root 아래 파일을 그대로 내려주는 HTTP 핸들러.
//   - 파일/디렉토리 목록/index.html 처리는 net/http FileServer 에 맡긴다
//   - 모든 응답(404 포함)에 Access-Control-Allow-Origin: * 를 붙인다
//   - 요청마다 status code 별 카운터와 access 로그를 남긴다
func NewStaticHandler(root string, log zerolog.Logger, m *metrics.Metrics) http.Handler {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(accessLog(log, m))
	engine.Use(allowAnyOrigin())

	// 등록된 route 가 없으므로 모든 요청이 NoRoute 로 온다.
	files := http.FileServer(http.Dir(root))
	engine.NoRoute(func(c *gin.Context) {
		// NoRoute 는 status 를 404 로 미리 잡아두므로, WriteHeader 없이 바로
		// Write 하는 경로(디렉토리 목록)를 위해 200 으로 되돌린다.
		c.Status(http.StatusOK)
		files.ServeHTTP(c.Writer, c.Request)
	})
	return engine
}

// allowAnyOrigin 은 handler 가 header 를 쓰기 전에 CORS header 를 넣는다.
// Origin 헤더 유무와 상관없이 항상 붙인다.
func allowAnyOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Next()
	}
}

func accessLog(log zerolog.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		m.HTTPRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

		ev := log.Debug()
		if status >= http.StatusInternalServerError {
			ev = log.Warn()
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Str("client", clientAddr(c.Request)).
			Dur("took", time.Since(start)).
			Msg("http request")
	}
}
