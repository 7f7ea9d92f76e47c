// Package server runs the static file responder and the WebSocket ingest
// endpoint side by side on their own listeners.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"fireworks-assets/internal/config"
	"fireworks-assets/internal/ingest"
	"fireworks-assets/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Server 는 두 listener 를 소유한다. 둘 사이에 공유 상태는 없고 종료만 함께 한다.
type Server struct {
	cfg    config.ServerConfig
	static http.Handler
	ingest *IngestEndpoint
	wsMux  *http.ServeMux
	log    zerolog.Logger
}

// New
//
// 엔드포인트:
//   - HTTPAddr : StaticRoot 정적 파일 (모든 경로)
//   - WSAddr   : / WebSocket ingest, /metrics, /health
func New(cfg config.ServerConfig, h *ingest.Handler, m *metrics.Metrics, g prometheus.Gatherer, log zerolog.Logger) *Server {
	ep := NewIngestEndpoint(h, cfg.MaxMessageSize, m, log.With().Str("component", "ws").Logger())

	mux := http.NewServeMux()
	mux.Handle("/", ep)
	mux.Handle("/metrics", metrics.Handler(g))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	return &Server{
		cfg:    cfg,
		static: NewStaticHandler(cfg.StaticRoot, log.With().Str("component", "http").Logger(), m),
		ingest: ep,
		wsMux:  mux,
		log:    log,
	}
}

// Run
//
// 두 포트를 먼저 bind 한 뒤(주소 사용 중이면 여기서 에러) 둘 다 serve 한다.
// ctx 가 끝나면 새 연결을 막고 ShutdownTimeout 안에서 정리한 뒤 nil 을 돌려준다.
// 어느 한쪽 serve 가 실패하면 다른 쪽도 내리고 그 에러를 돌려준다.
func (s *Server) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", s.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http %s: %w", s.cfg.HTTPAddr, err)
	}
	wsLn, err := net.Listen("tcp", s.cfg.WSAddr)
	if err != nil {
		_ = httpLn.Close()
		return fmt.Errorf("listen websocket %s: %w", s.cfg.WSAddr, err)
	}

	httpSrv := &http.Server{
		Handler:           s.static,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	wsSrv := &http.Server{
		Handler:           s.wsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info().Str("addr", httpLn.Addr().String()).Str("root", s.cfg.StaticRoot).Msg("static server started")
		return serve(httpSrv, httpLn)
	})
	g.Go(func() error {
		s.log.Info().Str("addr", wsLn.Addr().String()).Msg("websocket server started")
		return serve(wsSrv, wsLn)
	})
	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		var errs []error
		if err := wsSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("websocket shutdown: %w", err))
		}
		s.ingest.CloseAll()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	s.log.Info().Msg("servers stopped")
	return nil
}

func serve(srv *http.Server, ln net.Listener) error {
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
