package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"fireworks-assets/internal/archive"
	"fireworks-assets/internal/config"
	"fireworks-assets/internal/ingest"
	"fireworks-assets/internal/logger"
	"fireworks-assets/internal/metrics"
	"fireworks-assets/internal/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "fireworks-server",
		Short: "Serve static files over HTTP and save images pushed over WebSocket",
		Long: `fireworks-server runs two listeners in one process:

  FIREWORKS_HTTP_ADDR (default :8082)          static files from FIREWORKS_STATIC_ROOT
  FIREWORKS_WS_ADDR   (default 127.0.0.1:8083) {"type":"saveImage",...} → FIREWORKS_OUTPUT_DIR

All settings come from FIREWORKS_* environment variables.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), cmd.OutOrStdout())
		},
	}
}

func run(parent context.Context, out io.Writer) error {

	// ====================================================================
	// Config / Logger / Metrics
	// ====================================================================
	//
	// 설정이 잘못되어 있으면 아무것도 띄우지 않고 바로 실패한다.
	// metrics 는 전용 registry 를 쓰고 WS 포트의 /metrics 로만 노출한다.
	// ====================================================================
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.Init(cfg)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// SIGINT / SIGTERM → ctx 취소 → 두 서버 종료
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ====================================================================
	// Archive journal (선택)
	// ====================================================================
	//
	// FIREWORKS_ARCHIVE_BUCKET 이 없으면 no-op.
	// 있으면 저장 기록을 batch → gzip → S3 로 올리고, 실패분은 로컬 spool 에 둔다.
	// ====================================================================
	journal, err := archive.Open(ctx, cfg, m, log)
	if err != nil {
		return fmt.Errorf("open archive journal: %w", err)
	}

	h, err := ingest.NewHandler(cfg.Server.OutputDir, m, journal, log.With().Str("component", "ingest").Logger())
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server, h, m, reg, log)

	fmt.Fprintf(out, "Server started at http://localhost%s\n", cfg.Server.HTTPAddr)
	fmt.Fprintf(out, "WebSocket server running on %s\n", cfg.Server.WSAddr)
	fmt.Fprintln(out, "Press Ctrl+C to stop the server")

	runErr := srv.Run(ctx)

	// 서버가 먼저 멈춘 뒤 남은 기록을 flush 한다.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := journal.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("archive journal shutdown")
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("server terminated")
		return runErr
	}
	fmt.Fprintln(out, "\nServer stopped.")
	return nil
}
