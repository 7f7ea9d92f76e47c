package server

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"fireworks-assets/internal/config"
	"fireworks-assets/internal/ingest"
	"fireworks-assets/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, httpAddr, wsAddr string) *Server {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	h, err := ingest.NewHandler(filepath.Join(t.TempDir(), "out"), m, nil, zerolog.Nop())
	require.NoError(t, err)

	return New(config.ServerConfig{
		HTTPAddr:        httpAddr,
		WSAddr:          wsAddr,
		StaticRoot:      t.TempDir(),
		MaxMessageSize:  1 << 20,
		ShutdownTimeout: time.Second,
	}, h, m, reg, zerolog.Nop())
}

func TestRunStopsCleanlyOnCancel(t *testing.T) {
	srv := newTestServer(t, "127.0.0.1:0", "127.0.0.1:0")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsWhenPortInUse(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	srv := newTestServer(t, "127.0.0.1:0", busy.Addr().String())

	err = srv.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen websocket")
}
