package server

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"fireworks-assets/internal/ingest"
	"fireworks-assets/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type wsFixture struct {
	ep        *IngestEndpoint
	srv       *httptest.Server
	outputDir string
	metrics   *metrics.Metrics
}

func newWSFixture(t *testing.T, maxMessageSize int64) *wsFixture {
	t.Helper()
	m := metrics.New(prometheus.NewRegistry())
	outputDir := filepath.Join(t.TempDir(), "saved_images")
	h, err := ingest.NewHandler(outputDir, m, nil, zerolog.Nop())
	require.NoError(t, err)

	ep := NewIngestEndpoint(h, maxMessageSize, m, zerolog.Nop())
	srv := httptest.NewServer(ep)
	t.Cleanup(srv.Close)
	return &wsFixture{ep: ep, srv: srv, outputDir: outputDir, metrics: m}
}

func (f *wsFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	return string(data)
}

func TestIngestSavesImageAndAcks(t *testing.T) {
	f := newWSFixture(t, 1<<20)
	conn := f.dial(t)

	send(t, conn, `{"type":"saveImage","image":"data:image/png;base64,AAAA","filename":"x.png"}`)

	assert.Equal(t, `{"type":"saved","filename":"x.png"}`, readText(t, conn))
	got, err := os.ReadFile(filepath.Join(f.outputDir, "x.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0}, got)
}

func TestIngestInvalidMessagesKeepConnectionOpen(t *testing.T) {
	f := newWSFixture(t, 1<<20)
	conn := f.dial(t)

	send(t, conn, "not json")
	send(t, conn, `{"type":"ping"}`)
	send(t, conn, `{"type":"saveImage","image":"!!!","filename":"bad.png"}`)
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))
	send(t, conn, `{"type":"saveImage","image":"AAAA","filename":"ok.png"}`)

	// 앞의 메시지들은 응답이 없으므로 처음 받는 메시지가 ok.png 의 ack 다.
	assert.Equal(t, `{"type":"saved","filename":"ok.png"}`, readText(t, conn))

	entries, err := os.ReadDir(f.outputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "ok.png", entries[0].Name())

	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WSMessagesTotal.WithLabelValues(metrics.OutcomeNotJSON)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WSMessagesTotal.WithLabelValues(metrics.OutcomeIgnored)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WSMessagesTotal.WithLabelValues(metrics.OutcomeFailed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.WSMessagesTotal.WithLabelValues(metrics.OutcomeNonText)))
}

func TestIngestAckGoesOnlyToSender(t *testing.T) {
	f := newWSFixture(t, 1<<20)
	a := f.dial(t)
	b := f.dial(t)

	send(t, a, `{"type":"saveImage","image":"AAAA","filename":"from_a.png"}`)
	assert.Equal(t, `{"type":"saved","filename":"from_a.png"}`, readText(t, a))

	send(t, b, `{"type":"saveImage","image":"AAAA","filename":"from_b.png"}`)
	assert.Equal(t, `{"type":"saved","filename":"from_b.png"}`, readText(t, b))
}

func TestIngestClosesOversizedMessage(t *testing.T) {
	f := newWSFixture(t, 64)
	conn := f.dial(t)

	send(t, conn, `{"type":"saveImage","image":"`+strings.Repeat("A", 256)+`","filename":"big.png"}`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.NoFileExists(t, filepath.Join(f.outputDir, "big.png"))
}

func TestCloseAllDisconnectsClients(t *testing.T) {
	f := newWSFixture(t, 1<<20)
	conn := f.dial(t)

	assert.Eventually(t, func() bool { return f.ep.Active() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(f.metrics.WSConnectionsActive) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.ep.CloseAll()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
	assert.Eventually(t, func() bool { return f.ep.Active() == 0 }, 2*time.Second, 10*time.Millisecond)

	// 닫힌 뒤에는 새 연결을 받지 않는다.
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http")
	late, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer late.Close()
	require.NoError(t, late.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = late.ReadMessage()
	assert.Error(t, err)
}
