package server

import (
	"errors"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"fireworks-assets/internal/ingest"
	"fireworks-assets/internal/metrics"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const closeWriteWait = time.Second

// IngestEndpoint 는 WebSocket 연결을 받아 메시지를 ingest.Handler 로 넘긴다.
//
// 연결마다 goroutine 하나(readLoop)가 읽기와 ack 쓰기를 모두 맡으므로
// 연결 간에 공유되는 가변 상태는 conns 뿐이다.
type IngestEndpoint struct {
	handler        *ingest.Handler
	metrics        *metrics.Metrics
	log            zerolog.Logger
	upgrader       websocket.Upgrader
	maxMessageSize int64

	nextID atomic.Uint64

	mu     sync.Mutex
	conns  map[*websocket.Conn]string
	closed bool
}

func NewIngestEndpoint(h *ingest.Handler, maxMessageSize int64, m *metrics.Metrics, log zerolog.Logger) *IngestEndpoint {
	return &IngestEndpoint{
		handler:        h,
		metrics:        m,
		log:            log,
		maxMessageSize: maxMessageSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 4 * 1024,
			// 브라우저 페이지가 어느 origin 에서 열려 있든 받는다.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]string),
	}
}

func (e *IngestEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 가 이미 에러 응답을 썼다.
		e.log.Debug().Err(err).Str("client", clientAddr(r)).Msg("websocket upgrade failed")
		return
	}

	id := strconv.FormatUint(e.nextID.Add(1), 10)
	if !e.track(conn, id) {
		_ = conn.Close()
		return
	}

	e.metrics.WSConnectionsTotal.Inc()
	e.metrics.WSConnectionsActive.Inc()
	e.log.Info().Str("conn", id).Str("client", clientAddr(r)).Msg("new client connected")

	go e.readLoop(id, conn)
}

// readLoop 는 연결이 끊길 때까지 메시지를 하나씩 처리한다.
// 메시지 처리 실패는 연결을 끊지 않는다.
func (e *IngestEndpoint) readLoop(id string, conn *websocket.Conn) {
	defer func() {
		e.untrack(conn)
		_ = conn.Close()
		e.metrics.WSConnectionsActive.Dec()
		e.log.Info().Str("conn", id).Msg("client disconnected")
	}()

	conn.SetReadLimit(e.maxMessageSize)

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			e.logReadError(id, err)
			return
		}
		e.handleMessage(id, conn, mt, data)
	}
}

func (e *IngestEndpoint) handleMessage(id string, conn *websocket.Conn, mt int, data []byte) {
	ack, err := e.handler.Handle(id, ingest.Frame{
		Text:    mt == websocket.TextMessage,
		Payload: data,
	})
	if err != nil || ack == nil {
		// 실패는 handler 가 stack 과 함께 이미 남겼다.
		return
	}

	raw, err := ack.Marshal()
	if err != nil {
		e.log.Error().Err(err).Str("conn", id).Msg("encode ack")
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		e.log.Warn().Err(err).Str("conn", id).Str("filename", ack.Filename).Msg("send ack failed")
	}
}

func (e *IngestEndpoint) logReadError(id string, err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		e.log.Warn().Str("conn", id).Int64("limit", e.maxMessageSize).Msg("message too large, closing connection")
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
	case websocket.IsUnexpectedCloseError(err):
		e.log.Debug().Err(err).Str("conn", id).Msg("connection closed unexpectedly")
	default:
		e.log.Debug().Err(err).Str("conn", id).Msg("read failed")
	}
}

func (e *IngestEndpoint) track(conn *websocket.Conn, id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.conns[conn] = id
	return true
}

func (e *IngestEndpoint) untrack(conn *websocket.Conn) {
	e.mu.Lock()
	delete(e.conns, conn)
	e.mu.Unlock()
}

// Active 는 현재 열려 있는 연결 수.
func (e *IngestEndpoint) Active() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

// CloseAll 은 새 연결을 막고 열린 연결에 close frame 을 보낸 뒤 끊는다.
// hijack 된 연결은 http.Server.Shutdown 이 기다려 주지 않으므로 따로 닫는다.
func (e *IngestEndpoint) CloseAll() {
	e.mu.Lock()
	e.closed = true
	conns := make([]*websocket.Conn, 0, len(e.conns))
	for c := range e.conns {
		conns = append(conns, c)
	}
	e.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteWait))
		_ = c.Close()
	}
}
