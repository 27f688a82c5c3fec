package handlers

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/NubleX/LEGION2/internal/api/middleware"
	"github.com/NubleX/LEGION2/internal/events"
	"github.com/NubleX/LEGION2/internal/logging"
)

const (
	writeWait       = 10 * time.Second                                   // Time allowed to write a message to the peer
	pongWait        = 60 * time.Second                                   // Time to read next pong message from peer
	pingPeriodRatio = 0.9                                                // Ratio of pongWait for pingPeriod
	pingPeriod      = time.Duration(float64(pongWait) * pingPeriodRatio) // Send pings to peer (must be < pongWait)
	maxMessageSize  = 512                                                // Maximum message size allowed from peer
)

// WebSocketHandler streams engine events to WebSocket clients. Each
// connection owns its own bus subscription, so a slow client only loses
// its own events.
type WebSocketHandler struct {
	engine   Engine
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

// NewWebSocketHandler creates a new WebSocket handler. An empty origin list,
// or one containing "*", accepts any origin.
func NewWebSocketHandler(engine Engine, allowedOrigins []string, logger *logging.Logger) *WebSocketHandler {
	h := &WebSocketHandler{
		engine: engine,
		logger: logger.WithComponent("api.websocket"),
		conns:  make(map[*websocket.Conn]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return len(set) == 0 || set["*"] || origin == "" || set[origin]
	}
}

// eventFilter narrows a stream to one job and/or a set of event types.
type eventFilter struct {
	jobID string
	types map[events.Type]bool
}

func newEventFilter(r *http.Request) eventFilter {
	f := eventFilter{jobID: r.URL.Query().Get("job_id")}
	if types := getQueryList(r, "types"); len(types) > 0 {
		f.types = make(map[events.Type]bool, len(types))
		for _, t := range types {
			f.types[events.Type(strings.ToLower(t))] = true
		}
	}
	return f
}

func (f eventFilter) match(ev events.Event) bool {
	if f.jobID != "" && ev.JobID != f.jobID {
		return false
	}
	return f.types == nil || f.types[ev.Type]
}

// Events upgrades the connection and streams events until either side
// closes. Query parameters job_id and types narrow the stream.
//
// @Summary Event stream
// @Description WebSocket stream of scan-progress, scan-result, scan-completed, scan-error, host-discovered and vulnerability-found events.
// @Tags Events
// @Param job_id query string false "Only events of this job"
// @Param types query string false "Comma-separated event types"
// @Success 101
// @Router /events [get]
func (h *WebSocketHandler) Events(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r)
	filter := newEventFilter(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket connection", "request_id", requestID, "error", err)
		return
	}
	if !h.register(conn) {
		_ = conn.Close()
		return
	}

	sub := h.engine.Subscribe()
	h.logger.Info("Event stream opened", "request_id", requestID, "remote_addr", r.RemoteAddr,
		"job_id", filter.jobID)

	done := make(chan struct{})
	go h.readPump(conn, done, requestID)
	h.writePump(conn, sub, filter, done, requestID)

	sub.Close()
	h.unregister(conn)
	if err := conn.Close(); err != nil {
		h.logger.Debug("Error closing WebSocket connection", "request_id", requestID, "error", err)
	}
	h.logger.Info("Event stream closed", "request_id", requestID)
}

// readPump discards client messages and closes done when the peer goes away.
func (h *WebSocketHandler) readPump(conn *websocket.Conn, done chan<- struct{}, requestID string) {
	defer close(done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("WebSocket unexpected close", "request_id", requestID, "error", err)
			}
			return
		}
	}
}

// writePump forwards matching events and keeps the connection alive.
func (h *WebSocketHandler) writePump(conn *websocket.Conn, sub *events.Subscription, filter eventFilter,
	done <-chan struct{}, requestID string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.C():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return
			}
			if !filter.match(ev) {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("Write failed, closing connection", "request_id", requestID, "error", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.logger.Debug("Ping failed, closing connection", "request_id", requestID, "error", err)
				return
			}
		}
	}
}

func (h *WebSocketHandler) register(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.conns[conn] = struct{}{}
	return true
}

func (h *WebSocketHandler) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// ConnectedClients returns the number of open event streams.
func (h *WebSocketHandler) ConnectedClients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Close sends a close frame to every client and refuses new connections.
func (h *WebSocketHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for conn := range h.conns {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
	}
	h.logger.Info("WebSocket handler closed", "clients", len(h.conns))
}
