package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/hunt/internal/interfaces"
)

// upgrader accepts any origin; the admin surface sits behind the operator's
// own network boundary.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHandler streams run-progress events and recent log lines to the admin UI
// over a websocket.
type WSHandler struct {
	events interfaces.EventService
	logger arbor.ILogger

	mu      sync.Mutex
	clients map[*websocket.Conn]chan interface{}
}

// NewWSHandler creates the websocket handler and subscribes it to the run
// event stream.
func NewWSHandler(events interfaces.EventService, logger arbor.ILogger) *WSHandler {
	h := &WSHandler{
		events:  events,
		logger:  logger,
		clients: make(map[*websocket.Conn]chan interface{}),
	}

	if events != nil {
		for _, eventType := range []interfaces.EventType{
			interfaces.EventRunCreated,
			interfaces.EventRunProgress,
			interfaces.EventRunCompleted,
			interfaces.EventCompanyDiscovered,
			interfaces.EventJobDelisted,
			interfaces.EventMatchCreated,
		} {
			events.Subscribe(eventType, h.relay)
		}
	}

	return h
}

// relay fans one event out to every connected client without blocking the bus
func (h *WSHandler) relay(ctx context.Context, event interfaces.Event) error {
	payload := map[string]interface{}{
		"type":    string(event.Type),
		"payload": event.Payload,
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, sendQueue := range h.clients {
		select {
		case sendQueue <- payload:
		default:
			// Slow consumer: drop the event rather than stall the bus
			h.logger.Debug().Str("remote", conn.RemoteAddr().String()).Msg("Dropping event for slow websocket client")
		}
	}
	return nil
}

// LogsHandler handles GET /api/admin/ws/logs, upgrading to a websocket that
// streams run events and recent in-memory log lines.
func (h *WSHandler) LogsHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	sendQueue := make(chan interface{}, 64)
	h.mu.Lock()
	h.clients[conn] = sendQueue
	clientCount := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug().Int("clients", clientCount).Msg("Websocket client connected")

	// Send recent log lines from the in-memory writer as a catch-up burst
	if memLogs := h.recentLogs(); len(memLogs) > 0 {
		conn.WriteJSON(map[string]interface{}{"type": "log_history", "payload": memLogs})
	}

	// Writer loop; reader loop only detects disconnect
	go func() {
		defer h.disconnect(conn)
		for message := range sendQueue {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(message); err != nil {
				return
			}
		}
	}()

	go func() {
		defer h.disconnect(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// disconnect removes a client and closes its queue exactly once
func (h *WSHandler) disconnect(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sendQueue, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		close(sendQueue)
		conn.Close()
		h.logger.Debug().Int("clients", len(h.clients)).Msg("Websocket client disconnected")
	}
}

// recentLogs pulls buffered lines from arbor's in-memory writer
func (h *WSHandler) recentLogs() []string {
	entries, err := h.logger.GetMemoryLogsWithLimit(50)
	if err != nil {
		h.logger.Debug().Err(err).Msg("Failed to read memory log entries")
		return nil
	}
	lines := make([]string, 0, len(entries))
	for _, logLine := range entries {
		lines = append(lines, logLine)
	}
	return lines
}
