// Package notify fans JSON-RPC notifications out to connected dashboard
// sessions. Every session receives the same stream; there is no
// per-session subscription filtering.
package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"bambu_bridge/internal/logger"
)

const (
	writeWait     = 10 * time.Second
	sendQueueSize = 64
	// Interval between notify_proc_stat_update heartbeats.
	procStatPeriod = 20 * time.Second
)

// notification is the server-initiated JSON-RPC envelope (no id).
type notification struct {
	Jsonrpc string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params,omitempty"`
}

// Session is one connected WebSocket client. Writes are serialized
// through the send queue so notifications and RPC responses never
// interleave on the wire.
type Session struct {
	ID   string
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	closed bool

	hub *Hub
}

// Send marshals v and queues it for delivery. A session that cannot
// keep up gets dropped rather than blocking the broadcaster.
func (s *Session) Send(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	select {
	case s.send <- b:
		s.mu.Unlock()
	default:
		s.mu.Unlock()
		s.hub.log.Warnw("session_send_queue_full", "session", s.ID)
		s.hub.Unregister(s)
	}
}

// shut closes the outbound queue exactly once.
func (s *Session) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.send)
	}
}

func (s *Session) writeLoop() {
	defer func() { _ = s.conn.Close() }()
	for msg := range s.send {
		_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			s.hub.Unregister(s)
			return
		}
	}
}

// Hub tracks live sessions and broadcasts notifications to all of them.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]*Session
	log      *logger.Logger
	started  time.Time
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		sessions: make(map[string]*Session),
		log:      log,
		started:  time.Now(),
	}
}

// Register wraps an upgraded connection in a session, starts its writer,
// and announces klippy readiness so clients skip their recovery flow.
func (h *Hub) Register(conn *websocket.Conn) *Session {
	s := &Session{
		ID:   uuid.NewString()[:8],
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		hub:  h,
	}

	h.mu.Lock()
	h.sessions[s.ID] = s
	n := len(h.sessions)
	h.mu.Unlock()

	go s.writeLoop()
	s.Send(notification{Jsonrpc: "2.0", Method: "notify_klippy_ready"})

	h.log.Infow("session_connected", "session", s.ID, "active", n)
	return s
}

// Unregister removes a session and closes its queue. Safe to call more
// than once for the same session.
func (h *Hub) Unregister(s *Session) {
	h.mu.Lock()
	_, present := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	n := len(h.sessions)
	h.mu.Unlock()

	s.shut()
	if present {
		h.log.Infow("session_disconnected", "session", s.ID, "active", n)
	}
}

// Broadcast queues one notification for every live session.
func (h *Hub) Broadcast(method string, params ...any) {
	h.mu.Lock()
	targets := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()

	msg := notification{Jsonrpc: "2.0", Method: method, Params: params}
	for _, s := range targets {
		s.Send(msg)
	}
}

// NotifyStatusUpdate publishes a state delta stamped with the store's
// event time.
func (h *Hub) NotifyStatusUpdate(delta map[string]map[string]any, eventtime float64) {
	if len(delta) == 0 {
		return
	}
	h.Broadcast("notify_status_update", delta, eventtime)
}

// NotifyGcodeResponse relays console output lines.
func (h *Hub) NotifyGcodeResponse(line string) {
	h.Broadcast("notify_gcode_response", line)
}

// NotifyHistoryChanged announces a finished or added job record.
func (h *Hub) NotifyHistoryChanged(action string, job any) {
	h.Broadcast("notify_history_changed", map[string]any{
		"action": action,
		"job":    job,
	})
}

// NotifyWebcamsChanged tells clients to refetch the webcam list.
func (h *Hub) NotifyWebcamsChanged() {
	h.Broadcast("notify_webcams_changed")
}

// SessionCount reports live sessions, used by proc stats and /server/info.
func (h *Hub) SessionCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Run emits notify_proc_stat_update heartbeats until ctx is cancelled.
// Fluidd and Mainsail treat a silent server as stalled, so the beat runs
// even when the printer link is down.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(procStatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, s := range h.sessions {
				delete(h.sessions, s.ID)
				s.shut()
			}
			h.mu.Unlock()
			return
		case now := <-ticker.C:
			h.Broadcast("notify_proc_stat_update", h.procStats(now))
		}
	}
}

func (h *Hub) procStats(now time.Time) map[string]any {
	return map[string]any{
		"moonraker_stats": map[string]any{
			"cpu_usage": 0.0,
			"memory":    0,
			"mem_units": "kB",
		},
		"cpu_temp":              0.0,
		"network":               map[string]any{},
		"system_uptime":         now.Sub(h.started).Seconds(),
		"websocket_connections": h.SessionCount(),
		"time":                  float64(now.UnixNano()) / 1e9,
	}
}
