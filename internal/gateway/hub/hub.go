// Package hub routes typed events to live extension connections, either
// to every connection at once or to the members of a single session.
//
// Sessions are client-chosen routing keys, nothing more: joining one is
// not authenticated and grants nothing beyond receiving that session's
// events. Delivery is best-effort with no persistence or acks; whoever
// is connected when an event is published receives it, everyone else
// misses it.
package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/internal/gateway/metrics"
)

// Hub owns the connection registry and the session membership map. All
// mutations go through one mutex; connect/disconnect racing a broadcast
// must never lose an update, and the critical sections are short enough
// that a single coarse lock beats anything cleverer.
type Hub struct {
	mu       sync.Mutex
	conns    map[*Conn]struct{}
	sessions map[string]map[*Conn]struct{}

	logger *slog.Logger
}

func New(logger *slog.Logger) *Hub {
	return &Hub{
		conns:    make(map[*Conn]struct{}),
		sessions: make(map[string]map[*Conn]struct{}),
		logger:   logger,
	}
}

// Connect registers a new live connection with no session membership.
func (h *Hub) Connect() *Conn {
	c := newConn()

	h.mu.Lock()
	h.conns[c] = struct{}{}
	total := len(h.conns)
	h.mu.Unlock()

	metrics.SetConnections(total)
	h.logger.Debug("hub connection opened", "conn_id", c.id, "total", total)
	return c
}

// Disconnect removes the connection and its session membership in one
// step and closes its delivery channel. Safe to call more than once.
func (h *Hub) Disconnect(c *Conn) {
	h.mu.Lock()
	h.dropLocked(c)
	total := len(h.conns)
	h.mu.Unlock()

	metrics.SetConnections(total)
	h.logger.Debug("hub connection closed", "conn_id", c.id, "total", total)
}

// JoinSession adds the connection to a session. A connection belongs to
// at most one session: joining another replaces the previous
// membership. Joining a session the connection is already in is a
// no-op.
func (h *Hub) JoinSession(c *Conn, sessionID string) {
	if sessionID == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if c.closed {
		return
	}
	if c.session == sessionID {
		return
	}

	if c.session != "" {
		h.leaveLocked(c, c.session)
	}

	members, ok := h.sessions[sessionID]
	if !ok {
		members = make(map[*Conn]struct{})
		h.sessions[sessionID] = members
	}
	members[c] = struct{}{}
	c.session = sessionID
}

// LeaveSession removes the membership if present; no-op otherwise.
func (h *Hub) LeaveSession(c *Conn, sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.session != sessionID {
		return
	}
	h.leaveLocked(c, sessionID)
	c.session = ""
}

// Broadcast delivers the event to every currently connected channel,
// regardless of session membership.
func (h *Hub) Broadcast(eventType string, data any) {
	event := envelope(eventType, data)

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.conns {
		h.deliverLocked(c, event)
	}
}

// SendToSession delivers the event only to connections currently joined
// to sessionID. Unknown sessions are a silent no-op.
func (h *Hub) SendToSession(sessionID, eventType string, data any) {
	event := envelope(eventType, data)

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.sessions[sessionID] {
		h.deliverLocked(c, event)
	}
}

// Len reports the number of live connections.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// SessionLen reports the number of members in a session.
func (h *Hub) SessionLen(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[sessionID])
}

// deliverLocked queues the event on a connection's channel. The channel
// is buffered and drained by a single writer, so per-publisher order is
// preserved per recipient. A full buffer means the consumer is gone or
// wedged; the connection is dropped instead of blocking the hub.
func (h *Hub) deliverLocked(c *Conn, event domain.Event) {
	select {
	case c.send <- event:
		metrics.RecordEventDelivered(event.Type)
	default:
		h.logger.Warn("hub dropping slow connection", "conn_id", c.id, "event_type", event.Type)
		h.dropLocked(c)
	}
}

func (h *Hub) dropLocked(c *Conn) {
	if c.closed {
		return
	}
	c.closed = true

	delete(h.conns, c)
	if c.session != "" {
		h.leaveLocked(c, c.session)
		c.session = ""
	}
	close(c.send)
}

func (h *Hub) leaveLocked(c *Conn, sessionID string) {
	members, ok := h.sessions[sessionID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.sessions, sessionID)
	}
}

func envelope(eventType string, data any) domain.Event {
	return domain.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}
