package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/uitrace/gateway/internal/gateway/domain"
	"github.com/uitrace/gateway/internal/gateway/hub"
	"github.com/uitrace/gateway/pkg/slogx"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsMaxMessageSize = 1 << 16
)

// WSHandler upgrades authenticated requests to WebSocket connections
// and bridges them onto the hub: inbound frames steer session
// membership or publish events, outbound frames are whatever the hub
// delivers.
type WSHandler struct {
	Hub           *hub.Hub
	AllowedOrigin string
}

// clientMessage is the frame shape clients send. Type steers the
// dispatch; Data stays raw until the type says how to decode it.
type clientMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type sessionRef struct {
	SessionID string `json:"sessionId"`
}

// Client message types.
const (
	msgJoinSession  = "join_session"
	msgLeaveSession = "leave_session"
)

func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		log.Warn("websocket upgrade failed", "err", err)
		return
	}

	conn := h.Hub.Connect()
	log = log.With("conn_id", conn.ID())

	go h.writePump(sock, conn)
	h.readPump(sock, conn, log)
}

// readPump drives the connection: it applies read deadlines, dispatches
// client frames, and tears the connection down when the socket dies.
func (h *WSHandler) readPump(sock *websocket.Conn, conn *hub.Conn, log *slog.Logger) {
	defer func() {
		h.Hub.Disconnect(conn)
		sock.Close()
	}()

	sock.SetReadLimit(wsMaxMessageSize)
	sock.SetReadDeadline(time.Now().Add(wsPongWait))
	sock.SetPongHandler(func(string) error {
		sock.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, raw, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket read failed", "err", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Debug("websocket frame ignored", "err", err)
			continue
		}

		switch msg.Type {
		case msgJoinSession:
			var ref sessionRef
			if err := json.Unmarshal(msg.Data, &ref); err == nil && ref.SessionID != "" {
				h.Hub.JoinSession(conn, ref.SessionID)
			}
		case msgLeaveSession:
			var ref sessionRef
			if err := json.Unmarshal(msg.Data, &ref); err == nil {
				h.Hub.LeaveSession(conn, ref.SessionID)
			}
		case domain.EventAction, domain.EventFeedback, domain.EventStatus:
			// Socket-published events go to everyone, same as the HTTP
			// ingestion path's broadcast leg.
			h.Hub.Broadcast(msg.Type, msg.Data)
		default:
			log.Debug("websocket frame ignored", "type", msg.Type)
		}
	}
}

// writePump drains the hub delivery channel onto the socket and keeps
// the connection alive with pings. It exits when the hub closes the
// channel or a write fails; either way readPump's deferred Disconnect
// finishes the teardown.
func (h *WSHandler) writePump(sock *websocket.Conn, conn *hub.Conn) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		sock.Close()
	}()

	for {
		select {
		case event, ok := <-conn.Events():
			sock.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				sock.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := sock.WriteJSON(event); err != nil {
				return
			}
		case <-ticker.C:
			sock.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if h.AllowedOrigin == "" || h.AllowedOrigin == "*" {
		return true
	}
	return r.Header.Get("Origin") == h.AllowedOrigin
}
