package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"wardwatch/internal/hub"
)

const wsWriteTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1 << 12,
	WriteBufferSize: 1 << 12,
	// The dashboard is served from other origins in development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsSink adapts a websocket connection to the hub's Sink. The hub already
// serializes sends per subscriber, so no extra locking here.
type wsSink struct {
	conn    *websocket.Conn
	timeout time.Duration
}

func (s *wsSink) Send(message []byte) error {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.timeout))
	return s.conn.WriteMessage(websocket.TextMessage, message)
}

func (s *wsSink) Close() error {
	return s.conn.Close()
}

// handleWS upgrades /ws/{client_id} and pumps inbound control messages until
// the connection drops.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	clientID := strings.TrimPrefix(r.URL.Path, "/ws/")
	if clientID == "" || strings.Contains(clientID, "/") {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("websocket upgrade failed", "client_id", clientID, "err", err)
		}
		return
	}

	timeout := s.cfg.Get().Hub.SendTimeout
	if timeout <= 0 {
		timeout = wsWriteTimeout
	}
	id := s.svc.Hub.Connect(clientID, &wsSink{conn: conn, timeout: timeout})
	defer s.svc.Hub.Disconnect(id)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		// Clients send bare text commands; {"type": ...} envelopes are
		// accepted as well.
		cmd := strings.TrimSpace(string(data))
		if strings.HasPrefix(cmd, "{") {
			var msg struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			cmd = msg.Type
		}
		switch cmd {
		case "ping":
			s.svc.Hub.SendTo(id, hub.Pong())
		case "get_live_data":
			s.svc.Hub.SendTo(id, hub.SystemHeartbeat(s.svc.Status()))
		}
	}
}
