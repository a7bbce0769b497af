package events

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"justice-backend/internal/shared/telemetry"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessage = 4 << 10
)

// clientFrame is what browsers send: join:case / leave:case with a case id.
type clientFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handler upgrades GET /ws and pumps hub frames to the client.
type Handler struct {
	Hub      *Hub
	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler. An empty origin list accepts any origin.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	origins := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins[trimmed] = struct{}{}
		}
	}
	return &Handler{
		Hub: hub,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" || len(origins) == 0 {
					return true
				}
				_, ok := origins[origin]
				return ok
			},
		},
	}
}

// RegisterRoutes attaches the websocket endpoint.
func (h *Handler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/ws", h.serve)
}

func (h *Handler) serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		telemetry.Warn("ws.upgrade.failed", map[string]any{"err": err.Error(), "remote": c.ClientIP()})
		return
	}
	sub := h.Hub.Subscribe()
	telemetry.Info("ws.connected", map[string]any{"remote": c.ClientIP(), "subscribers": h.Hub.Len()})

	go h.readPump(conn, sub)
	h.writePump(conn, sub)
	telemetry.Info("ws.disconnected", map[string]any{"remote": c.ClientIP()})
}

// readPump handles room membership and pong deadlines. It unsubscribes on
// any read error, which in turn ends writePump.
func (h *Handler) readPump(conn *websocket.Conn, sub *Subscriber) {
	defer h.Hub.Unsubscribe(sub)

	conn.SetReadLimit(maxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg clientFrame
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		var caseID string
		if err := json.Unmarshal(msg.Data, &caseID); err != nil || strings.TrimSpace(caseID) == "" {
			continue
		}
		switch msg.Event {
		case "join:case":
			sub.Join(strings.TrimSpace(caseID))
		case "leave:case":
			sub.Leave(strings.TrimSpace(caseID))
		}
	}
}

func (h *Handler) writePump(conn *websocket.Conn, sub *Subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		h.Hub.Unsubscribe(sub)
		_ = conn.Close()
	}()
	for {
		select {
		case frame, ok := <-sub.C():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
