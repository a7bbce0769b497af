package events

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(hub, nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	deadline := time.Now().Add(time.Second)
	for hub.Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func TestWebSocketReceivesWorkflowUpdate(t *testing.T) {
	hub := NewHub(false)
	conn := dialHub(t, hub)

	hub.Publish(Event{CaseID: "case_42", Step: "synthesize", Status: "completed"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Event string `json:"event"`
		Data  Event  `json:"data"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Event != "workflow:update" {
		t.Fatalf("expected workflow:update, got %s", frame.Event)
	}
	if frame.Data.CaseID != "case_42" || frame.Data.Step != "synthesize" {
		t.Fatalf("unexpected payload: %+v", frame.Data)
	}
}

func TestWebSocketJoinScopesDelivery(t *testing.T) {
	hub := NewHub(true)
	conn := dialHub(t, hub)

	join, _ := json.Marshal(map[string]any{"event": "join:case", "data": "case_7"})
	if err := conn.WriteMessage(websocket.TextMessage, join); err != nil {
		t.Fatalf("write join: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !hasRoom(hub, "case_7") {
		if time.Now().After(deadline) {
			t.Fatalf("join:case never applied")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(Event{CaseID: "case_other", Step: "analyze", Status: "completed"})
	hub.Publish(Event{CaseID: "case_7", Step: "analyze", Status: "completed"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame struct {
		Data Event `json:"data"`
	}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if frame.Data.CaseID != "case_7" {
		t.Fatalf("expected only case_7 frames, got %s", frame.Data.CaseID)
	}
}

func hasRoom(hub *Hub, caseID string) bool {
	hub.mu.RLock()
	defer hub.mu.RUnlock()
	for sub := range hub.subs {
		if _, ok := sub.rooms[caseID]; ok {
			return true
		}
	}
	return false
}

func TestWebSocketDisconnectUnsubscribes(t *testing.T) {
	hub := NewHub(false)
	conn := dialHub(t, hub)
	_ = conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriber not removed after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
