package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"

	"justice-backend/internal/agents"
)

func newGateway(analyzer, reviewer, synthesizer string, timeout time.Duration) *agents.Client {
	return &agents.Client{
		Analyzer:     agents.Endpoint{Name: "agent1", BaseURL: analyzer},
		Reviewer:     agents.Endpoint{Name: "agent2", BaseURL: reviewer},
		Synthesizer:  agents.Endpoint{Name: "agent3", BaseURL: synthesizer},
		ProbeTimeout: timeout,
	}
}

func hangingServer(t *testing.T) *httptest.Server {
	t.Helper()
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})
	return srv
}

func TestOfflineAllAgentsDownWithinOneTimeout(t *testing.T) {
	t.Parallel()
	timeout := 200 * time.Millisecond
	a, b, c := hangingServer(t), hangingServer(t), hangingServer(t)
	svc := NewService(newGateway(a.URL, b.URL, c.URL, timeout))

	start := time.Now()
	status := svc.Offline(context.Background())
	elapsed := time.Since(start)

	if !status.OfflineMode {
		t.Fatalf("expected offlineMode true")
	}
	want := map[string]bool{"agent1": false, "agent2": false, "agent3": false}
	if diff := cmp.Diff(want, status.Agents); diff != "" {
		t.Fatalf("unexpected agents (-want +got):\n%s", diff)
	}
	if elapsed > 2*timeout+200*time.Millisecond {
		t.Fatalf("expected probes in parallel, took %s", elapsed)
	}
}

func TestOfflinePartialAvailability(t *testing.T) {
	t.Parallel()
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer healthy.Close()
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	svc := NewService(newGateway(healthy.URL, downURL, downURL, 200*time.Millisecond))
	status := svc.Offline(context.Background())

	if status.OfflineMode {
		t.Fatalf("expected offlineMode false with one agent up")
	}
	if !status.Agents["agent1"] || status.Agents["agent2"] || status.Agents["agent3"] {
		t.Fatalf("unexpected agents %v", status.Agents)
	}
	if status.CheckedAt.IsZero() {
		t.Fatalf("expected checkedAt")
	}
}

func TestRoutes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	down := httptest.NewServer(http.NotFoundHandler())
	downURL := down.URL
	down.Close()

	r := gin.New()
	NewHandler(NewService(newGateway(downURL, downURL, downURL, 100*time.Millisecond))).RegisterRoutes(r.Group("/api"))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if resp.Code != http.StatusOK || resp.Body.String() != `{"ok":true}` {
		t.Fatalf("unexpected health response %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/offline/status", nil))
	var payload map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload["offlineMode"] != true {
		t.Fatalf("expected offlineMode true, got %v", payload)
	}
}
