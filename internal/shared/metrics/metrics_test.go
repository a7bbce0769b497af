package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncTransitionCountsByLabel(t *testing.T) {
	before := testutil.ToFloat64(workflowTransitions.WithLabelValues("synthesize", "completed"))
	IncTransition("synthesize", "completed")
	IncTransition("synthesize", "completed")
	after := testutil.ToFloat64(workflowTransitions.WithLabelValues("synthesize", "completed"))
	if after-before != 2 {
		t.Fatalf("expected counter to grow by 2, got %v", after-before)
	}
}

func TestHandlerExposesRegisteredMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	IncTransition("analyze", "completed")
	ObserveAgentCall("agent1", "ok", 150*time.Millisecond)
	SetSubscribers(3)

	r := gin.New()
	r.GET("/metrics", Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"workflow_transitions_total", "agent_call_duration_seconds_bucket", "events_subscribers 3"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}
