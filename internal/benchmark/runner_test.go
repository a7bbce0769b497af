package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"justice-backend/internal/agents"
	"justice-backend/internal/events"
	"justice-backend/internal/workflow"
)

type fakeProber struct {
	latency map[string]time.Duration
	down    map[string]bool
}

func (f fakeProber) Endpoints() []agents.Endpoint {
	return []agents.Endpoint{{Name: "agent1"}, {Name: "agent2"}, {Name: "agent3"}}
}

func (f fakeProber) Probe(ctx context.Context, ep agents.Endpoint) (time.Duration, error) {
	if f.down[ep.Name] {
		return 0, &agents.Error{Kind: agents.KindUnavailable, Agent: ep.Name, Err: errors.New("refused")}
	}
	return f.latency[ep.Name], nil
}

type taskPublisher struct {
	mu       sync.Mutex
	statuses []workflow.TaskStatus
}

func (p *taskPublisher) Publish(events.Event) {}

func (p *taskPublisher) PublishTask(v any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, v.(workflow.Task).Status)
}

func (p *taskPublisher) snapshot() []workflow.TaskStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]workflow.TaskStatus(nil), p.statuses...)
}

func TestRunnerCompletesTask(t *testing.T) {
	store := workflow.NewMemoryStore()
	pub := &taskPublisher{}
	runner := NewRunner(store, fakeProber{
		latency: map[string]time.Duration{"agent1": 2 * time.Millisecond, "agent2": 4 * time.Millisecond},
		down:    map[string]bool{"agent3": true},
	}, pub)

	task, err := runner.Start(context.Background(), 2)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if task.Status != workflow.TaskPending || task.Kind != TaskKind {
		t.Fatalf("unexpected initial task %+v", task)
	}
	runner.Wait()

	got, err := runner.Get(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != workflow.TaskDone {
		t.Fatalf("expected done, got %s", got.Status)
	}
	a1 := got.Result["agent1"].(Stats)
	if a1.Samples != 2 || a1.Failures != 0 || a1.AvgMs != 2 {
		t.Fatalf("unexpected agent1 stats %+v", a1)
	}
	a3 := got.Result["agent3"].(Stats)
	if a3.Failures != 2 {
		t.Fatalf("expected agent3 failures, got %+v", a3)
	}

	want := []workflow.TaskStatus{workflow.TaskPending, workflow.TaskRunning, workflow.TaskDone}
	if got := pub.snapshot(); len(got) != len(want) || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("expected task events %v, got %v", want, got)
	}
}

func TestRunnerFailsWhenNoAgentAnswers(t *testing.T) {
	store := workflow.NewMemoryStore()
	runner := NewRunner(store, fakeProber{down: map[string]bool{"agent1": true, "agent2": true, "agent3": true}}, nil)

	task, err := runner.Start(context.Background(), 1)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	runner.Wait()

	got, _ := runner.Get(context.Background(), task.ID)
	if got.Status != workflow.TaskFailed || got.Error == "" {
		t.Fatalf("expected failed task with error, got %+v", got)
	}
}

func TestRunnerRejectsIterations(t *testing.T) {
	runner := NewRunner(workflow.NewMemoryStore(), fakeProber{}, nil)
	for _, n := range []int{-1, MaxIterations + 1} {
		if _, err := runner.Start(context.Background(), n); !errors.Is(err, ErrInvalidIterations) {
			t.Fatalf("iterations %d: expected ErrInvalidIterations, got %v", n, err)
		}
	}
}

func TestHandlerRunAndFetch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	runner := NewRunner(workflow.NewMemoryStore(), fakeProber{latency: map[string]time.Duration{}}, nil)
	r := gin.New()
	NewHandler(runner).RegisterRoutes(r.Group("/api"))

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/benchmark/run", strings.NewReader(`{"iterations":1}`)))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", resp.Code, resp.Body.String())
	}
	var task workflow.Task
	if err := json.Unmarshal(resp.Body.Bytes(), &task); err != nil {
		t.Fatalf("decode: %v", err)
	}
	runner.Wait()

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/benchmark/"+task.ID, nil))
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"status":"done"`) {
		t.Fatalf("expected done task, got %d %s", resp.Code, resp.Body.String())
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/benchmark/run", nil))
	if resp.Code != http.StatusAccepted {
		t.Fatalf("expected empty body to use defaults, got %d", resp.Code)
	}
	runner.Wait()

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/benchmark/missing", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/benchmark/run", strings.NewReader(`{"iterations":99}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}
