// Package benchmark measures agent round-trip latency as a background task.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"justice-backend/internal/agents"
	"justice-backend/internal/events"
	"justice-backend/internal/shared/telemetry"
	"justice-backend/internal/workflow"
)

const (
	TaskKind = "agent_latency"

	DefaultIterations = 3
	MaxIterations     = 20
)

var ErrInvalidIterations = errors.New("iterations out of range")

// Prober is the subset of the agent client the runner needs.
type Prober interface {
	Endpoints() []agents.Endpoint
	Probe(ctx context.Context, ep agents.Endpoint) (time.Duration, error)
}

// Stats summarizes the samples for one agent.
type Stats struct {
	Samples  int     `json:"samples"`
	Failures int     `json:"failures"`
	MinMs    float64 `json:"minMs"`
	AvgMs    float64 `json:"avgMs"`
	MaxMs    float64 `json:"maxMs"`
}

// Runner starts benchmark tasks and tracks them until they finish.
type Runner struct {
	Store  workflow.Store
	Agents Prober
	Events events.Publisher

	wg  sync.WaitGroup
	now func() time.Time
}

// NewRunner constructs a Runner. pub may be nil.
func NewRunner(store workflow.Store, prober Prober, pub events.Publisher) *Runner {
	return &Runner{
		Store:  store,
		Agents: prober,
		Events: pub,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Start records a pending task and runs it in the background. Iterations of
// zero use the default.
func (r *Runner) Start(ctx context.Context, iterations int) (workflow.Task, error) {
	if iterations == 0 {
		iterations = DefaultIterations
	}
	if iterations < 1 || iterations > MaxIterations {
		return workflow.Task{}, fmt.Errorf("%w: must be between 1 and %d", ErrInvalidIterations, MaxIterations)
	}

	now := r.now()
	task := workflow.Task{
		ID:        uuid.NewString(),
		Kind:      TaskKind,
		Status:    workflow.TaskPending,
		Params:    map[string]any{"iterations": iterations},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.save(ctx, task); err != nil {
		return workflow.Task{}, err
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(context.WithoutCancel(ctx), task, iterations)
	}()
	return task, nil
}

// Wait blocks until every started task has finished.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Get returns one task.
func (r *Runner) Get(ctx context.Context, id string) (workflow.Task, error) {
	return r.Store.GetTask(ctx, id)
}

// List returns all tasks, newest first.
func (r *Runner) List(ctx context.Context) ([]workflow.Task, error) {
	return r.Store.ListTasks(ctx)
}

func (r *Runner) run(ctx context.Context, task workflow.Task, iterations int) {
	task.Status = workflow.TaskRunning
	task.UpdatedAt = r.now()
	if err := r.save(ctx, task); err != nil {
		telemetry.Error("benchmark.save_failed", map[string]any{"task_id": task.ID, "error": err.Error()})
		return
	}

	result := map[string]any{}
	reachable := 0
	for _, ep := range r.Agents.Endpoints() {
		stats := r.measure(ctx, ep, iterations)
		if stats.Failures < stats.Samples {
			reachable++
		}
		result[ep.Name] = stats
	}

	task.Result = result
	task.Status = workflow.TaskDone
	if reachable == 0 {
		task.Status = workflow.TaskFailed
		task.Error = "no agent answered"
	}
	task.UpdatedAt = r.now()
	if err := r.save(ctx, task); err != nil {
		telemetry.Error("benchmark.save_failed", map[string]any{"task_id": task.ID, "error": err.Error()})
		return
	}
	telemetry.Info("benchmark.finished", map[string]any{
		"task_id":    task.ID,
		"status":     task.Status,
		"iterations": iterations,
	})
}

func (r *Runner) measure(ctx context.Context, ep agents.Endpoint, iterations int) Stats {
	stats := Stats{Samples: iterations}
	var total float64
	ok := 0
	for i := 0; i < iterations; i++ {
		elapsed, err := r.Agents.Probe(ctx, ep)
		if err != nil {
			stats.Failures++
			continue
		}
		ms := float64(elapsed.Microseconds()) / 1000.0
		if ok == 0 || ms < stats.MinMs {
			stats.MinMs = ms
		}
		if ms > stats.MaxMs {
			stats.MaxMs = ms
		}
		total += ms
		ok++
	}
	if ok > 0 {
		stats.AvgMs = total / float64(ok)
	}
	return stats
}

func (r *Runner) save(ctx context.Context, task workflow.Task) error {
	if err := r.Store.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("save task: %w", err)
	}
	if r.Events != nil {
		r.Events.PublishTask(task)
	}
	return nil
}
