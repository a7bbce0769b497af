package workflow

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps workflow state in process memory and is safe for concurrent use.
// Reads return deep copies.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	tasks   map[string]Task
	now     func() time.Time
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]Record),
		tasks:   make(map[string]Task),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upsert creates or merges a record.
func (s *MemoryStore) Upsert(ctx context.Context, caseID string, p Patch) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	rec, ok := s.records[caseID]
	if !ok {
		rec = Record{
			CaseID:         caseID,
			Stage:          StageUploaded,
			ReviewFeedback: []FeedbackEntry{},
			CreatedAt:      now,
		}
	}
	apply(&rec, p, now)
	s.records[caseID] = rec
	return cloneRecord(rec), nil
}

// Update merges into an existing record.
func (s *MemoryStore) Update(ctx context.Context, caseID string, p Patch) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[caseID]
	if !ok {
		return Record{}, ErrNotFound
	}
	apply(&rec, p, s.now())
	s.records[caseID] = rec
	return cloneRecord(rec), nil
}

// Get returns a record by case id.
func (s *MemoryStore) Get(ctx context.Context, caseID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[caseID]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// List returns a snapshot of all records.
func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, cloneRecord(rec))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CaseID < out[j].CaseID })
	return out, nil
}

// ClearAll removes every record. Tasks are kept.
func (s *MemoryStore) ClearAll(ctx context.Context) (ClearStats, error) {
	if err := ctx.Err(); err != nil {
		return ClearStats{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := ClearStats{Workflows: len(s.records)}
	for _, rec := range s.records {
		if rec.HasCaseData() {
			stats.Cases++
		}
	}
	s.records = make(map[string]Record)
	return stats, nil
}

// SaveTask inserts or replaces a task.
func (s *MemoryStore) SaveTask(ctx context.Context, task Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = cloneTask(task)
	return nil
}

// GetTask returns a task by id.
func (s *MemoryStore) GetTask(ctx context.Context, id string) (Task, error) {
	if err := ctx.Err(); err != nil {
		return Task{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return Task{}, ErrNotFound
	}
	return cloneTask(task), nil
}

// ListTasks returns tasks newest first.
func (s *MemoryStore) ListTasks(ctx context.Context) ([]Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		out = append(out, cloneTask(task))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
