package workflow

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Store persists workflow records and task handles.
type Store interface {
	// Upsert creates the record if absent and merges the patch.
	Upsert(ctx context.Context, caseID string, p Patch) (Record, error)
	// Update merges the patch into an existing record or returns ErrNotFound.
	Update(ctx context.Context, caseID string, p Patch) (Record, error)
	Get(ctx context.Context, caseID string) (Record, error)
	// List returns all records ordered by case id.
	List(ctx context.Context) ([]Record, error)
	// ClearAll atomically removes every record.
	ClearAll(ctx context.Context) (ClearStats, error)

	SaveTask(ctx context.Context, task Task) error
	GetTask(ctx context.Context, id string) (Task, error)
	// ListTasks returns tasks newest first.
	ListTasks(ctx context.Context) ([]Task, error)
}
