package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	selectRecordByID = `
SELECT case_id, stage, analysis_result, review_feedback, verdict, verdict_encrypted, encrypted_at, files, created_at, updated_at
FROM workflow_records
WHERE case_id = $1`

	selectRecordForUpdate = selectRecordByID + `
FOR UPDATE`

	selectRecords = `
SELECT case_id, stage, analysis_result, review_feedback, verdict, verdict_encrypted, encrypted_at, files, created_at, updated_at
FROM workflow_records
ORDER BY case_id`

	upsertRecord = `
INSERT INTO workflow_records (
	case_id, stage, analysis_result, review_feedback, verdict, verdict_encrypted, encrypted_at, files, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (case_id) DO UPDATE SET
	stage = EXCLUDED.stage,
	analysis_result = EXCLUDED.analysis_result,
	review_feedback = EXCLUDED.review_feedback,
	verdict = EXCLUDED.verdict,
	verdict_encrypted = EXCLUDED.verdict_encrypted,
	encrypted_at = EXCLUDED.encrypted_at,
	files = EXCLUDED.files,
	updated_at = EXCLUDED.updated_at`

	countRecords = `
SELECT COUNT(*) FILTER (WHERE analysis_result IS NOT NULL OR files IS NOT NULL), COUNT(*)
FROM workflow_records`

	deleteRecords = `DELETE FROM workflow_records`

	upsertTask = `
INSERT INTO workflow_tasks (id, kind, status, params, result, error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	status = EXCLUDED.status,
	params = EXCLUDED.params,
	result = EXCLUDED.result,
	error = EXCLUDED.error,
	updated_at = EXCLUDED.updated_at`

	selectTaskByID = `
SELECT id, kind, status, params, result, error, created_at, updated_at
FROM workflow_tasks
WHERE id = $1`

	selectTasks = `
SELECT id, kind, status, params, result, error, created_at, updated_at
FROM workflow_tasks
ORDER BY created_at DESC, id`
)

// PGStore implements Store using Postgres.
type PGStore struct {
	DB  *sql.DB
	now func() time.Time
}

// NewPGStore constructs a PGStore over an open database.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now().UTC()
}

// Upsert creates or merges a record inside one transaction.
func (s *PGStore) Upsert(ctx context.Context, caseID string, p Patch) (Record, error) {
	return s.mutate(ctx, caseID, p, true)
}

// Update merges into an existing record.
func (s *PGStore) Update(ctx context.Context, caseID string, p Patch) (Record, error) {
	return s.mutate(ctx, caseID, p, false)
}

func (s *PGStore) mutate(ctx context.Context, caseID string, p Patch, create bool) (Record, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, err
	}
	defer tx.Rollback()

	now := s.clock()
	rec, err := scanRecord(tx.QueryRowContext(ctx, selectRecordForUpdate, caseID))
	switch {
	case errors.Is(err, ErrNotFound):
		if !create {
			return Record{}, ErrNotFound
		}
		rec = Record{CaseID: caseID, Stage: StageUploaded, ReviewFeedback: []FeedbackEntry{}, CreatedAt: now}
	case err != nil:
		return Record{}, err
	}

	apply(&rec, p, now)
	if err := writeRecord(ctx, tx, rec); err != nil {
		return Record{}, err
	}
	if err := tx.Commit(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Get returns a record by case id.
func (s *PGStore) Get(ctx context.Context, caseID string) (Record, error) {
	return scanRecord(s.DB.QueryRowContext(ctx, selectRecordByID, caseID))
}

// List returns all records ordered by case id.
func (s *PGStore) List(ctx context.Context) ([]Record, error) {
	rows, err := s.DB.QueryContext(ctx, selectRecords)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ClearAll counts and deletes every record in one transaction. Tasks are kept.
func (s *PGStore) ClearAll(ctx context.Context) (ClearStats, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return ClearStats{}, err
	}
	defer tx.Rollback()

	var stats ClearStats
	if err := tx.QueryRowContext(ctx, countRecords).Scan(&stats.Cases, &stats.Workflows); err != nil {
		return ClearStats{}, err
	}
	if _, err := tx.ExecContext(ctx, deleteRecords); err != nil {
		return ClearStats{}, err
	}
	if err := tx.Commit(); err != nil {
		return ClearStats{}, err
	}
	return stats, nil
}

// SaveTask inserts or replaces a task.
func (s *PGStore) SaveTask(ctx context.Context, task Task) error {
	params, err := jsonbArg(task.Params)
	if err != nil {
		return err
	}
	result, err := jsonbArg(task.Result)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, upsertTask,
		task.ID,
		task.Kind,
		string(task.Status),
		params,
		result,
		task.Error,
		task.CreatedAt,
		task.UpdatedAt,
	)
	return err
}

// GetTask returns a task by id.
func (s *PGStore) GetTask(ctx context.Context, id string) (Task, error) {
	return scanTask(s.DB.QueryRowContext(ctx, selectTaskByID, id))
}

// ListTasks returns tasks newest first.
func (s *PGStore) ListTasks(ctx context.Context) ([]Task, error) {
	rows, err := s.DB.QueryContext(ctx, selectTasks)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func writeRecord(ctx context.Context, tx *sql.Tx, rec Record) error {
	analysis, err := jsonbArg(rec.AnalysisResult)
	if err != nil {
		return err
	}
	feedback := rec.ReviewFeedback
	if feedback == nil {
		feedback = []FeedbackEntry{}
	}
	feedbackRaw, err := json.Marshal(feedback)
	if err != nil {
		return fmt.Errorf("marshal feedback: %w", err)
	}
	verdict, err := jsonbArg(rec.Verdict)
	if err != nil {
		return err
	}
	var files any
	if rec.Files != nil {
		raw, err := json.Marshal(rec.Files)
		if err != nil {
			return fmt.Errorf("marshal files: %w", err)
		}
		files = string(raw)
	}
	var encryptedAt any
	if rec.EncryptedAt != nil {
		encryptedAt = *rec.EncryptedAt
	}
	_, err = tx.ExecContext(ctx, upsertRecord,
		rec.CaseID,
		string(rec.Stage),
		analysis,
		string(feedbackRaw),
		verdict,
		rec.VerdictEncrypted,
		encryptedAt,
		files,
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	return err
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec         Record
		stage       string
		analysis    []byte
		feedback    []byte
		verdict     []byte
		files       []byte
		encryptedAt sql.NullTime
	)
	err := row.Scan(
		&rec.CaseID,
		&stage,
		&analysis,
		&feedback,
		&verdict,
		&rec.VerdictEncrypted,
		&encryptedAt,
		&files,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	rec.Stage = Stage(stage)
	if err := unmarshalJSONB(analysis, &rec.AnalysisResult); err != nil {
		return Record{}, fmt.Errorf("decode analysis_result: %w", err)
	}
	if err := unmarshalJSONB(feedback, &rec.ReviewFeedback); err != nil {
		return Record{}, fmt.Errorf("decode review_feedback: %w", err)
	}
	if rec.ReviewFeedback == nil {
		rec.ReviewFeedback = []FeedbackEntry{}
	}
	if err := unmarshalJSONB(verdict, &rec.Verdict); err != nil {
		return Record{}, fmt.Errorf("decode verdict: %w", err)
	}
	if err := unmarshalJSONB(files, &rec.Files); err != nil {
		return Record{}, fmt.Errorf("decode files: %w", err)
	}
	if encryptedAt.Valid {
		at := encryptedAt.Time
		rec.EncryptedAt = &at
	}
	return rec, nil
}

func scanTask(row rowScanner) (Task, error) {
	var (
		task   Task
		status string
		params []byte
		result []byte
	)
	err := row.Scan(&task.ID, &task.Kind, &status, &params, &result, &task.Error, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, ErrNotFound
		}
		return Task{}, err
	}
	task.Status = TaskStatus(status)
	if err := unmarshalJSONB(params, &task.Params); err != nil {
		return Task{}, fmt.Errorf("decode params: %w", err)
	}
	if err := unmarshalJSONB(result, &task.Result); err != nil {
		return Task{}, fmt.Errorf("decode result: %w", err)
	}
	return task, nil
}

// jsonbArg marshals a map for a JSONB column; nil maps become SQL NULL.
func jsonbArg(m map[string]any) (any, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func unmarshalJSONB(raw []byte, dest any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dest)
}

var _ Store = (*PGStore)(nil)
