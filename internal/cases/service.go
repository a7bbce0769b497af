// Package cases coordinates the analyze, review and synthesize workflow.
package cases

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"justice-backend/internal/agents"
	"justice-backend/internal/envelope"
	"justice-backend/internal/events"
	"justice-backend/internal/shared/metrics"
	"justice-backend/internal/shared/telemetry"
	"justice-backend/internal/uploads"
	"justice-backend/internal/workflow"
)

// Gateway is the subset of the agent client the coordinator calls.
type Gateway interface {
	Analyze(ctx context.Context, caseID string, files []uploads.File) (*agents.AnalyzeResult, error)
	SubmitForReview(ctx context.Context, caseID string, document map[string]any) (map[string]any, error)
	RecordFeedback(ctx context.Context, caseID string, fb agents.Feedback) (map[string]any, error)
	Synthesize(ctx context.Context, req agents.SynthesisRequest) (map[string]any, error)
}

// Service runs workflow transitions. Transitions for one case run one at a
// time in arrival order; a failed transition leaves the record unchanged and
// publishes nothing.
type Service struct {
	Store  workflow.Store
	Agents Gateway
	Codec  *envelope.Codec
	Events events.Publisher

	locks *keyedLock
	now   func() time.Time
}

// NewService constructs a Service. events may be nil.
func NewService(store workflow.Store, gateway Gateway, codec *envelope.Codec, pub events.Publisher) *Service {
	return &Service{
		Store:  store,
		Agents: gateway,
		Codec:  codec,
		Events: pub,
		locks:  newKeyedLock(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewCaseID returns a fresh case identifier.
func NewCaseID() string {
	return "case_" + uuid.NewString()
}

func (s *Service) lock(caseID string) func() {
	s.locks.Lock(caseID)
	return func() { s.locks.Unlock(caseID) }
}

// Analyze sends evidence to the analyzer and moves the case to analyzed. A
// re-run overwrites the analysis and drops any verdict but keeps feedback.
func (s *Service) Analyze(ctx context.Context, caseID string, files []uploads.File) (workflow.Record, error) {
	ctx = context.WithoutCancel(ctx)
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		caseID = NewCaseID()
	}
	defer s.lock(caseID)()

	res, err := s.Agents.Analyze(ctx, caseID, files)
	if err != nil {
		return workflow.Record{}, err
	}

	stage := workflow.StageAnalyzed
	rec, err := s.Store.Upsert(ctx, caseID, workflow.Patch{
		Stage:          &stage,
		AnalysisResult: res.Analysis,
		Files:          res.Files,
		ClearVerdict:   true,
	})
	if err != nil {
		return workflow.Record{}, fmt.Errorf("save analysis: %w", err)
	}

	s.transitioned(rec, "analyze", "completed", map[string]any{
		"stage":     rec.Stage,
		"fileCount": len(rec.Files),
	})
	return rec, nil
}

// SubmitForReview forwards a draft to the reviewer without a transition.
func (s *Service) SubmitForReview(ctx context.Context, caseID string, document map[string]any) (map[string]any, error) {
	return s.Agents.SubmitForReview(context.WithoutCancel(ctx), caseID, document)
}

// FeedbackResult is the outcome of RecordFeedback.
type FeedbackResult struct {
	Record workflow.Record
	Ack    map[string]any
}

// RecordFeedback forwards reviewer feedback and appends it to the case log.
func (s *Service) RecordFeedback(ctx context.Context, caseID string, fb agents.Feedback) (FeedbackResult, error) {
	ctx = context.WithoutCancel(ctx)
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return FeedbackResult{}, agents.ErrMissingCaseID
	}
	defer s.lock(caseID)()

	rec, err := s.Store.Get(ctx, caseID)
	if err != nil {
		return FeedbackResult{}, err
	}
	if !reviewable(rec.Stage) {
		return FeedbackResult{}, fmt.Errorf("%w: case %s is %s", ErrStaleTransition, caseID, rec.Stage)
	}

	if fb.Timestamp.IsZero() {
		fb.Timestamp = s.now()
	}
	if strings.TrimSpace(fb.ApprovalStatus) == "" {
		fb.ApprovalStatus = "pending"
	}
	ack, err := s.Agents.RecordFeedback(ctx, caseID, fb)
	if err != nil {
		return FeedbackResult{}, err
	}

	stage := workflow.StageUnderReview
	rec, err = s.Store.Update(ctx, caseID, workflow.Patch{
		Stage: &stage,
		AppendFeedback: &workflow.FeedbackEntry{
			Items:          fb.Items,
			Notes:          fb.Notes,
			ApprovalStatus: fb.ApprovalStatus,
			AgentAck:       ack,
			SubmittedAt:    fb.Timestamp,
		},
	})
	if err != nil {
		return FeedbackResult{}, fmt.Errorf("save feedback: %w", err)
	}

	s.transitioned(rec, "review", "updated", map[string]any{
		"stage":          rec.Stage,
		"feedbackCount":  len(rec.ReviewFeedback),
		"approvalStatus": fb.ApprovalStatus,
	})
	return FeedbackResult{Record: rec, Ack: ack}, nil
}

// Approve synthesizes and encrypts the verdict. Empty request fields are
// filled from the stored analysis. The plaintext verdict stays server-side.
func (s *Service) Approve(ctx context.Context, raw map[string]any) (workflow.Record, error) {
	ctx = context.WithoutCancel(ctx)
	req := agents.NormalizeSynthesisRequest(raw)
	defer s.lock(req.CaseID)()

	rec, err := s.Store.Get(ctx, req.CaseID)
	if err != nil {
		return workflow.Record{}, err
	}
	if !reviewable(rec.Stage) || rec.AnalysisResult == nil {
		return workflow.Record{}, fmt.Errorf("%w: case %s is %s", ErrStaleTransition, req.CaseID, rec.Stage)
	}

	verdict, err := s.Agents.Synthesize(ctx, req.FillFrom(rec.AnalysisResult))
	if err != nil {
		return workflow.Record{}, err
	}

	sealed, err := s.Codec.Seal(verdict)
	if err != nil {
		telemetry.Error("verdict.encrypt_failed", map[string]any{
			"case_id": req.CaseID,
			"error":   err.Error(),
		})
		return workflow.Record{}, fmt.Errorf("%w: %v", ErrEncryption, err)
	}

	stage := workflow.StageSynthesized
	at := s.now()
	rec, err = s.Store.Update(ctx, req.CaseID, workflow.Patch{
		Stage:            &stage,
		Verdict:          verdict,
		VerdictEncrypted: &sealed,
		EncryptedAt:      &at,
	})
	if err != nil {
		return workflow.Record{}, fmt.Errorf("save verdict: %w", err)
	}

	s.transitioned(rec, "synthesize", "completed", map[string]any{
		"stage":            rec.Stage,
		"encrypted":        true,
		"verdictEncrypted": sealed,
	})
	return rec, nil
}

// Decrypt opens a verdict envelope.
func (s *Service) Decrypt(env string) (json.RawMessage, error) {
	return s.Codec.Open(env)
}

// ClearAll removes every record. Calling it on an empty store succeeds.
func (s *Service) ClearAll(ctx context.Context) (workflow.ClearStats, error) {
	stats, err := s.Store.ClearAll(context.WithoutCancel(ctx))
	if err != nil {
		return workflow.ClearStats{}, err
	}
	telemetry.Info("workflow.cleared", map[string]any{
		"cases_cleared":     stats.Cases,
		"workflows_cleared": stats.Workflows,
	})
	return stats, nil
}

// Get returns one case.
func (s *Service) Get(ctx context.Context, caseID string) (workflow.Record, error) {
	return s.Store.Get(ctx, caseID)
}

// List returns all cases.
func (s *Service) List(ctx context.Context) ([]workflow.Record, error) {
	return s.Store.List(ctx)
}

func reviewable(stage workflow.Stage) bool {
	return stage == workflow.StageAnalyzed || stage == workflow.StageUnderReview
}

// transitioned must be called while the case lock is held so events for a
// case leave in transition order.
func (s *Service) transitioned(rec workflow.Record, step, status string, data map[string]any) {
	metrics.IncTransition(step, status)
	telemetry.Info("workflow.transition", map[string]any{
		"case_id": rec.CaseID,
		"step":    step,
		"status":  status,
		"stage":   rec.Stage,
	})
	if s.Events == nil {
		return
	}
	s.Events.Publish(events.Event{
		CaseID:    rec.CaseID,
		Step:      step,
		Status:    status,
		Data:      data,
		Timestamp: rec.UpdatedAt,
	})
}
