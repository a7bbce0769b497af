package workflow

import "time"

// Stage is the position of a case in the analyze, review, synthesize pipeline.
type Stage string

const (
	StageUploaded    Stage = "uploaded"
	StageAnalyzed    Stage = "analyzed"
	StageUnderReview Stage = "under_review"
	StageSynthesized Stage = "synthesized"
)

// FileSummary describes one retained evidence file.
type FileSummary struct {
	FileName   string `json:"fileName"`
	SizeBytes  int64  `json:"sizeBytes"`
	MimeType   string `json:"mimeType"`
	StorageKey string `json:"storageKey,omitempty"`
	Pages      int    `json:"pages,omitempty"`
}

// FeedbackItem is a single reviewer remark.
type FeedbackItem struct {
	Section      string `json:"section"`
	FeedbackType string `json:"feedback_type"`
	Content      string `json:"content"`
	Action       string `json:"action,omitempty"`
}

// FeedbackEntry is one accepted feedback submission.
type FeedbackEntry struct {
	Items          []FeedbackItem `json:"items"`
	Notes          string         `json:"notes,omitempty"`
	ApprovalStatus string         `json:"approvalStatus,omitempty"`
	AgentAck       map[string]any `json:"agentAck,omitempty"`
	SubmittedAt    time.Time      `json:"submittedAt"`
}

// Record is the workflow state of one case. Verdict holds the plaintext
// verdict and is never serialized.
type Record struct {
	CaseID           string          `json:"caseId"`
	Stage            Stage           `json:"stage"`
	AnalysisResult   map[string]any  `json:"analysisResult,omitempty"`
	ReviewFeedback   []FeedbackEntry `json:"reviewFeedback"`
	Verdict          map[string]any  `json:"-"`
	VerdictEncrypted string          `json:"verdictEncrypted,omitempty"`
	EncryptedAt      *time.Time      `json:"encryptedAt,omitempty"`
	Files            []FileSummary   `json:"files,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// HasCaseData reports whether the record carries uploaded case material.
func (r Record) HasCaseData() bool {
	return r.AnalysisResult != nil || len(r.Files) > 0
}

// Patch describes a partial update. Nil fields are left unchanged.
type Patch struct {
	Stage            *Stage
	AnalysisResult   map[string]any
	Files            []FileSummary
	AppendFeedback   *FeedbackEntry
	Verdict          map[string]any
	VerdictEncrypted *string
	EncryptedAt      *time.Time
	ClearVerdict     bool
}

// ClearStats reports what ClearAll removed.
type ClearStats struct {
	Cases     int
	Workflows int
}

// TaskStatus is the lifecycle of a background task.
type TaskStatus string

const (
	TaskPending TaskStatus = "pending"
	TaskRunning TaskStatus = "running"
	TaskDone    TaskStatus = "done"
	TaskFailed  TaskStatus = "failed"
)

// Task is an observable handle for background work.
type Task struct {
	ID        string         `json:"id"`
	Kind      string         `json:"kind"`
	Status    TaskStatus     `json:"status"`
	Params    map[string]any `json:"params,omitempty"`
	Result    map[string]any `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// apply merges p into rec. ClearVerdict runs before verdict fields are set.
func apply(rec *Record, p Patch, now time.Time) {
	if p.ClearVerdict {
		rec.Verdict = nil
		rec.VerdictEncrypted = ""
		rec.EncryptedAt = nil
	}
	if p.Stage != nil {
		rec.Stage = *p.Stage
	}
	if p.AnalysisResult != nil {
		rec.AnalysisResult = cloneMap(p.AnalysisResult)
	}
	if p.Files != nil {
		rec.Files = append([]FileSummary(nil), p.Files...)
	}
	if p.AppendFeedback != nil {
		rec.ReviewFeedback = append(rec.ReviewFeedback, cloneFeedback(*p.AppendFeedback))
	}
	if p.Verdict != nil {
		rec.Verdict = cloneMap(p.Verdict)
	}
	if p.VerdictEncrypted != nil {
		rec.VerdictEncrypted = *p.VerdictEncrypted
	}
	if p.EncryptedAt != nil {
		at := *p.EncryptedAt
		rec.EncryptedAt = &at
	}
	rec.UpdatedAt = now
}
