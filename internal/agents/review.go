package agents

import (
	"context"
	"net/url"
	"strings"
	"time"

	"justice-backend/internal/workflow"
)

const defaultApprovalStatus = "pending"

// Feedback is a reviewer submission forwarded to the review agent.
type Feedback struct {
	Items          []workflow.FeedbackItem
	Notes          string
	ApprovalStatus string
	Timestamp      time.Time
}

type feedbackPayload struct {
	CaseID         string                  `json:"case_id"`
	FeedbackItems  []workflow.FeedbackItem `json:"feedback_items"`
	ReviewerNotes  string                  `json:"reviewer_notes"`
	ApprovalStatus string                  `json:"approval_status"`
	Timestamp      string                  `json:"timestamp"`
}

// SubmitForReview sends a draft document to the reviewer.
func (c *Client) SubmitForReview(ctx context.Context, caseID string, document map[string]any) (map[string]any, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, ErrMissingCaseID
	}
	if document == nil {
		document = map[string]any{}
	}
	path := "/documents/submit?case_id=" + url.QueryEscape(caseID)
	return c.postJSON(ctx, c.Reviewer, path, document, false)
}

// RecordFeedback forwards reviewer feedback and returns the agent's ack.
func (c *Client) RecordFeedback(ctx context.Context, caseID string, fb Feedback) (map[string]any, error) {
	caseID = strings.TrimSpace(caseID)
	if caseID == "" {
		return nil, ErrMissingCaseID
	}
	status := strings.TrimSpace(fb.ApprovalStatus)
	if status == "" {
		status = defaultApprovalStatus
	}
	ts := fb.Timestamp
	if ts.IsZero() {
		ts = c.clock()
	}
	items := fb.Items
	if items == nil {
		items = []workflow.FeedbackItem{}
	}
	payload := feedbackPayload{
		CaseID:         caseID,
		FeedbackItems:  items,
		ReviewerNotes:  fb.Notes,
		ApprovalStatus: status,
		Timestamp:      ts.UTC().Format(time.RFC3339),
	}
	return c.postJSON(ctx, c.Reviewer, "/documents/"+url.PathEscape(caseID)+"/feedback", payload, false)
}
