package agents

import (
	"context"
	"strings"
)

// UnknownCaseID is used when a synthesis request carries no usable case id.
const UnknownCaseID = "unknown"

// SynthesisRequest is the synthesizer's input with every field defaulted.
type SynthesisRequest struct {
	CaseID      string         `json:"case_id"`
	KeyFacts    []string       `json:"key_facts"`
	Entities    map[string]any `json:"entities"`
	LegalIssues []any          `json:"legal_issues"`
	Timeline    []any          `json:"timeline"`
	CaseSummary string         `json:"case_summary"`
}

// NormalizeSynthesisRequest builds a request from loosely typed JSON. Missing
// or mistyped fields become empty values; legal_issues_identified is accepted
// when legal_issues is empty.
func NormalizeSynthesisRequest(raw map[string]any) SynthesisRequest {
	req := SynthesisRequest{
		CaseID:      UnknownCaseID,
		KeyFacts:    []string{},
		Entities:    map[string]any{},
		LegalIssues: []any{},
		Timeline:    []any{},
	}
	if raw == nil {
		return req
	}
	if id, ok := raw["case_id"].(string); ok && strings.TrimSpace(id) != "" {
		req.CaseID = strings.TrimSpace(id)
	}
	if facts, ok := raw["key_facts"].([]any); ok {
		for _, f := range facts {
			if s, ok := f.(string); ok {
				req.KeyFacts = append(req.KeyFacts, s)
			}
		}
	}
	if entities, ok := raw["entities"].(map[string]any); ok {
		req.Entities = entities
	}
	if issues := asList(raw["legal_issues"]); len(issues) > 0 {
		req.LegalIssues = issues
	} else if legacy := asList(raw["legal_issues_identified"]); len(legacy) > 0 {
		req.LegalIssues = legacy
	}
	if timeline := asList(raw["timeline"]); len(timeline) > 0 {
		req.Timeline = timeline
	}
	if summary, ok := raw["case_summary"].(string); ok {
		req.CaseSummary = summary
	}
	return req
}

func asList(v any) []any {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	return list
}

// FillFrom copies fields that are empty in r from a stored analysis.
func (r SynthesisRequest) FillFrom(analysis map[string]any) SynthesisRequest {
	if analysis == nil {
		return r
	}
	base := NormalizeSynthesisRequest(analysis)
	if len(r.KeyFacts) == 0 {
		r.KeyFacts = base.KeyFacts
	}
	if len(r.Entities) == 0 {
		r.Entities = base.Entities
	}
	if len(r.LegalIssues) == 0 {
		r.LegalIssues = base.LegalIssues
	}
	if len(r.Timeline) == 0 {
		r.Timeline = base.Timeline
	}
	if r.CaseSummary == "" {
		r.CaseSummary = base.CaseSummary
	}
	return r
}

// Synthesize asks the synthesizer for a verdict.
func (c *Client) Synthesize(ctx context.Context, req SynthesisRequest) (map[string]any, error) {
	return c.postJSON(ctx, c.Synthesizer, "/synthesize", req, true)
}
