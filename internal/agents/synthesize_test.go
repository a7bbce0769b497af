package agents

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeSynthesisRequest(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		raw  map[string]any
		want SynthesisRequest
	}{
		{
			name: "nil body",
			raw:  nil,
			want: SynthesisRequest{CaseID: "unknown", KeyFacts: []string{}, Entities: map[string]any{}, LegalIssues: []any{}, Timeline: []any{}},
		},
		{
			name: "blank and mistyped fields",
			raw: map[string]any{
				"case_id":   "   ",
				"key_facts": []any{"fact", 3.0, nil},
				"entities":  "nope",
				"timeline":  "nope",
			},
			want: SynthesisRequest{CaseID: "unknown", KeyFacts: []string{"fact"}, Entities: map[string]any{}, LegalIssues: []any{}, Timeline: []any{}},
		},
		{
			name: "legacy legal issues alias",
			raw: map[string]any{
				"case_id":                 "case_42",
				"legal_issues":            []any{},
				"legal_issues_identified": []any{"negligence"},
				"case_summary":            "summary",
			},
			want: SynthesisRequest{CaseID: "case_42", KeyFacts: []string{}, Entities: map[string]any{}, LegalIssues: []any{"negligence"}, Timeline: []any{}, CaseSummary: "summary"},
		},
		{
			name: "primary legal issues win",
			raw: map[string]any{
				"case_id":                 "case_42",
				"legal_issues":            []any{map[string]any{"issue": "duty of care"}},
				"legal_issues_identified": []any{"negligence"},
				"timeline":                []any{map[string]any{"date": "2024-01-01"}},
			},
			want: SynthesisRequest{
				CaseID:      "case_42",
				KeyFacts:    []string{},
				Entities:    map[string]any{},
				LegalIssues: []any{map[string]any{"issue": "duty of care"}},
				Timeline:    []any{map[string]any{"date": "2024-01-01"}},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if diff := cmp.Diff(tt.want, NormalizeSynthesisRequest(tt.raw)); diff != "" {
				t.Fatalf("unexpected request (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFillFromStoredAnalysis(t *testing.T) {
	t.Parallel()
	req := NormalizeSynthesisRequest(map[string]any{
		"case_id":   "case_42",
		"key_facts": []any{"light was red"},
	})
	analysis := map[string]any{
		"case_summary":            "collision at junction",
		"key_facts":               []any{"ignored"},
		"legal_issues_identified": []any{"negligence"},
		"entities":                map[string]any{"persons": []any{"A"}},
	}

	got := req.FillFrom(analysis)
	if diff := cmp.Diff([]string{"light was red"}, got.KeyFacts); diff != "" {
		t.Fatalf("expected request facts to win (-want +got):\n%s", diff)
	}
	if got.CaseSummary != "collision at junction" {
		t.Fatalf("expected summary from analysis, got %q", got.CaseSummary)
	}
	if diff := cmp.Diff([]any{"negligence"}, got.LegalIssues); diff != "" {
		t.Fatalf("unexpected legal issues (-want +got):\n%s", diff)
	}
	if got.CaseID != "case_42" {
		t.Fatalf("expected case id to stay, got %q", got.CaseID)
	}
}

func TestSynthesizeSendsNormalizedBody(t *testing.T) {
	t.Parallel()
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"verdict":"liable"}`))
	}))
	defer srv.Close()

	out, err := newClient("", "", srv.URL).Synthesize(context.Background(), NormalizeSynthesisRequest(map[string]any{"case_id": "case_42"}))
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if out["verdict"] != "liable" {
		t.Fatalf("unexpected verdict %v", out)
	}
	want := map[string]any{
		"case_id":      "case_42",
		"key_facts":    []any{},
		"entities":     map[string]any{},
		"legal_issues": []any{},
		"timeline":     []any{},
		"case_summary": "",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected body (-want +got):\n%s", diff)
	}
}
