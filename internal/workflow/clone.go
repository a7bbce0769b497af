package workflow

// cloneValue deep-copies the JSON-shaped values agents return.
func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneFeedback(e FeedbackEntry) FeedbackEntry {
	e.Items = append([]FeedbackItem(nil), e.Items...)
	e.AgentAck = cloneMap(e.AgentAck)
	return e
}

func cloneRecord(r Record) Record {
	out := r
	out.AnalysisResult = cloneMap(r.AnalysisResult)
	out.Verdict = cloneMap(r.Verdict)
	if r.ReviewFeedback != nil {
		out.ReviewFeedback = make([]FeedbackEntry, len(r.ReviewFeedback))
		for i, e := range r.ReviewFeedback {
			out.ReviewFeedback[i] = cloneFeedback(e)
		}
	}
	if r.Files != nil {
		out.Files = append([]FileSummary(nil), r.Files...)
	}
	if r.EncryptedAt != nil {
		at := *r.EncryptedAt
		out.EncryptedAt = &at
	}
	return out
}

func cloneTask(t Task) Task {
	out := t
	out.Params = cloneMap(t.Params)
	out.Result = cloneMap(t.Result)
	return out
}
