// Package agents proxies calls to the three external AI agents.
package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"justice-backend/internal/shared/metrics"
	"justice-backend/internal/shared/storage/object"
)

const (
	DefaultMaxUploadBytes = 50 << 20
	DefaultProbeTimeout   = 3 * time.Second

	maxResponseBytes = 16 << 20
)

// Endpoint is one agent's base URL and per-call timeout.
type Endpoint struct {
	Name    string
	BaseURL string
	Timeout time.Duration
}

func (e Endpoint) url(path string) string {
	return strings.TrimRight(e.BaseURL, "/") + path
}

// Client is a stateless gateway to the analyzer, reviewer and synthesizer.
// Store is optional; when set, uploaded files are retained there.
type Client struct {
	Analyzer       Endpoint
	Reviewer       Endpoint
	Synthesizer    Endpoint
	Store          object.ObjectStore
	StorageMethod  string
	MaxUploadBytes int64
	ProbeTimeout   time.Duration
	Transport      http.RoundTripper
	now            func() time.Time
}

// Endpoints returns the agents in pipeline order.
func (c *Client) Endpoints() []Endpoint {
	return []Endpoint{c.Analyzer, c.Reviewer, c.Synthesizer}
}

func (c *Client) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now().UTC()
}

func (c *Client) httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout, Transport: c.Transport}
}

func (c *Client) postJSON(ctx context.Context, ep Endpoint, path string, payload any, needBody bool) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", ep.Name, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.url(path), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(ep, req, needBody)
}

// do sends req and decodes a JSON object response. Transport failures and
// timeouts are unavailable errors. Non-2xx statuses, bodies that are not a
// JSON object and, when needBody is set, blank bodies are rejections.
func (c *Client) do(ep Endpoint, req *http.Request, needBody bool) (map[string]any, error) {
	start := time.Now()
	resp, err := c.httpClient(ep.Timeout).Do(req)
	if err != nil {
		metrics.ObserveAgentCall(ep.Name, "unavailable", time.Since(start))
		return nil, &Error{Kind: KindUnavailable, Agent: ep.Name, URL: ep.BaseURL, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		metrics.ObserveAgentCall(ep.Name, "unavailable", time.Since(start))
		return nil, &Error{Kind: KindUnavailable, Agent: ep.Name, URL: ep.BaseURL, Err: fmt.Errorf("read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.ObserveAgentCall(ep.Name, "rejected", time.Since(start))
		return nil, &Error{Kind: KindRejected, Agent: ep.Name, URL: ep.BaseURL, Status: resp.StatusCode, Body: string(raw)}
	}

	out := map[string]any{}
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 && needBody {
		return nil, c.rejected(ep, resp.StatusCode, raw, start, errors.New("empty response body"))
	}
	if len(trimmed) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, c.rejected(ep, resp.StatusCode, raw, start, fmt.Errorf("decode response: %w", err))
		}
		// A JSON null decodes into a nil map without error.
		if out == nil {
			return nil, c.rejected(ep, resp.StatusCode, raw, start, errors.New("response is not a JSON object"))
		}
	}
	metrics.ObserveAgentCall(ep.Name, "ok", time.Since(start))
	return out, nil
}

func (c *Client) rejected(ep Endpoint, status int, raw []byte, start time.Time, err error) error {
	metrics.ObserveAgentCall(ep.Name, "rejected", time.Since(start))
	return &Error{
		Kind:   KindRejected,
		Agent:  ep.Name,
		URL:    ep.BaseURL,
		Status: status,
		Body:   string(raw),
		Err:    err,
	}
}

// Probe checks an agent's /health endpoint within the probe timeout.
func (c *Client) Probe(ctx context.Context, ep Endpoint) (time.Duration, error) {
	timeout := c.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ep.url("/health"), nil)
	if err != nil {
		return 0, err
	}
	start := time.Now()
	resp, err := c.httpClient(timeout).Do(req)
	elapsed := time.Since(start)
	if err != nil {
		return elapsed, &Error{Kind: KindUnavailable, Agent: ep.Name, URL: ep.BaseURL, Err: err}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return elapsed, &Error{Kind: KindRejected, Agent: ep.Name, URL: ep.BaseURL, Status: resp.StatusCode}
	}
	return elapsed, nil
}

// IsAgentError reports whether err came from an agent call.
func IsAgentError(err error) bool {
	var agentErr *Error
	return errors.As(err, &agentErr)
}
