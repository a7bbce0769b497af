// Package health reports liveness and agent reachability.
package health

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"justice-backend/internal/agents"
	"justice-backend/internal/shared/server/respond"
	"justice-backend/internal/shared/telemetry"
)

// Prober checks one agent.
type Prober interface {
	Endpoints() []agents.Endpoint
	Probe(ctx context.Context, ep agents.Endpoint) (time.Duration, error)
}

// OfflineStatus is the result of probing every agent.
type OfflineStatus struct {
	Agents      map[string]bool `json:"agents"`
	OfflineMode bool            `json:"offlineMode"`
	CheckedAt   time.Time       `json:"checkedAt"`
}

// Service encapsulates health-related checks.
type Service struct {
	Agents Prober
	now    func() time.Time
}

// NewService constructs a new health service.
func NewService(prober Prober) *Service {
	return &Service{Agents: prober, now: func() time.Time { return time.Now().UTC() }}
}

// Status returns a simple health payload.
func (s *Service) Status() map[string]bool {
	return map[string]bool{"ok": true}
}

// Offline probes all agents in parallel. Each probe is bounded by the
// gateway's probe timeout, so the call takes about one timeout at worst.
// Offline mode means no agent answered.
func (s *Service) Offline(ctx context.Context) OfflineStatus {
	endpoints := s.Agents.Endpoints()
	up := make([]bool, len(endpoints))

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range endpoints {
		g.Go(func() error {
			elapsed, err := s.Agents.Probe(gctx, ep)
			if err != nil {
				telemetry.Debug("agent.probe_failed", map[string]any{
					"agent": ep.Name,
					"url":   ep.BaseURL,
					"error": err.Error(),
				})
				return nil
			}
			up[i] = true
			telemetry.Debug("agent.probe_ok", map[string]any{
				"agent":      ep.Name,
				"latency_ms": elapsed.Milliseconds(),
			})
			return nil
		})
	}
	_ = g.Wait()

	status := OfflineStatus{
		Agents:      make(map[string]bool, len(endpoints)),
		OfflineMode: true,
		CheckedAt:   s.now(),
	}
	for i, ep := range endpoints {
		status.Agents[ep.Name] = up[i]
		if up[i] {
			status.OfflineMode = false
		}
	}
	return status
}

// Handler exposes health routes.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches health routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", func(c *gin.Context) {
		respond.OK(c, h.Svc.Status())
	})
	rg.GET("/offline/status", func(c *gin.Context) {
		respond.OK(c, h.Svc.Offline(c.Request.Context()))
	})
}
