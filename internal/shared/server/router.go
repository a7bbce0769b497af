package server

import (
	"github.com/gin-gonic/gin"

	"justice-backend/internal/benchmark"
	"justice-backend/internal/cases"
	"justice-backend/internal/events"
	"justice-backend/internal/services/health"
	"justice-backend/internal/shared/config"
	"justice-backend/internal/shared/metrics"
	"justice-backend/internal/shared/server/middleware"
)

// RouterDeps carries the handlers the router mounts. Nil handlers are skipped.
type RouterDeps struct {
	Config           config.Config
	CaseHandler      *cases.Handler
	HealthHandler    *health.Handler
	BenchmarkHandler *benchmark.Handler
	EventsHandler    *events.Handler
	RateLimiter      *middleware.RateLimiter
}

var defaultRateLimits = map[string]middleware.RateLimitRule{
	"DEFAULT":                      {Rate: 20, Burst: 40},
	middleware.AgentRateLimitGroup: {Rate: 2, Burst: 10},
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.Env == "production" || deps.Config.Env == "staging" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
	)

	r.GET("/metrics", metrics.Handler())
	if deps.EventsHandler != nil {
		deps.EventsHandler.RegisterRoutes(r)
	}

	api := r.Group("/api")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{
		Rules:    defaultRateLimits,
		GroupFor: middleware.AgentRouteGroup,
		Limiter:  deps.RateLimiter,
	}))
	if deps.HealthHandler != nil {
		deps.HealthHandler.RegisterRoutes(api)
	}
	if deps.CaseHandler != nil {
		deps.CaseHandler.RegisterRoutes(api)
	}
	if deps.BenchmarkHandler != nil {
		deps.BenchmarkHandler.RegisterRoutes(api)
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
