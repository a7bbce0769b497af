package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry = prometheus.NewRegistry()

	workflowTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workflow_transitions_total",
		Help: "Workflow transitions by step and outcome.",
	}, []string{"step", "status"})

	agentCallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "agent_call_duration_seconds",
		Help:    "Latency of calls to the external agents.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"agent", "outcome"})

	eventsSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "events_subscribers",
		Help: "Connected event subscribers.",
	})
)

func init() {
	registry.MustRegister(
		workflowTransitions,
		agentCallDuration,
		eventsSubscribers,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IncTransition counts a workflow transition attempt.
func IncTransition(step, status string) {
	workflowTransitions.WithLabelValues(step, status).Inc()
}

// ObserveAgentCall records an agent call latency.
func ObserveAgentCall(agent, outcome string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	agentCallDuration.WithLabelValues(agent, outcome).Observe(d.Seconds())
}

// SetSubscribers reports the current subscriber count.
func SetSubscribers(n int) {
	eventsSubscribers.Set(float64(n))
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
