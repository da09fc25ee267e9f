package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus instruments shared across the application.
type Metrics struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	ledgerOps         *prometheus.CounterVec
	invitations       *prometheus.CounterVec
	edgeRepairs       prometheus.Counter
	propagationRuns   *prometheus.CounterVec
	propagationIters  prometheus.Histogram
	propagationLength prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		httpRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouchnet_http_requests_total",
			Help: "HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vouchnet_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		ledgerOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouchnet_trust_ledger_operations_total",
			Help: "Trust ledger operations by kind and outcome.",
		}, []string{"op", "outcome"}),
		invitations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouchnet_invitations_total",
			Help: "Invitation lifecycle transitions.",
		}, []string{"event"}),
		edgeRepairs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "vouchnet_relationship_edge_repairs_total",
			Help: "Duplicate relationship edges reconciled. Should stay at zero.",
		}),
		propagationRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "vouchnet_trust_propagation_runs_total",
			Help: "Trust propagation runs by outcome.",
		}, []string{"outcome"}),
		propagationIters: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouchnet_trust_propagation_iterations",
			Help:    "Iterations executed per propagation run.",
			Buckets: prometheus.LinearBuckets(5, 10, 10),
		}),
		propagationLength: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "vouchnet_trust_propagation_duration_seconds",
			Help:    "Wall-clock duration of propagation runs.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

func (m *Metrics) RecordLedgerOp(op, outcome string) {
	if m == nil {
		return
	}
	m.ledgerOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) RecordInvitation(event string) {
	if m == nil {
		return
	}
	m.invitations.WithLabelValues(event).Inc()
}

func (m *Metrics) RecordEdgeRepair() {
	if m == nil {
		return
	}
	m.edgeRepairs.Inc()
}

func (m *Metrics) RecordPropagationRun(outcome string, iterations int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.propagationRuns.WithLabelValues(outcome).Inc()
	m.propagationIters.Observe(float64(iterations))
	m.propagationLength.Observe(elapsed.Seconds())
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
