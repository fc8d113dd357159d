package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the application.
type Metrics struct {
	AuthzDecisions    *prometheus.CounterVec
	AuthzCacheHits    prometheus.Counter
	AuditRecorded     prometheus.Counter
	AuditDropped      prometheus.Counter
	LoginAttempts     *prometheus.CounterVec
	RequestDurationMs *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		AuthzDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fleettrack_authz_decisions_total",
			Help: "Authorization decisions by outcome (allow, deny reason, unavailable)",
		}, []string{"outcome"}),
		AuthzCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_authz_cache_hits_total",
			Help: "Request-scoped decision cache hits",
		}),
		AuditRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_audit_entries_recorded_total",
			Help: "Audit entries accepted for persistence",
		}),
		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "fleettrack_audit_entries_dropped_total",
			Help: "Audit entries dropped due to persistence failure or full queue",
		}),
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "fleettrack_login_attempts_total",
			Help: "Login attempts by result (success, failure)",
		}, []string{"result"}),
		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fleettrack_http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds",
			Buckets: []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"method", "route", "status"}),
	}
}
