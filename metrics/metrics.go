// Package metrics registers the Prometheus collectors the lifecycle's
// OBSERVE phase (spec.md §4.1 phase 9) and the admission/throttle/warmup
// components report into. Grounded on the teacher's metrics/metrics.go
// (namespace/subsystem constants, CounterVec/HistogramVec/Gauge wiring,
// batched registration via multierr.Combine), narrowed to this gateway's
// own signal set.
package metrics

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
)

const (
	Namespace = "gatewaydb"
	Subsystem = "gateway"
)

var (
	RequestsTotal         *prometheus.CounterVec
	PhaseDuration         *prometheus.HistogramVec
	AdmissionRejections   prometheus.Counter
	ThrottleRejections    prometheus.Counter
	WarmupAttemptsTotal   *prometheus.CounterVec
	RateLimiterSessions   prometheus.Gauge
	SchemaCacheHits       *prometheus.CounterVec
	SchemaCacheMisses     *prometheus.CounterVec
	ConnectionsLeased     *prometheus.CounterVec
	CircuitBreakerTrips   prometheus.Counter
)

// init builds every collector when the package loads, so components that
// report into them work before Init has registered them (e.g. in unit
// tests).
func init() {
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "requests_total",
		Help:      "Total number of OperationRequests processed, by operation/mode/success.",
	}, []string{"operation", "mode", "success"})

	PhaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "phase_duration_seconds",
		Help:      "Lifecycle phase duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"phase"})

	AdmissionRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "admission_rejections_total",
		Help:      "Requests rejected because the admission gate was full.",
	})

	ThrottleRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "throttle_rejections_total",
		Help:      "Requests rejected by the per-session rate limiter.",
	})

	WarmupAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "warmup_attempts_total",
		Help:      "Warmup gate attempts, by result.",
	}, []string{"result"})

	RateLimiterSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "rate_limiter_sessions",
		Help:      "Number of sessions currently tracked by the rate limiter.",
	})

	SchemaCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "schema_cache_hits_total",
		Help:      "Schema cache hits, by tier (memory/file).",
	}, []string{"tier"})

	SchemaCacheMisses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "schema_cache_misses_total",
		Help:      "Schema cache misses that fell through to a live fetch.",
	}, []string{"tier"})

	ConnectionsLeased = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "connections_leased_total",
		Help:      "Connections leased from the pool, by identity kind and reuse outcome.",
	}, []string{"identity", "reused"})

	CircuitBreakerTrips = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: Subsystem,
		Name:      "circuit_breaker_trips_total",
		Help:      "Number of times the driver circuit breaker opened.",
	})
}

// Init registers all collectors with the default Prometheus registry. Safe
// to call once per process; re-registration errors from repeated calls
// (e.g. in tests) are combined via multierr the same way the teacher's Init
// batches registration errors.
func Init() error {
	var errs []error
	for _, c := range []prometheus.Collector{
		RequestsTotal, PhaseDuration, AdmissionRejections, ThrottleRejections,
		WarmupAttemptsTotal, RateLimiterSessions, SchemaCacheHits, SchemaCacheMisses,
		ConnectionsLeased, CircuitBreakerTrips,
	} {
		errs = append(errs, prometheus.Register(c))
	}
	errs = append(errs, prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: Namespace})))

	return errors.WithStack(multierr.Combine(errs...))
}
