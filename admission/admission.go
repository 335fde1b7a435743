// Package admission implements the two admission-control mechanisms of
// spec.md §4.5: a non-blocking bounded concurrency gate, and a circuit
// breaker wrapping calls to the driver so a failing warehouse sheds load
// instead of queuing requests behind it. Grounded on the teacher's
// dependency on sony/gobreaker (kept from the teacher's go.mod verbatim)
// plus a hand-rolled semaphore, since nothing in the pack exposes a
// try-acquire (non-blocking) weighted semaphore — golang.org/x/sync/semaphore
// only offers a blocking Acquire/context-cancellable Acquire, not a TryAcquire
// with immediate rejection semantics.
package admission

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/logger"
	"github.com/databricks-labs/gatewaydb/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// Gate is a non-blocking bounded admission semaphore, optionally paired
// with a sustained-rate cap. Capacity slots are acquired with TryAcquire;
// a full gate (or an exhausted rate budget) rejects immediately rather
// than queuing, per spec.md §4.5 ("reject immediately rather than queue").
// The concurrency cap is the spec's primary mechanism; the optional token
// bucket additionally smooths bursts that stay under the concurrency cap
// but would otherwise open driver connections faster than the warehouse
// can realistically service them.
type Gate struct {
	slots   chan struct{}
	limiter *rate.Limiter // nil when no sustained-rate cap was configured
}

// NewGate builds a Gate with the given concurrency capacity and no
// sustained-rate cap.
func NewGate(capacity int) *Gate {
	return &Gate{slots: make(chan struct{}, capacity)}
}

// NewGateWithRate builds a Gate that additionally rejects admission once
// more than burst requests have been admitted in any 1-second window
// beyond the steady qps rate.
func NewGateWithRate(capacity int, qps float64, burst int) *Gate {
	return &Gate{slots: make(chan struct{}, capacity), limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

// TryAcquire attempts to take a slot without blocking. ok is false if the
// gate is at capacity or the rate budget is exhausted; release must be
// called exactly once when ok is true.
func (g *Gate) TryAcquire() (release func(), ok bool) {
	if g.limiter != nil && !g.limiter.Allow() {
		metrics.AdmissionRejections.Inc()
		return nil, false
	}
	select {
	case g.slots <- struct{}{}:
		return func() { <-g.slots }, true
	default:
		metrics.AdmissionRejections.Inc()
		return nil, false
	}
}

// InUse reports the number of slots currently held.
func (g *Gate) InUse() int {
	return len(g.slots)
}

// Breaker wraps driver calls in a circuit breaker so a string of failures
// trips the circuit and fails fast instead of piling up timeouts against a
// degraded warehouse (spec.md §4.5 "circuit breaker around the driver").
type Breaker struct {
	cb *gobreaker.CircuitBreaker
}

// NewBreaker builds a Breaker. name is the breaker's identity in logs;
// maxFailures/interval/timeout follow gobreaker's settings semantics:
// the circuit opens after maxFailures consecutive failures within interval
// and stays open for timeout before probing a half-open trial.
func NewBreaker(name string, maxFailures uint32, interval, timeout time.Duration) *Breaker {
	settings := gobreaker.Settings{
		Name:     name,
		Interval: interval,
		Timeout:  timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Pool.Warn("circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
			if to == gobreaker.StateOpen {
				metrics.CircuitBreakerTrips.Inc()
			}
		},
	}
	return &Breaker{cb: gobreaker.NewCircuitBreaker(settings)}
}

// Execute runs fn through the circuit breaker. An open circuit returns
// errs.KindAdmission without invoking fn.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	result, err := b.cb.Execute(func() (any, error) {
		return fn(ctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, errs.Wrap(errs.KindAdmission, err, "circuit breaker rejected request")
		}
		return nil, err
	}
	return result, nil
}

// State returns the breaker's current state name, for diagnostics.
func (b *Breaker) State() string {
	return b.cb.State().String()
}
