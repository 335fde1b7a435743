// Package warmup implements the cold-start ping gate of spec.md §4.6: the
// first request after a cold start (or after the TTL expires) pings the
// warehouse under the service principal before any handler runs, with
// concurrent callers coalesced onto a single in-flight ping via
// golang.org/x/sync/singleflight, and a failure backoff so a down warehouse
// doesn't get hammered by every incoming request. Grounded on the teacher's
// use of singleflight in its cache-stampede-prevention helpers, generalised
// here to gate cold starts instead of cache fills.
package warmup

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/logger"
	"github.com/databricks-labs/gatewaydb/metrics"
	"go.uber.org/zap"
)

// Gate tracks warmup state: whether a warmup ping has recently succeeded,
// and if it failed, when it's next eligible to retry.
type Gate struct {
	drv        driver.Driver
	pingSQL    string
	ttl        time.Duration
	backoff    time.Duration
	group      singleflight.Group

	mu          sync.Mutex
	lastSuccess time.Time
	nextRetry   time.Time
	now         func() time.Time
}

// New builds a Gate. ttl is how long a successful ping remains valid;
// backoff is the minimum delay before retrying after a failed ping.
func New(drv driver.Driver, pingSQL string, ttl, backoff time.Duration) *Gate {
	return &Gate{drv: drv, pingSQL: pingSQL, ttl: ttl, backoff: backoff, now: time.Now}
}

// Ensure warms the warehouse connection if needed. It always pings under
// the service-principal identity (spec.md §4.6: "must always run under a
// service-principal identity"), never the caller's OBO token.
func (g *Gate) Ensure(ctx context.Context) error {
	if g.isWarm() {
		return nil
	}
	if g.isBackingOff() {
		metrics.WarmupAttemptsTotal.WithLabelValues("skipped_backoff").Inc()
		return errs.New(errs.KindConnection, "warehouse warmup is backing off after a recent failure")
	}

	_, err, _ := g.group.Do("warmup", func() (any, error) {
		return nil, g.drv.Ping(ctx, g.pingSQL)
	})

	if err != nil {
		g.recordFailure()
		metrics.WarmupAttemptsTotal.WithLabelValues("failure").Inc()
		logger.Pool.Warn("warmup ping failed", zap.Error(err))
		return errs.Wrap(errs.KindConnection, err, "warehouse warmup ping failed")
	}

	g.recordSuccess()
	metrics.WarmupAttemptsTotal.WithLabelValues("success").Inc()
	return nil
}

func (g *Gate) isWarm() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.lastSuccess.IsZero() && g.now().Sub(g.lastSuccess) < g.ttl
}

func (g *Gate) isBackingOff() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return !g.nextRetry.IsZero() && g.now().Before(g.nextRetry)
}

func (g *Gate) recordSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSuccess = g.now()
	g.nextRetry = time.Time{}
}

func (g *Gate) recordFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastSuccess = time.Time{}
	g.nextRetry = g.now().Add(g.backoff)
}
