// Package ratelimit implements the per-session sliding-window admission
// check of spec.md §4.4: O(1) amortized admit, periodic stale-session
// eviction, all state mutation under a mutex.
package ratelimit

import (
	"sync"
	"time"

	"github.com/databricks-labs/gatewaydb/metrics"
)

// Limiter is a per-session sliding window over a FIFO deque of request
// timestamps. A nil/empty session id (e.g. heartbeats) is always admitted,
// per spec.md §4.4.
type Limiter struct {
	maxRequests int
	window      time.Duration
	maxIdle     time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

type session struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// New builds a Limiter. maxRequests/window are the sliding-window bounds;
// maxIdle is how long a session may sit without activity before Cleanup
// evicts it.
func New(maxRequests int, window, maxIdle time.Duration) *Limiter {
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		maxIdle:     maxIdle,
		sessions:    make(map[string]*session),
		now:         time.Now,
	}
}

// Admit reports whether a request for sessionID is allowed under the
// sliding window. A nil sessionID is always admitted.
func (l *Limiter) Admit(sessionID string) bool {
	if sessionID == "" {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	s, ok := l.sessions[sessionID]
	if !ok {
		s = &session{}
		l.sessions[sessionID] = s
		metrics.RateLimiterSessions.Set(float64(len(l.sessions)))
	}
	s.lastSeen = now

	cutoff := now.Add(-l.window)
	s.timestamps = dropBefore(s.timestamps, cutoff)

	if len(s.timestamps) >= l.maxRequests {
		metrics.ThrottleRejections.Inc()
		return false
	}

	s.timestamps = append(s.timestamps, now)
	return true
}

// dropBefore removes leading timestamps older than cutoff. timestamps is
// append-only and time-ordered, so this is a single forward scan — O(1)
// amortized per Admit call.
func dropBefore(timestamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(timestamps) && timestamps[i].Before(cutoff) {
		i++
	}
	return timestamps[i:]
}

// Cleanup evicts sessions with no activity within maxIdle. The lifecycle's
// OBSERVE phase calls this periodically, gated by cleanup_interval
// (spec.md §4.1 phase 9), rather than running it on its own timer — see
// DESIGN.md's note on why a cron-style scheduler was not wired in here.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	evicted := 0
	for id, s := range l.sessions {
		if now.Sub(s.lastSeen) > l.maxIdle {
			delete(l.sessions, id)
			evicted++
		}
	}
	metrics.RateLimiterSessions.Set(float64(len(l.sessions)))
	return evicted
}

// SessionCount returns the number of sessions currently tracked.
func (l *Limiter) SessionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}
