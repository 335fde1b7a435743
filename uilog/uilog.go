// Package uilog implements the per-session UI log capture of spec.md §2
// (L8 "UI log capture") and the design note in SPEC_FULL.md §9: a bounded
// ring buffer per UI session, attached to the request logger as an
// additional zapcore.Core via zapcore.NewTee, so every structured log line
// a request emits is mirrored into that session's buffer alongside the
// main sink. Grounded on the teacher's multi-sink logger composition in
// logger/zap/zap.go (there used for per-subsystem file sinks; here for a
// per-session in-memory sink).
package uilog

import (
	"container/ring"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// Line is one captured log entry, formatted for UI display.
type Line struct {
	Time    time.Time
	Level   string
	Message string
	Fields  map[string]any
}

// Registry owns one ring buffer per UI session, guarded by a single mutex
// (spec.md §5: "UI-log registry: protected by per-component mutexes").
type Registry struct {
	mu       sync.Mutex
	capacity int
	buffers  map[string]*ring.Ring
}

// New builds a Registry whose per-session buffers hold at most capacity
// lines each.
func New(capacity int) *Registry {
	if capacity <= 0 {
		capacity = 200
	}
	return &Registry{capacity: capacity, buffers: make(map[string]*ring.Ring)}
}

// CoreFor returns a zapcore.Core that appends every entry it receives to
// sessionID's ring buffer. Pair it with the base core via zapcore.NewTee
// to mirror request logging into the session's buffer without changing
// where the primary log line goes.
func (r *Registry) CoreFor(sessionID string, enabler zapcore.LevelEnabler) zapcore.Core {
	return &sessionCore{registry: r, sessionID: sessionID, LevelEnabler: enabler}
}

func (r *Registry) append(sessionID string, line Line) {
	if sessionID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.buffers[sessionID]
	if !ok {
		buf = ring.New(r.capacity)
	}
	buf.Value = line
	r.buffers[sessionID] = buf.Next()
}

// Snapshot returns sessionID's buffered lines, oldest first. Empty if the
// session has never logged anything.
func (r *Registry) Snapshot(sessionID string) []Line {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.buffers[sessionID]
	if !ok {
		return nil
	}

	lines := make([]Line, 0, buf.Len())
	buf.Do(func(v any) {
		if v == nil {
			return
		}
		lines = append(lines, v.(Line))
	})
	return lines
}

// Clear drops sessionID's buffer entirely.
func (r *Registry) Clear(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.buffers, sessionID)
}

// SessionCount reports how many distinct sessions currently have a buffer,
// for tests and diagnostics.
func (r *Registry) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buffers)
}

// sessionCore is the zapcore.Core half of CoreFor: every Write appends a
// formatted Line to the owning Registry under sessionID.
type sessionCore struct {
	zapcore.LevelEnabler
	registry  *Registry
	sessionID string
	fields    []zapcore.Field
}

func (c *sessionCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &sessionCore{LevelEnabler: c.LevelEnabler, registry: c.registry, sessionID: c.sessionID, fields: merged}
}

func (c *sessionCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *sessionCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)

	enc := zapcore.NewMapObjectEncoder()
	for _, f := range all {
		f.AddTo(enc)
	}

	c.registry.append(c.sessionID, Line{
		Time:    ent.Time,
		Level:   ent.Level.String(),
		Message: ent.Message,
		Fields:  enc.Fields,
	})
	return nil
}

func (c *sessionCore) Sync() error { return nil }
