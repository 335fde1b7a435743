package uilog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestCoreForCapturesLines(t *testing.T) {
	r := New(10)
	core := r.CoreFor("sess-1", zapcore.DebugLevel)
	log := zap.New(core)

	log.Info("hello", zap.String("k", "v"))
	log.Warn("world")

	lines := r.Snapshot("sess-1")
	require.Len(t, lines, 2)
	assert.Equal(t, "hello", lines[0].Message)
	assert.Equal(t, "v", lines[0].Fields["k"])
	assert.Equal(t, "world", lines[1].Message)
}

func TestSnapshotUnknownSessionIsEmpty(t *testing.T) {
	r := New(10)
	assert.Nil(t, r.Snapshot("nope"))
}

func TestRingWrapsAtCapacity(t *testing.T) {
	r := New(2)
	core := r.CoreFor("sess-2", zapcore.DebugLevel)
	log := zap.New(core)

	log.Info("one")
	log.Info("two")
	log.Info("three")

	lines := r.Snapshot("sess-2")
	require.Len(t, lines, 2)
	assert.Equal(t, "two", lines[0].Message)
	assert.Equal(t, "three", lines[1].Message)
}

func TestClearDropsSession(t *testing.T) {
	r := New(10)
	core := r.CoreFor("sess-3", zapcore.DebugLevel)
	zap.New(core).Info("hi")
	assert.Equal(t, 1, r.SessionCount())

	r.Clear("sess-3")
	assert.Equal(t, 0, r.SessionCount())
	assert.Nil(t, r.Snapshot("sess-3"))
}

func TestWithAttachesFieldsToLaterWrites(t *testing.T) {
	r := New(10)
	core := r.CoreFor("sess-4", zapcore.DebugLevel)
	log := zap.New(core).With(zap.String("component", "test"))

	log.Info("msg")
	lines := r.Snapshot("sess-4")
	require.Len(t, lines, 1)
	assert.Equal(t, "test", lines[0].Fields["component"])
}
