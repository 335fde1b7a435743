package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAdmitWithinWindow(t *testing.T) {
	l := New(2, time.Minute, time.Hour)
	assert.True(t, l.Admit("s1"))
	assert.True(t, l.Admit("s1"))
	assert.False(t, l.Admit("s1"))
}

func TestAdmitEmptySessionAlwaysAllowed(t *testing.T) {
	l := New(0, time.Minute, time.Hour)
	assert.True(t, l.Admit(""))
	assert.True(t, l.Admit(""))
}

func TestAdmitSlidesWindow(t *testing.T) {
	l := New(1, time.Minute, time.Hour)
	base := time.Now()
	i := 0
	l.now = func() time.Time {
		i++
		if i == 1 {
			return base
		}
		return base.Add(2 * time.Minute)
	}

	assert.True(t, l.Admit("s1"))
	assert.True(t, l.Admit("s1")) // window has slid past the first timestamp
}

func TestCleanupEvictsStaleSessions(t *testing.T) {
	l := New(5, time.Minute, time.Second)
	base := time.Now()
	l.now = func() time.Time { return base }
	l.Admit("s1")

	l.now = func() time.Time { return base.Add(time.Hour) }
	evicted := l.Cleanup()

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 0, l.SessionCount())
}
