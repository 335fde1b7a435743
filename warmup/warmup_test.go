package warmup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databricks-labs/gatewaydb/internal/fakedriver"
)

func TestEnsurePingsOnceThenStaysWarm(t *testing.T) {
	fd := fakedriver.New()
	g := New(fd, "SELECT 1", time.Minute, time.Second)

	require.NoError(t, g.Ensure(context.Background()))
	require.NoError(t, g.Ensure(context.Background()))

	assert.Equal(t, 1, fd.PingCalls())
}

func TestEnsureBacksOffAfterFailure(t *testing.T) {
	fd := fakedriver.New()
	fd.PingErr = assertErr{}
	g := New(fd, "SELECT 1", time.Minute, time.Hour)

	err1 := g.Ensure(context.Background())
	require.Error(t, err1)

	err2 := g.Ensure(context.Background())
	require.Error(t, err2)
	assert.Equal(t, 1, fd.PingCalls()) // second call was skipped by backoff
}

type assertErr struct{}

func (assertErr) Error() string { return "ping failed" }
