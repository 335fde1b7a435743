package manager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databricks-labs/gatewaydb/admission"
	"github.com/databricks-labs/gatewaydb/handler"
	"github.com/databricks-labs/gatewaydb/internal/fakedriver"
	"github.com/databricks-labs/gatewaydb/lifecycle"
	"github.com/databricks-labs/gatewaydb/pool"
	"github.com/databricks-labs/gatewaydb/ratelimit"
	"github.com/databricks-labs/gatewaydb/router"
	"github.com/databricks-labs/gatewaydb/types"
)

func newTestManager(fd *fakedriver.Driver, r *router.Router) *Manager {
	p := pool.New(fd)
	orch := lifecycle.New(lifecycle.Deps{
		Pool:            p,
		Router:          r,
		RateLimiter:     ratelimit.New(100, time.Minute, time.Hour),
		Admission:       admission.NewGate(10),
		MaxBatchSize:    1000,
		MaxTxStatements: 50,
	})
	return New(orch)
}

func TestExecuteHeartbeatSucceeds(t *testing.T) {
	fd := fakedriver.New()
	r := router.New()
	r.Register(router.Key{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, &handler.Heartbeat{})
	m := newTestManager(fd, r)

	resp := m.Execute(context.Background(), types.OperationRequest{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, "", "", nil)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
}

func TestExecuteHeaderAccessTokenBecomesOBOIdentity(t *testing.T) {
	fd := fakedriver.New()
	r := router.New()
	r.Register(router.Key{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, &handler.Heartbeat{})
	m := newTestManager(fd, r)

	headers := map[string]string{"x-forwarded-access-token": "tok-123"}
	resp := m.Execute(context.Background(), types.OperationRequest{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, "", "", headers)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
}

func TestExecuteParameterTokenPrecedesHeaderToken(t *testing.T) {
	fd := fakedriver.New()
	r := router.New()
	r.Register(router.Key{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, &handler.Heartbeat{})
	m := newTestManager(fd, r)

	headers := map[string]string{"x-forwarded-access-token": "header-token"}
	resp := m.Execute(context.Background(), types.OperationRequest{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, "param-token", "", headers)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
}
