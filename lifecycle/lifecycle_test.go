package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databricks-labs/gatewaydb/admission"
	"github.com/databricks-labs/gatewaydb/handler"
	"github.com/databricks-labs/gatewaydb/internal/fakedriver"
	"github.com/databricks-labs/gatewaydb/pool"
	"github.com/databricks-labs/gatewaydb/ratelimit"
	"github.com/databricks-labs/gatewaydb/router"
	"github.com/databricks-labs/gatewaydb/types"
)

func newOrchestrator(fd *fakedriver.Driver, r *router.Router) *Orchestrator {
	p := pool.New(fd)
	return New(Deps{
		Pool:            p,
		Router:          r,
		RateLimiter:     ratelimit.New(100, time.Minute, time.Hour),
		Admission:       admission.NewGate(10),
		MaxBatchSize:    1000,
		MaxTxStatements: 50,
	})
}

func TestExecuteHeartbeatBypassesThrottleAndAdmission(t *testing.T) {
	fd := fakedriver.New()
	r := router.New()
	r.Register(router.Key{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, &handler.Heartbeat{})
	o := newOrchestrator(fd, r)

	resp := o.Execute(context.Background(), types.OperationRequest{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, nil, "", nil)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
}

func TestExecuteUnknownRouteIsRoutingFailure(t *testing.T) {
	fd := fakedriver.New()
	r := router.New()
	o := newOrchestrator(fd, r)

	resp := o.Execute(context.Background(), types.OperationRequest{Operation: types.OpRead, Mode: types.ModeSingle, Table: "main.s.t"}, nil, "", nil)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
	require.Len(t, resp.Errors, 1)
}

func TestExecuteBatchOverMaxIsValidationFailure(t *testing.T) {
	fd := fakedriver.New()
	r := router.New()
	r.Register(router.Key{Operation: types.OpInsert, Mode: types.ModeBatch}, &handler.WriteBatch{})
	o := newOrchestrator(fd, r)
	o.deps.MaxBatchSize = 1

	req := types.OperationRequest{
		Operation: types.OpInsert,
		Mode:      types.ModeBatch,
		Table:     "main.s.t",
		Payload: []types.Row{
			{{Column: "id", Value: 1}},
			{{Column: "id", Value: 2}},
		},
	}
	resp := o.Execute(context.Background(), req, nil, "", nil)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
}

func TestExecuteThrottleRejectsOverBudgetSession(t *testing.T) {
	fd := fakedriver.New()
	r := router.New()
	r.Register(router.Key{Operation: types.OpRead, Mode: types.ModeSingle}, &handler.ReadSingle{Deps: handler.Deps{DefaultReadLimit: 100, MaxReadLimit: 1000}})
	o := newOrchestrator(fd, r)
	o.deps.RateLimiter = ratelimit.New(1, time.Minute, time.Hour)

	req := types.OperationRequest{Operation: types.OpRead, Mode: types.ModeSingle, Table: "main.s.t", Columns: []string{"id"}}
	headers := map[string]string{"X-Forwarded-User": "sess-1"}

	first := o.Execute(context.Background(), req, nil, "", headers)
	require.NotNil(t, first)
	assert.True(t, first.Success)

	second := o.Execute(context.Background(), req, nil, "", headers)
	require.NotNil(t, second)
	assert.False(t, second.Success)
}

func TestExecuteSetsCorrelationID(t *testing.T) {
	fd := fakedriver.New()
	r := router.New()
	r.Register(router.Key{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, &handler.Heartbeat{})
	o := newOrchestrator(fd, r)

	resp := o.Execute(context.Background(), types.OperationRequest{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, nil, "fixed-corr-id", nil)
	assert.Equal(t, "fixed-corr-id", resp.Metadata.CorrelationID)
}
