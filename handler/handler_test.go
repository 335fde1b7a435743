package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databricks-labs/gatewaydb/internal/fakedriver"
	"github.com/databricks-labs/gatewaydb/pool"
	"github.com/databricks-labs/gatewaydb/reqctx"
	"github.com/databricks-labs/gatewaydb/types"
)

func newExecutionContext(fd *fakedriver.Driver, req types.OperationRequest) *reqctx.ExecutionContext {
	p := pool.New(fd)
	ctx := pool.WithTask(context.Background())
	return reqctx.New(ctx, p, req, nil, nil)
}

func TestReadSingleReturnsQueryResult(t *testing.T) {
	fd := fakedriver.New()
	fd.QueryFunc = func(sql string, params map[string]any, format types.DataFormat) (*types.QueryResult, error) {
		return &types.QueryResult{Rows: []types.Row{{{Column: "id", Value: 1}}}, RowCount: 1}, nil
	}
	h := &ReadSingle{Deps: Deps{DefaultReadLimit: 100, MaxReadLimit: 1000}}
	ec := newExecutionContext(fd, types.OperationRequest{Table: "main.s.t", Columns: []string{"*"}})

	out, err := h.Handle(context.Background(), ec)
	require.NoError(t, err)
	require.NotNil(t, out.Query)
	assert.Equal(t, 1, out.Query.RowCount)
}

func TestWriteSingleInsertCommits(t *testing.T) {
	fd := fakedriver.New()
	h := &WriteSingle{Deps: Deps{}}
	req := types.OperationRequest{
		Operation: types.OpInsert,
		Table:     "main.s.t",
		Payload:   []types.Row{{{Column: "id", Value: 1}}},
	}
	ec := newExecutionContext(fd, req)

	out, err := h.Handle(context.Background(), ec)
	require.NoError(t, err)
	require.NotNil(t, out.Response)
	assert.True(t, out.Response.Success)
	assert.Equal(t, 1, out.Response.AffectedRows)
}

func TestWriteSingleUpdateZeroRowsWithoutOldValuesIsNotFound(t *testing.T) {
	fd := fakedriver.New()
	fd.ExecFunc = func(sql string, params map[string]any) (int, error) { return 0, nil }
	h := &WriteSingle{Deps: Deps{}}
	req := types.OperationRequest{
		Operation: types.OpUpdate,
		Table:     "main.s.t",
		Payload:   []types.Row{{{Column: "status", Value: "CLOSED"}}},
		Where:     []types.Row{{{Column: "id", Value: 1}}},
	}
	ec := newExecutionContext(fd, req)

	out, err := h.Handle(context.Background(), ec)
	require.NoError(t, err)
	require.NotNil(t, out.Response)
	assert.False(t, out.Response.Success)
}

func TestWriteSingleUpdateZeroRowsWithOldValuesIsConflict(t *testing.T) {
	fd := fakedriver.New()
	fd.ExecFunc = func(sql string, params map[string]any) (int, error) { return 0, nil }
	h := &WriteSingle{Deps: Deps{}}
	req := types.OperationRequest{
		Operation: types.OpUpdate,
		Table:     "main.s.t",
		Payload:   []types.Row{{{Column: "status", Value: "CLOSED"}}},
		Where:     []types.Row{{{Column: "id", Value: 1}}},
		Options:   types.Options{OldValues: types.Row{{Column: "status", Value: "OPEN"}}},
	}
	ec := newExecutionContext(fd, req)

	out, err := h.Handle(context.Background(), ec)
	require.NoError(t, err)
	require.NotNil(t, out.Response)
	assert.False(t, out.Response.Success)
	assert.Equal(t, "CONFLICT", out.Response.Errors[0].Category)
}

func TestDeleteSingleNoMatchReportsNotFound(t *testing.T) {
	fd := fakedriver.New()
	fd.ExecFunc = func(sql string, params map[string]any) (int, error) { return 0, nil }
	h := &DeleteSingle{Deps: Deps{}}
	req := types.OperationRequest{
		Operation: types.OpDelete,
		Table:     "main.s.t",
		Where:     []types.Row{{{Column: "id", Value: 1}}},
	}
	ec := newExecutionContext(fd, req)

	out, err := h.Handle(context.Background(), ec)
	require.NoError(t, err)
	require.NotNil(t, out.Response)
	assert.False(t, out.Response.Success)
}

func TestTransactionAccumulatesAffectedRows(t *testing.T) {
	fd := fakedriver.New()
	h := &Transaction{Deps: Deps{MaxTxStatements: 50}}
	req := types.OperationRequest{
		Operation: types.OpTransaction,
		Operations: []types.OperationRequest{
			{Operation: types.OpInsert, Mode: types.ModeSingle, Table: "main.s.t", Payload: []types.Row{{{Column: "id", Value: 1}}}},
			{Operation: types.OpInsert, Mode: types.ModeSingle, Table: "main.s.t", Payload: []types.Row{{{Column: "id", Value: 2}}}},
		},
	}
	ec := newExecutionContext(fd, req)

	out, err := h.Handle(context.Background(), ec)
	require.NoError(t, err)
	require.NotNil(t, out.Response)
	assert.True(t, out.Response.Success)
	assert.Equal(t, 2, out.Response.AffectedRows)
}

func TestTransactionRejectsNestedTransaction(t *testing.T) {
	fd := fakedriver.New()
	h := &Transaction{Deps: Deps{MaxTxStatements: 50}}
	req := types.OperationRequest{
		Operation: types.OpTransaction,
		Operations: []types.OperationRequest{
			{Operation: types.OpTransaction, Mode: types.ModeSingle},
		},
	}
	ec := newExecutionContext(fd, req)

	_, err := h.Handle(context.Background(), ec)
	assert.Error(t, err)
}

func TestHeartbeatReportsHealthy(t *testing.T) {
	fd := fakedriver.New()
	h := &Heartbeat{Deps: Deps{}}
	ec := newExecutionContext(fd, types.OperationRequest{Operation: types.OpHeartbeat})

	out, err := h.Handle(context.Background(), ec)
	require.NoError(t, err)
	require.NotNil(t, out.Response)
	assert.True(t, out.Response.Success)
}
