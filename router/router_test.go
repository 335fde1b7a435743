package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databricks-labs/gatewaydb/handler"
	"github.com/databricks-labs/gatewaydb/types"
)

func TestResolveReturnsRegisteredHandler(t *testing.T) {
	r := New()
	h := &handler.Heartbeat{}
	r.Register(Key{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, h)

	got, err := r.Resolve(types.OperationRequest{Operation: types.OpHeartbeat, Mode: types.ModeSingle})
	require.NoError(t, err)
	assert.Same(t, h, got)
}

func TestResolveUnknownKeyIsRoutingError(t *testing.T) {
	r := New()
	_, err := r.Resolve(types.OperationRequest{Operation: types.OpRead, Mode: types.ModeSingle})
	assert.Error(t, err)
}

func TestBuildRegistersAllSchemaScenarios(t *testing.T) {
	r := Build(handler.Deps{}, nil, nil)
	for _, scenario := range []types.Scenario{
		types.ScenarioListCatalogs,
		types.ScenarioListSchemas,
		types.ScenarioListTables,
		types.ScenarioTableColumns,
		types.ScenarioTableInfo,
		types.ScenarioInvalidateTableSchema,
	} {
		_, err := r.Resolve(types.OperationRequest{Operation: types.OpSchema, Mode: types.ModeSingle, Scenario: scenario})
		assert.NoError(t, err)
	}
}

func TestBuildRegistersReadWriteDeleteTransactionHeartbeat(t *testing.T) {
	r := Build(handler.Deps{}, nil, nil)
	cases := []Key{
		{Operation: types.OpRead, Mode: types.ModeSingle},
		{Operation: types.OpRead, Mode: types.ModeBatch},
		{Operation: types.OpRead, Mode: types.ModeNamed},
		{Operation: types.OpInsert, Mode: types.ModeSingle},
		{Operation: types.OpInsert, Mode: types.ModeBatch},
		{Operation: types.OpUpdate, Mode: types.ModeSingle},
		{Operation: types.OpMerge, Mode: types.ModeBatch},
		{Operation: types.OpDelete, Mode: types.ModeSingle},
		{Operation: types.OpDelete, Mode: types.ModeBatch},
		{Operation: types.OpTransaction, Mode: types.ModeSingle},
		{Operation: types.OpHeartbeat, Mode: types.ModeSingle},
	}
	for _, k := range cases {
		_, err := r.Resolve(types.OperationRequest{Operation: k.Operation, Mode: k.Mode, Scenario: k.Scenario})
		assert.NoError(t, err, "expected route for %+v", k)
	}
}
