package shape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/databricks-labs/gatewaydb/types"
)

func TestResolveUIFormatAutoFollowsDataFormat(t *testing.T) {
	assert.Equal(t, types.UIFormatJSONDict, ResolveUIFormat(types.UIFormatAuto, types.DataFormatJSONRows))
	assert.Equal(t, types.UIFormatPandasDF, ResolveUIFormat(types.UIFormatAuto, types.DataFormatPandas))
	assert.Equal(t, types.UIFormatArrowTable, ResolveUIFormat(types.UIFormatAuto, types.DataFormatArrow))
}

func TestResolveUIFormatExplicitPassesThrough(t *testing.T) {
	assert.Equal(t, types.UIFormatPandasDF, ResolveUIFormat(types.UIFormatPandasDF, types.DataFormatJSONRows))
}

func TestConvertRowsToFrame(t *testing.T) {
	q := &types.QueryResult{
		DataFormat: types.DataFormatJSONRows,
		Columns:    []string{"id", "name"},
		Rows: []types.Row{
			{{Column: "id", Value: 1}, {Column: "name", Value: "a"}},
			{{Column: "id", Value: 2}, {Column: "name", Value: "b"}},
		},
	}
	out, err := Convert(q, types.UIFormatPandasDF)
	require.NoError(t, err)
	frame, ok := out.(*types.Frame)
	require.True(t, ok)
	assert.Equal(t, []string{"id", "name"}, frame.Columns)
	assert.Equal(t, [][]any{{1, "a"}, {2, "b"}}, frame.Rows)
}

func TestConvertFrameToJSONDict(t *testing.T) {
	q := &types.QueryResult{
		DataFormat: types.DataFormatPandas,
		Dataframe: &types.Frame{
			Columns: []string{"id"},
			Rows:    [][]any{{1}, {2}},
		},
	}
	out, err := Convert(q, types.UIFormatJSONDict)
	require.NoError(t, err)
	rows, ok := out.([]types.Row)
	require.True(t, ok)
	require.Len(t, rows, 2)
	v, ok := rows[0].Get("id")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestBuildResponseCarriesMetadata(t *testing.T) {
	q := &types.QueryResult{
		DataFormat:     types.DataFormatJSONRows,
		Rows:           []types.Row{{{Column: "id", Value: 1}}},
		RowCount:       1,
		LimitCapped:    true,
		EffectiveLimit: 10000,
		SchemaResolved: true,
	}
	resp := BuildResponse(q, types.UIFormatAuto, "corr-1")
	assert.True(t, resp.Success)
	assert.Equal(t, "corr-1", resp.Metadata.CorrelationID)
	assert.True(t, resp.Metadata.LimitCapped)
	assert.Equal(t, 10000, resp.Metadata.EffectiveLimit)
	assert.True(t, resp.Metadata.SchemaResolved)
}

func TestMergeResponseFillsErrorsOnFailure(t *testing.T) {
	r := &types.OperationResponse{Success: false}
	detail := &types.ErrorDetail{Category: "VALIDATION", Code: "validation_error", Message: "bad"}
	MergeResponse(r, "corr-2", false, detail)
	assert.Equal(t, "corr-2", r.Metadata.CorrelationID)
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "bad", r.Errors[0].Message)
}
