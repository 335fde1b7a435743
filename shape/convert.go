// Package shape implements the SHAPE phase's format-conversion matrix
// (spec.md §4.10): a QueryResult materialised in one of three
// driver-native data_formats (JSON_ROWS/ARROW/PANDAS) is converted, if
// requested, to one of three UI delivery formats (JSON_DICT/PANDAS_DF/
// ARROW_TABLE). Grounded on spec.md §2's L6 "shape" component; since no
// dataframe or Arrow library appears anywhere in the example corpus (see
// DESIGN.md), Frame is a minimal hand-rolled table struct (column names
// plus row-major values) standing in
// for both pandas.DataFrame and an Arrow RecordBatch, and the 3x3 matrix
// below is plain Go conversion between types.Row slices and Frame.
package shape

import (
	"github.com/databricks-labs/gatewaydb/types"
)

// naturalUIFormat maps a driver data_format to the UI format AUTO resolves
// to when the caller does not request a specific delivery shape.
func naturalUIFormat(format types.DataFormat) types.UIFormat {
	switch format {
	case types.DataFormatArrow:
		return types.UIFormatArrowTable
	case types.DataFormatPandas:
		return types.UIFormatPandasDF
	default:
		return types.UIFormatJSONDict
	}
}

// ResolveUIFormat implements the AUTO resolution rule of spec.md §4.1 step
// 8: AUTO becomes the natural target for the result's data_format; any
// explicit request passes through unchanged.
func ResolveUIFormat(requested types.UIFormat, dataFormat types.DataFormat) types.UIFormat {
	if requested == "" || requested == types.UIFormatAuto {
		return naturalUIFormat(dataFormat)
	}
	return requested
}

// Convert reshapes a QueryResult's payload into the target UI format,
// converting between row-oriented (JSON_DICT) and columnar (PANDAS_DF/
// ARROW_TABLE) representations as needed. It is a pure data transform: no
// I/O, no driver calls.
func Convert(q *types.QueryResult, target types.UIFormat) (any, error) {
	switch target {
	case types.UIFormatJSONDict:
		return toJSONDict(q), nil
	case types.UIFormatPandasDF, types.UIFormatArrowTable:
		return toFrame(q), nil
	default:
		return toJSONDict(q), nil
	}
}

// toJSONDict returns the result as a slice of ordered maps (Row), building
// one from the source Frame if the driver materialised a columnar shape.
func toJSONDict(q *types.QueryResult) []types.Row {
	if q.Rows != nil {
		return q.Rows
	}
	frame := q.Dataframe
	if frame == nil {
		frame = q.ArrowTable
	}
	if frame == nil {
		return []types.Row{}
	}
	return frameToRows(frame)
}

// toFrame returns the result as a Frame, building one from Rows if the
// driver materialised a row-oriented shape.
func toFrame(q *types.QueryResult) *types.Frame {
	if q.Dataframe != nil {
		return q.Dataframe
	}
	if q.ArrowTable != nil {
		return q.ArrowTable
	}
	return rowsToFrame(q.Columns, q.Rows)
}

func frameToRows(f *types.Frame) []types.Row {
	rows := make([]types.Row, len(f.Rows))
	for i, values := range f.Rows {
		row := make(types.Row, len(f.Columns))
		for j, col := range f.Columns {
			var v any
			if j < len(values) {
				v = values[j]
			}
			row[j] = types.KV{Column: col, Value: v}
		}
		rows[i] = row
	}
	return rows
}

func rowsToFrame(columns []string, rows []types.Row) *types.Frame {
	cols := columns
	if len(cols) == 0 && len(rows) > 0 {
		cols = rows[0].Columns()
	}
	out := &types.Frame{Columns: cols, Rows: make([][]any, len(rows))}
	for i, row := range rows {
		values := make([]any, len(cols))
		for j, col := range cols {
			v, _ := row.Get(col)
			values[j] = v
		}
		out.Rows[i] = values
	}
	return out
}

// BuildResponse assembles the final OperationResponse for a QueryResult
// handler output, applying AUTO resolution and the conversion above, then
// attaching the base metadata every response carries (spec.md §4.1 step 8).
func BuildResponse(q *types.QueryResult, requestedFormat types.UIFormat, correlationID string) *types.OperationResponse {
	target := ResolveUIFormat(requestedFormat, q.DataFormat)
	data, _ := Convert(q, target)

	return &types.OperationResponse{
		Success:      true,
		Data:         data,
		AffectedRows: q.AffectedRows,
		Message:      q.Message,
		Columns:      q.Columns,
		Schema:       q.Schema,
		Metadata: types.Metadata{
			CorrelationID:  correlationID,
			RowCount:       q.RowCount,
			SchemaResolved: q.SchemaResolved,
			LimitCapped:    q.LimitCapped,
			EffectiveLimit: q.EffectiveLimit,
			Format:         q.DataFormat,
		},
	}
}

// MergeResponse fills in the base metadata on a handler-produced
// OperationResponse (spec.md §4.1 step 8: "merge the base metadata...
// ensure errors is populated when success == false") without overwriting
// fields the handler already set.
func MergeResponse(r *types.OperationResponse, correlationID string, schemaResolved bool, failureDetail *types.ErrorDetail) *types.OperationResponse {
	if r.Metadata.CorrelationID == "" {
		r.Metadata.CorrelationID = correlationID
	}
	if schemaResolved {
		r.Metadata.SchemaResolved = true
	}
	if !r.Success && len(r.Errors) == 0 && failureDetail != nil {
		r.Errors = []types.ErrorDetail{*failureDetail}
	}
	return r
}
