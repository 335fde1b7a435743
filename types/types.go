package types

import (
	"strings"
)

// KV is an ordered column/value pair. Go maps have no iteration order, but
// INSERT's column list and MERGE's "USING (SELECT ...)" projection must
// preserve the caller's declared order (spec.md §4.2), so payload and where
// rows are ordered slices of KV rather than map[string]any.
type KV struct {
	Column string
	Value  any
}

// Row is one ordered column->value mapping: a SINGLE payload record, one
// BATCH record, or one WHERE clause.
type Row []KV

// Get returns the value for column and whether it was present.
func (r Row) Get(column string) (any, bool) {
	for _, kv := range r {
		if kv.Column == column {
			return kv.Value, true
		}
	}
	return nil, false
}

// Columns returns the ordered column names of the row.
func (r Row) Columns() []string {
	cols := make([]string, len(r))
	for i, kv := range r {
		cols[i] = kv.Column
	}
	return cols
}

// Has reports whether column appears in the row.
func (r Row) Has(column string) bool {
	_, ok := r.Get(column)
	return ok
}

// Intersects reports whether any column name is shared between the rows.
func (r Row) Intersects(other Row) bool {
	for _, kv := range r {
		if other.Has(kv.Column) {
			return true
		}
	}
	return false
}

// FilterClause is one WHERE/HAVING predicate.
type FilterClause struct {
	Column string
	Op     FilterOp
	Value  any // ignored for IS NULL/IS NOT NULL; a 2-element slice for BETWEEN; a slice for IN/NOT IN
}

// OrderByClause is one ORDER BY term.
type OrderByClause struct {
	Column    string
	Direction OrderDirection
}

// AggregateColumn is one SELECT aggregate projection.
type AggregateColumn struct {
	Function AggregateFunc
	Column   string
	Alias    string
}

// Options carries the recognised option keys of spec.md §3 as typed fields;
// no other key can be represented in it. Nothing in this module rejects
// unrecognised keys in incoming JSON: encoding/json drops them when
// decoding into this struct.
type Options struct {
	Limit        *int
	Offset       *int
	OrderBy      []OrderByClause
	GroupBy      []string
	Aggregations []AggregateColumn
	Having       []FilterClause
	OldValues    Row
}

// ColumnMetadata describes one resolved column (spec.md §3).
type ColumnMetadata struct {
	Name            string
	DataType        string
	Nullable        bool
	IsPrimaryKey    bool
	OrdinalPosition int
}

// ErrorDetail is the typed error envelope carried in OperationResponse.Errors.
type ErrorDetail struct {
	Category string
	Code     string
	Message  string
	Field    string
}

// OperationRequest is the sole input to the system (spec.md §3). Immutable
// once constructed — nothing in this package mutates a request in place.
type OperationRequest struct {
	Operation Operation
	Mode      Mode

	// Table is a fully qualified 3-level reference ("catalog.schema.table")
	// for mutating/read operations, a manifest key for READ/NAMED, and
	// informational-only for TRANSACTION.
	Table string

	Payload []Row // SINGLE: len 1. BATCH: len N. READ/BATCH: PK rows.
	Columns []string
	Where   []Row // len 0: none. len 1: shared. len == len(Payload): per-record.
	Options Options

	DataFormat DataFormat
	UIFormat   UIFormat

	Operations []OperationRequest // TRANSACTION sub-requests

	Scenario   Scenario
	Catalog    string
	SchemaName string

	CorrelationID string
}

// WildcardColumns reports whether Columns requests schema resolution
// (spec.md §4.1 phase 6: columns is nil, empty, or ["*"]).
func (r OperationRequest) WildcardColumns() bool {
	if len(r.Columns) == 0 {
		return true
	}
	return len(r.Columns) == 1 && r.Columns[0] == "*"
}

// TableParts splits a validated 3-level table reference. Callers must have
// already run validate.TableRef on Table.
func (r OperationRequest) TableParts() (catalog, schema, table string) {
	parts := strings.SplitN(r.Table, ".", 3)
	if len(parts) != 3 {
		return "", "", ""
	}
	return parts[0], parts[1], parts[2]
}

// Metadata is the free-form-but-typed metadata envelope attached to every
// OperationResponse (spec.md §3/§7).
type Metadata struct {
	CorrelationID  string
	RowCount       int
	SchemaResolved bool
	LimitCapped    bool
	EffectiveLimit int
	Format         DataFormat
}

// OperationResponse is the sole output of the system (spec.md §3).
type OperationResponse struct {
	Success      bool
	Data         any
	AffectedRows int
	Message      string
	Errors       []ErrorDetail
	Metadata     Metadata
	Columns      []string
	Schema       []ColumnMetadata
}

// Failure builds a canonical failure envelope.
func Failure(correlationID string, detail ErrorDetail, message string) OperationResponse {
	return OperationResponse{
		Success:      false,
		Data:         nil,
		AffectedRows: 0,
		Message:      message,
		Errors:       []ErrorDetail{detail},
		Metadata:     Metadata{CorrelationID: correlationID},
	}
}

// QueryResult is the internal handler output (spec.md §3): exactly one of
// Rows/Dataframe/ArrowTable is populated, matching DataFormat.
type QueryResult struct {
	DataFormat DataFormat

	Rows       []Row // JSON_ROWS
	Dataframe  *Frame // PANDAS
	ArrowTable *Frame // ARROW — same Go representation as Dataframe; see shape package

	Columns      []string
	Schema       []ColumnMetadata
	RowCount     int
	AffectedRows int
	Message      string

	SchemaResolved bool
	LimitCapped    bool
	EffectiveLimit int
}

// Frame is a minimal table: column names plus row-major values. It stands
// in for the teacher corpus's absent dataframe/Arrow libraries (see
// DESIGN.md) while still letting shape.Convert round-trip JSON_ROWS <->
// PANDAS <-> ARROW losslessly for the scalar types this gateway deals in.
type Frame struct {
	Columns []string
	Rows    [][]any // row-major; column order matches Columns
}
