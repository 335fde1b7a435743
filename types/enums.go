// Package types holds the gateway's data model: OperationRequest,
// OperationResponse, QueryResult, ExecutionContext, and the closed sum
// types the spec enumerates exhaustively (spec.md §3, §9 "Closed sum
// types"). Grounded on the teacher's types/consts convention of typed
// string constants with an exhaustive switch rather than bare ints.
package types

// Operation is the closed set of operations an OperationRequest may carry.
type Operation string

const (
	OpRead        Operation = "READ"
	OpInsert      Operation = "INSERT"
	OpUpdate      Operation = "UPDATE"
	OpMerge       Operation = "MERGE"
	OpDelete      Operation = "DELETE"
	OpHeartbeat   Operation = "HEARTBEAT"
	OpTransaction Operation = "TRANSACTION"
	OpSchema      Operation = "SCHEMA"
)

func (o Operation) Valid() bool {
	switch o {
	case OpRead, OpInsert, OpUpdate, OpMerge, OpDelete, OpHeartbeat, OpTransaction, OpSchema:
		return true
	default:
		return false
	}
}

// IsMutation reports whether the operation writes to the warehouse.
func (o Operation) IsMutation() bool {
	switch o {
	case OpInsert, OpUpdate, OpMerge, OpDelete:
		return true
	default:
		return false
	}
}

// Mode is the cardinality of an OperationRequest's payload.
type Mode string

const (
	ModeSingle Mode = "SINGLE"
	ModeBatch  Mode = "BATCH"
	ModeNamed  Mode = "NAMED"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeSingle, ModeBatch, ModeNamed:
		return true
	default:
		return false
	}
}

// DataFormat controls how the driver materialises a result.
type DataFormat string

const (
	DataFormatJSONRows DataFormat = "JSON_ROWS"
	DataFormatArrow    DataFormat = "ARROW"
	DataFormatPandas   DataFormat = "PANDAS"
)

func (f DataFormat) Valid() bool {
	switch f {
	case DataFormatJSONRows, DataFormatArrow, DataFormatPandas:
		return true
	default:
		return false
	}
}

// UIFormat is the delivery shape requested by the caller.
type UIFormat string

const (
	UIFormatAuto        UIFormat = "AUTO"
	UIFormatJSONDict    UIFormat = "JSON_DICT"
	UIFormatPandasDF    UIFormat = "PANDAS_DF"
	UIFormatArrowTable  UIFormat = "ARROW_TABLE"
)

func (f UIFormat) Valid() bool {
	switch f {
	case UIFormatAuto, UIFormatJSONDict, UIFormatPandasDF, UIFormatArrowTable:
		return true
	default:
		return false
	}
}

// Scenario enumerates the SCHEMA operation's sub-operations.
type Scenario string

const (
	ScenarioListCatalogs          Scenario = "list_catalogs"
	ScenarioListSchemas           Scenario = "list_schemas"
	ScenarioListTables            Scenario = "list_tables"
	ScenarioTableColumns          Scenario = "table_columns"
	ScenarioTableInfo             Scenario = "table_info"
	ScenarioInvalidateTableSchema Scenario = "invalidate_table_schema"
)

func (s Scenario) Valid() bool {
	switch s {
	case ScenarioListCatalogs, ScenarioListSchemas, ScenarioListTables,
		ScenarioTableColumns, ScenarioTableInfo, ScenarioInvalidateTableSchema:
		return true
	default:
		return false
	}
}

// Phase is the closed set of lifecycle stages (spec.md §4.1), used as the
// label of the phase-duration metric. The request logger carries no phase
// field.
type Phase string

const (
	PhaseValidate Phase = "validate"
	PhaseThrottle Phase = "throttle"
	PhaseAuthn    Phase = "authn"
	PhaseRoute    Phase = "route"
	PhaseWarmup   Phase = "warmup"
	PhaseResolve  Phase = "resolve"
	PhaseExecute  Phase = "execute"
	PhaseShape    Phase = "shape"
	PhaseObserve  Phase = "observe"
	PhaseFinalize Phase = "finalize"
)

// AuthMethod is the closed set of authentication methods AUTHN may detect.
type AuthMethod string

const (
	AuthMethodOBO              AuthMethod = "OBO"
	AuthMethodServicePrincipal AuthMethod = "SERVICE_PRINCIPAL"
	AuthMethodLocal            AuthMethod = "LOCAL"
)

// FilterOp is the closed set of comparison operators FilterClause supports.
type FilterOp string

const (
	OpEq         FilterOp = "="
	OpNeq        FilterOp = "!="
	OpNeqAlt     FilterOp = "<>"
	OpLt         FilterOp = "<"
	OpLte        FilterOp = "<="
	OpGt         FilterOp = ">"
	OpGte        FilterOp = ">="
	OpIn         FilterOp = "IN"
	OpNotIn      FilterOp = "NOT IN"
	OpLike       FilterOp = "LIKE"
	OpNotLike    FilterOp = "NOT LIKE"
	OpIsNull     FilterOp = "IS NULL"
	OpIsNotNull  FilterOp = "IS NOT NULL"
	OpBetween    FilterOp = "BETWEEN"
)

func (o FilterOp) Valid() bool {
	switch o {
	case OpEq, OpNeq, OpNeqAlt, OpLt, OpLte, OpGt, OpGte, OpIn, OpNotIn,
		OpLike, OpNotLike, OpIsNull, OpIsNotNull, OpBetween:
		return true
	default:
		return false
	}
}

// OrderDirection is the closed set ORDER BY accepts.
type OrderDirection string

const (
	OrderAsc  OrderDirection = "ASC"
	OrderDesc OrderDirection = "DESC"
)

func (d OrderDirection) Valid() bool {
	return d == OrderAsc || d == OrderDesc
}

// AggregateFunc is the closed set of aggregate functions SELECT supports.
type AggregateFunc string

const (
	AggCount AggregateFunc = "COUNT"
	AggSum   AggregateFunc = "SUM"
	AggAvg   AggregateFunc = "AVG"
	AggMin   AggregateFunc = "MIN"
	AggMax   AggregateFunc = "MAX"
)

func (f AggregateFunc) Valid() bool {
	switch f {
	case AggCount, AggSum, AggAvg, AggMin, AggMax:
		return true
	default:
		return false
	}
}

// ParamType is the closed set of query-manifest parameter types (spec.md
// §4.8).
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamInteger ParamType = "integer"
	ParamFloat   ParamType = "float"
	ParamDate    ParamType = "date"
	ParamBool    ParamType = "bool"
	ParamList    ParamType = "list"
	ParamTableRef ParamType = "table_ref"
)

func (p ParamType) Valid() bool {
	switch p {
	case ParamString, ParamInteger, ParamFloat, ParamDate, ParamBool, ParamList, ParamTableRef:
		return true
	default:
		return false
	}
}
