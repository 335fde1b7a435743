package handler

import (
	"context"

	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/manifest"
	"github.com/databricks-labs/gatewaydb/reqctx"
	schemaprovider "github.com/databricks-labs/gatewaydb/schema"
	"github.com/databricks-labs/gatewaydb/types"
)

// SchemaScenario implements the six SCHEMA sub-operations (spec.md §4.9),
// each using a service-principal lease and the query manifest; one
// instance is registered per scenario, selected by the request's Scenario
// field.
type SchemaScenario struct {
	Deps     Deps
	Scenario types.Scenario
	Manifest *manifest.Manifest
	Schema   *schemaprovider.Provider
}

func (h *SchemaScenario) Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error) {
	switch h.Scenario {
	case types.ScenarioListCatalogs:
		return h.namedQuery(ctx, ec, "schema.list_catalogs", nil)

	case types.ScenarioListSchemas:
		return h.namedQuery(ctx, ec, "schema.list_schemas", map[string]any{"catalog": ec.Request.Catalog})

	case types.ScenarioListTables:
		return h.namedQuery(ctx, ec, "schema.list_tables", map[string]any{
			"catalog": ec.Request.Catalog,
			"schema":  ec.Request.SchemaName,
		})

	case types.ScenarioTableColumns, types.ScenarioTableInfo:
		ts, err := h.Schema.Get(ctx, ec.Request.Catalog, ec.Request.SchemaName, ec.Request.Table)
		if err != nil {
			return Output{}, err
		}
		return responseOutput(&types.OperationResponse{
			Success:  true,
			Columns:  columnNames(ts.Columns),
			Schema:   ts.Columns,
			Message:  "schema resolved",
			Metadata: types.Metadata{CorrelationID: ec.CorrelationID, SchemaResolved: true},
		}), nil

	case types.ScenarioInvalidateTableSchema:
		h.Schema.Invalidate(ec.Request.Catalog, ec.Request.SchemaName, ec.Request.Table)
		return responseOutput(&types.OperationResponse{
			Success:  true,
			Message:  "schema cache invalidated",
			Metadata: types.Metadata{CorrelationID: ec.CorrelationID},
		}), nil

	default:
		return Output{}, errs.Newf(errs.KindRouting, "unsupported schema scenario: %q", h.Scenario)
	}
}

func (h *SchemaScenario) namedQuery(ctx context.Context, ec *reqctx.ExecutionContext, key string, params map[string]any) (Output, error) {
	q, err := h.Manifest.Get(key)
	if err != nil {
		return Output{}, err
	}
	sql, bound, err := q.Bind(params)
	if err != nil {
		return Output{}, err
	}

	conn, release, err := ec.LeaseServicePrincipal()
	if err != nil {
		return Output{}, err
	}
	defer release()

	var result *types.QueryResult
	err = execWithTimeout(ctx, h.Deps.QueryTimeout, conn, func(tctx context.Context) error {
		result, err = conn.Query(tctx, sql, bound, types.DataFormatJSONRows)
		return err
	})
	if err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "executing schema scenario query")
	}
	return queryOutput(result), nil
}

func columnNames(columns []types.ColumnMetadata) []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return names
}
