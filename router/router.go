// Package router implements the handler registry ROUTE resolves against
// (spec.md §4.1 step 4): a fixed table from the tuple (operation, mode,
// scenario) to a handler.Handler instance, built once at startup and
// looked up on every request. Grounded on the teacher's explicit
// map-based route registration (no reflection, no pattern matching).
package router

import (
	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/handler"
	"github.com/databricks-labs/gatewaydb/manifest"
	"github.com/databricks-labs/gatewaydb/schema"
	"github.com/databricks-labs/gatewaydb/types"
)

// Key identifies one routing table entry. Scenario is the empty string
// for every operation except SCHEMA, where it selects among the six
// sub-operations.
type Key struct {
	Operation types.Operation
	Mode      types.Mode
	Scenario  types.Scenario
}

// Router is an immutable lookup table from Key to handler.Handler.
type Router struct {
	routes map[Key]handler.Handler
}

// New builds an empty Router; callers register routes with Register
// before calling Resolve.
func New() *Router {
	return &Router{routes: make(map[Key]handler.Handler)}
}

// Register adds or replaces the handler for key.
func (r *Router) Register(key Key, h handler.Handler) {
	r.routes[key] = h
}

// Resolve looks up the handler for a request's (operation, mode[, scenario])
// tuple. An unmatched key is a routing error (spec.md §4.1 step 4).
func (r *Router) Resolve(req types.OperationRequest) (handler.Handler, error) {
	key := Key{Operation: req.Operation, Mode: req.Mode, Scenario: req.Scenario}
	h, ok := r.routes[key]
	if !ok {
		return nil, errs.Newf(errs.KindRouting, "no handler registered for operation=%q mode=%q scenario=%q", req.Operation, req.Mode, req.Scenario)
	}
	return h, nil
}

// Build assembles the full routing table described by spec.md §4.9,
// wiring one handler instance per (operation, mode[, scenario]) tuple
// using the shared deps and supporting components.
func Build(deps handler.Deps, m *manifest.Manifest, schemaProvider *schema.Provider) *Router {
	r := New()

	readSingle := &handler.ReadSingle{Deps: deps}
	r.Register(Key{Operation: types.OpRead, Mode: types.ModeSingle}, readSingle)
	r.Register(Key{Operation: types.OpRead, Mode: types.ModeBatch}, &handler.ReadBatch{Deps: deps})
	r.Register(Key{Operation: types.OpRead, Mode: types.ModeNamed}, &handler.ReadNamed{Deps: deps, Manifest: m})

	writeSingle := &handler.WriteSingle{Deps: deps}
	writeBatch := &handler.WriteBatch{Deps: deps}
	for _, op := range []types.Operation{types.OpInsert, types.OpUpdate, types.OpMerge} {
		r.Register(Key{Operation: op, Mode: types.ModeSingle}, writeSingle)
		r.Register(Key{Operation: op, Mode: types.ModeBatch}, writeBatch)
	}

	r.Register(Key{Operation: types.OpDelete, Mode: types.ModeSingle}, &handler.DeleteSingle{Deps: deps})
	r.Register(Key{Operation: types.OpDelete, Mode: types.ModeBatch}, &handler.DeleteBatch{Deps: deps})

	r.Register(Key{Operation: types.OpTransaction, Mode: types.ModeSingle}, &handler.Transaction{Deps: deps})
	r.Register(Key{Operation: types.OpHeartbeat, Mode: types.ModeSingle}, &handler.Heartbeat{Deps: deps})

	for _, scenario := range []types.Scenario{
		types.ScenarioListCatalogs,
		types.ScenarioListSchemas,
		types.ScenarioListTables,
		types.ScenarioTableColumns,
		types.ScenarioTableInfo,
		types.ScenarioInvalidateTableSchema,
	} {
		r.Register(Key{Operation: types.OpSchema, Mode: types.ModeSingle, Scenario: scenario}, &handler.SchemaScenario{
			Deps:     deps,
			Scenario: scenario,
			Manifest: m,
			Schema:   schemaProvider,
		})
	}

	return r
}
