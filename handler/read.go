package handler

import (
	"context"

	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/manifest"
	"github.com/databricks-labs/gatewaydb/reqctx"
	"github.com/databricks-labs/gatewaydb/sqlintent"
	"github.com/databricks-labs/gatewaydb/types"
)

// ReadSingle executes a SELECT built from the request's table/filters/
// options and returns a QueryResult in the requested native data format
// (spec.md §4.9).
type ReadSingle struct {
	Deps Deps
}

func (h *ReadSingle) Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error) {
	intent, err := sqlintent.BuildSelect(ec.Request, h.Deps.DefaultReadLimit, h.Deps.MaxReadLimit)
	if err != nil {
		return Output{}, err
	}
	sql, params, err := intent.Render()
	if err != nil {
		return Output{}, err
	}

	conn, release, err := ec.LeaseConnection()
	if err != nil {
		return Output{}, err
	}
	defer release()

	var result *types.QueryResult
	err = execWithTimeout(ctx, h.Deps.QueryTimeout, conn, func(tctx context.Context) error {
		result, err = conn.Query(tctx, sql, params, ec.Request.DataFormat)
		return err
	})
	if err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "executing read")
	}

	result.LimitCapped = intent.LimitCapped
	result.EffectiveLimit = intent.Limit
	return queryOutput(result), nil
}

// ReadNamed executes a named query from the manifest (spec.md §4.8/§4.9).
// The caller-supplied parameter bag is threaded in via the request's
// Payload[0] row, each KV mapping a parameter name to its value.
type ReadNamed struct {
	Deps     Deps
	Manifest *manifest.Manifest
}

func (h *ReadNamed) Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error) {
	q, err := h.Manifest.Get(ec.Request.Table)
	if err != nil {
		return Output{}, err
	}

	supplied := make(map[string]any)
	if len(ec.Request.Payload) > 0 {
		for _, kv := range ec.Request.Payload[0] {
			supplied[kv.Column] = kv.Value
		}
	}
	sql, params, err := q.Bind(supplied)
	if err != nil {
		return Output{}, err
	}

	conn, release, err := ec.LeaseConnection()
	if err != nil {
		return Output{}, err
	}
	defer release()

	var result *types.QueryResult
	err = execWithTimeout(ctx, h.Deps.QueryTimeout, conn, func(tctx context.Context) error {
		result, err = conn.Query(tctx, sql, params, ec.Request.DataFormat)
		return err
	})
	if err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "executing named query")
	}
	return queryOutput(result), nil
}

// ReadBatch builds a SELECT whose WHERE OR-combines AND-combined PK sets
// (spec.md §4.9) and returns a single QueryResult covering all matches.
type ReadBatch struct {
	Deps Deps
}

func (h *ReadBatch) Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error) {
	if err := boundBatch(len(ec.Request.Where), h.Deps.MaxBatchSize); err != nil {
		return Output{}, err
	}

	intent, err := sqlintent.BuildSelect(ec.Request, h.Deps.DefaultReadLimit, h.Deps.MaxReadLimit)
	if err != nil {
		return Output{}, err
	}
	intent.PKSets = ec.Request.Where

	sql, params, err := intent.Render()
	if err != nil {
		return Output{}, err
	}

	conn, release, err := ec.LeaseConnection()
	if err != nil {
		return Output{}, err
	}
	defer release()

	var result *types.QueryResult
	err = execWithTimeout(ctx, h.Deps.QueryTimeout, conn, func(tctx context.Context) error {
		result, err = conn.Query(tctx, sql, params, ec.Request.DataFormat)
		return err
	})
	if err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "executing batch read")
	}
	return queryOutput(result), nil
}

func boundBatch(n, max int) error {
	if n > max {
		return errs.Newf(errs.KindValidation, "batch size %d exceeds maximum %d", n, max)
	}
	return nil
}
