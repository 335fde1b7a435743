package handler

import (
	"context"

	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/reqctx"
	"github.com/databricks-labs/gatewaydb/sqlintent"
	"github.com/databricks-labs/gatewaydb/types"
)

// DeleteSingle compiles a single-row PK WHERE and deletes it inside an
// explicit transaction (spec.md §4.9).
type DeleteSingle struct {
	Deps Deps
}

func (h *DeleteSingle) Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error) {
	req := ec.Request
	if len(req.Where) == 0 {
		return Output{}, errs.New(errs.KindValidation, "delete requires a primary-key where clause")
	}

	intent, err := sqlintent.BuildDelete(req.Table, req.Where)
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

	tx, err := conn.Begin(ctx)
	if err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "opening delete transaction")
	}
	var affected int
	err = execWithTimeout(ctx, h.Deps.QueryTimeout, conn, func(tctx context.Context) error {
		var execErr error
		affected, execErr = tx.Exec(tctx, sql, params)
		return execErr
	})
	if err != nil {
		_ = tx.Rollback()
		return Output{}, errs.Wrap(errs.KindConnection, err, "executing delete")
	}
	if err := tx.Commit(); err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "committing delete transaction")
	}

	if affected == 0 {
		detail := errs.ToDetail(errs.New(errs.KindNotFound, "no matching record"))
		return responseOutput(&types.OperationResponse{
			Success:  false,
			Message:  detail.Message,
			Errors:   []types.ErrorDetail{{Category: string(detail.Category), Code: detail.Code, Message: detail.Message}},
			Metadata: types.Metadata{CorrelationID: ec.CorrelationID},
		}), nil
	}

	return responseOutput(&types.OperationResponse{
		Success:      true,
		AffectedRows: affected,
		Message:      "delete succeeded",
		Metadata:     types.Metadata{CorrelationID: ec.CorrelationID},
	}), nil
}

// DeleteBatch compiles an OR-combined multi-PK-set DELETE in one
// transaction (spec.md §4.9).
type DeleteBatch struct {
	Deps Deps
}

func (h *DeleteBatch) Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error) {
	req := ec.Request
	if err := boundBatch(len(req.Where), h.Deps.MaxBatchSize); err != nil {
		return Output{}, err
	}

	intent, err := sqlintent.BuildDelete(req.Table, req.Where)
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

	tx, err := conn.Begin(ctx)
	if err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "opening batch delete transaction")
	}
	var affected int
	err = execWithTimeout(ctx, h.Deps.QueryTimeout, conn, func(tctx context.Context) error {
		var execErr error
		affected, execErr = tx.Exec(tctx, sql, params)
		return execErr
	})
	if err != nil {
		_ = tx.Rollback()
		return Output{}, errs.Wrap(errs.KindConnection, err, "executing batch delete")
	}
	if err := tx.Commit(); err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "committing batch delete transaction")
	}

	return responseOutput(&types.OperationResponse{
		Success:      true,
		AffectedRows: affected,
		Message:      "batch delete succeeded",
		Metadata:     types.Metadata{CorrelationID: ec.CorrelationID},
	}), nil
}
