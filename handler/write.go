package handler

import (
	"context"

	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/reqctx"
	"github.com/databricks-labs/gatewaydb/sqlintent"
	"github.com/databricks-labs/gatewaydb/types"
)

// WriteSingle executes one INSERT/UPDATE/MERGE statement inside an
// explicit transaction (spec.md §4.9).
type WriteSingle struct {
	Deps Deps
}

func (h *WriteSingle) Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error) {
	req := ec.Request

	conn, release, err := ec.LeaseConnection()
	if err != nil {
		return Output{}, err
	}
	defer release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "opening write transaction")
	}

	affected, execErr := writeOne(ctx, h.Deps, conn, tx, req)
	if execErr != nil {
		_ = tx.Rollback()
		return Output{}, execErr
	}
	if err := tx.Commit(); err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "committing write transaction")
	}

	hasOldValues := len(req.Options.OldValues) > 0
	return responseOutput(writeResponse(ec.CorrelationID, affected, req.Operation.IsMutation() && req.Operation != types.OpInsert, hasOldValues)), nil
}

// writeOne renders and executes a single INSERT/UPDATE/MERGE statement
// against tx, returning the driver-reported affected row count. The
// statement runs under the same per-statement timeout as reads (spec.md
// §4.3): conn is the leased connection backing tx, used only so a timeout
// can cancel it out from under a hung Exec.
func writeOne(ctx context.Context, deps Deps, conn driver.Conn, tx driver.Tx, req types.OperationRequest) (int, error) {
	switch req.Operation {
	case types.OpInsert:
		intent, err := sqlintent.BuildInsert(req)
		if err != nil {
			return 0, err
		}
		sql, params, err := intent.Render()
		if err != nil {
			return 0, err
		}
		var affected int
		err = execWithTimeout(ctx, deps.QueryTimeout, conn, func(tctx context.Context) error {
			var execErr error
			affected, execErr = tx.Exec(tctx, sql, params)
			return execErr
		})
		if err != nil {
			return 0, errs.Wrap(errs.KindConnection, err, "executing insert")
		}
		return affected, nil

	case types.OpUpdate, types.OpMerge:
		strategy := sqlintent.StrategyUpdate
		if req.Operation == types.OpMerge {
			strategy = sqlintent.StrategyMerge
		}
		pkValues := singleWhere(req)
		updates := singleRow(req.Payload)
		intent, err := sqlintent.BuildUpdate(req.Table, strategy, updates, pkValues, req.Options.OldValues)
		if err != nil {
			return 0, err
		}
		sql, params, err := intent.Render()
		if err != nil {
			return 0, err
		}
		var affected int
		err = execWithTimeout(ctx, deps.QueryTimeout, conn, func(tctx context.Context) error {
			var execErr error
			affected, execErr = tx.Exec(tctx, sql, params)
			return execErr
		})
		if err != nil {
			return 0, errs.Wrap(errs.KindConnection, err, "executing update")
		}
		return affected, nil

	default:
		return 0, errs.Newf(errs.KindRouting, "write handler does not support operation %q", req.Operation)
	}
}

func singleRow(payload []types.Row) types.Row {
	if len(payload) == 0 {
		return nil
	}
	return payload[0]
}

func singleWhere(req types.OperationRequest) types.Row {
	if len(req.Where) == 0 {
		return nil
	}
	return req.Where[0]
}

// writeResponse interprets affected according to spec.md §4.9: -1 (driver
// does not report counts) is success; 0 with old_values present is a
// conflict; 0 without old_values is "no matching record".
func writeResponse(correlationID string, affected int, isUpdateLike, hasOldValues bool) *types.OperationResponse {
	if affected == -1 {
		return &types.OperationResponse{
			Success:      true,
			AffectedRows: 1,
			Message:      "write succeeded",
			Metadata:     types.Metadata{CorrelationID: correlationID},
		}
	}
	if affected == 0 && isUpdateLike {
		if hasOldValues {
			detail := errs.ToDetail(errs.New(errs.KindConflict, "optimistic concurrency check failed"))
			return &types.OperationResponse{
				Success:  false,
				Message:  detail.Message,
				Errors:   []types.ErrorDetail{{Category: string(detail.Category), Code: detail.Code, Message: detail.Message}},
				Metadata: types.Metadata{CorrelationID: correlationID},
			}
		}
		detail := errs.ToDetail(errs.New(errs.KindNotFound, "no matching record"))
		return &types.OperationResponse{
			Success:  false,
			Message:  detail.Message,
			Errors:   []types.ErrorDetail{{Category: string(detail.Category), Code: detail.Code, Message: detail.Message}},
			Metadata: types.Metadata{CorrelationID: correlationID},
		}
	}
	return &types.OperationResponse{
		Success:      true,
		AffectedRows: affected,
		Message:      "write succeeded",
		Metadata:     types.Metadata{CorrelationID: correlationID},
	}
}

// WriteBatch executes a batch INSERT (one templated statement bound per
// row) or a per-record UPDATE/MERGE loop, all inside one transaction
// (spec.md §4.9).
type WriteBatch struct {
	Deps Deps
}

func (h *WriteBatch) Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error) {
	req := ec.Request
	if err := boundBatch(len(req.Payload), h.Deps.MaxBatchSize); err != nil {
		return Output{}, err
	}
	if err := whereSymmetry(len(req.Payload), len(req.Where)); err != nil {
		return Output{}, err
	}

	conn, release, err := ec.LeaseConnection()
	if err != nil {
		return Output{}, err
	}
	defer release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "opening batch write transaction")
	}

	total, execErr := h.executeBatch(ctx, conn, tx, req)
	if execErr != nil {
		_ = tx.Rollback()
		return Output{}, execErr
	}
	if err := tx.Commit(); err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "committing batch write transaction")
	}

	return responseOutput(&types.OperationResponse{
		Success:      true,
		AffectedRows: total,
		Message:      "batch write succeeded",
		Metadata:     types.Metadata{CorrelationID: ec.CorrelationID},
	}), nil
}

func (h *WriteBatch) executeBatch(ctx context.Context, conn driver.Conn, tx driver.Tx, req types.OperationRequest) (int, error) {
	if req.Operation == types.OpInsert {
		intent, err := sqlintent.BuildInsert(req)
		if err != nil {
			return 0, err
		}
		sql, _, err := intent.Render()
		if err != nil {
			return 0, err
		}
		total := 0
		for _, row := range req.Payload {
			var affected int
			err := execWithTimeout(ctx, h.Deps.QueryTimeout, conn, func(tctx context.Context) error {
				var execErr error
				affected, execErr = tx.Exec(tctx, sql, intent.RowParams(row))
				return execErr
			})
			if err != nil {
				return 0, errs.Wrap(errs.KindConnection, err, "executing batch insert row")
			}
			if affected > 0 {
				total += affected
			}
		}
		return total, nil
	}

	strategy := sqlintent.StrategyUpdate
	if req.Operation == types.OpMerge {
		strategy = sqlintent.StrategyMerge
	}

	total := 0
	for i, row := range req.Payload {
		where := whereForIndex(req.Where, i)
		intent, err := sqlintent.BuildUpdate(req.Table, strategy, row, where, nil)
		if err != nil {
			return 0, err
		}
		sql, params, err := intent.Render()
		if err != nil {
			return 0, err
		}
		var affected int
		err = execWithTimeout(ctx, h.Deps.QueryTimeout, conn, func(tctx context.Context) error {
			var execErr error
			affected, execErr = tx.Exec(tctx, sql, params)
			return execErr
		})
		if err != nil {
			return 0, errs.Wrap(errs.KindConnection, err, "executing batch update row")
		}
		if affected > 0 {
			total += affected
		}
	}
	return total, nil
}

func whereForIndex(where []types.Row, i int) types.Row {
	if len(where) == 0 {
		return nil
	}
	if len(where) == 1 {
		return where[0]
	}
	return where[i]
}

func whereSymmetry(payloadLen, whereLen int) error {
	if whereLen != 0 && whereLen != 1 && whereLen != payloadLen {
		return errs.Newf(errs.KindValidation, "where has %d records but payload has %d; must be 0, 1 (shared), or match", whereLen, payloadLen)
	}
	return nil
}
