package handler

import (
	"context"

	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/reqctx"
	"github.com/databricks-labs/gatewaydb/sqlintent"
	"github.com/databricks-labs/gatewaydb/types"
	"github.com/databricks-labs/gatewaydb/validate"
)

// Transaction opens one connection's transaction and runs its
// sub-requests strictly in declared order, accumulating affected_rows;
// it commits on success and rolls back on the first failure (spec.md
// §4.9, §5 "Ordering guarantees").
type Transaction struct {
	Deps Deps
}

func (h *Transaction) Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error) {
	req := ec.Request
	if err := h.boundDepth(len(req.Operations)); err != nil {
		return Output{}, err
	}

	conn, release, err := ec.LeaseConnection()
	if err != nil {
		return Output{}, err
	}
	defer release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "opening transaction")
	}

	total := 0
	for _, sub := range req.Operations {
		if err := validate.TransactionMode(sub); err != nil {
			_ = tx.Rollback()
			return Output{}, err
		}
		affected, err := execSubRequest(ctx, h.Deps, conn, tx, sub)
		if err != nil {
			_ = tx.Rollback()
			return Output{}, err
		}
		total += affected
	}

	if err := tx.Commit(); err != nil {
		return Output{}, errs.Wrap(errs.KindConnection, err, "committing transaction")
	}

	return responseOutput(&types.OperationResponse{
		Success:      true,
		AffectedRows: total,
		Message:      "transaction succeeded",
		Metadata:     types.Metadata{CorrelationID: ec.CorrelationID},
	}), nil
}

func (h *Transaction) boundDepth(n int) error {
	if n > h.Deps.MaxTxStatements {
		return errs.Newf(errs.KindValidation, "transaction has %d statements, exceeds maximum %d", n, h.Deps.MaxTxStatements)
	}
	return nil
}

// execSubRequest compiles and executes one transaction sub-request against
// the already-open tx, returning its affected row count. Like every other
// mutation path, each sub-statement runs under the handler's configured
// per-statement timeout (spec.md §4.3) rather than the unbounded
// transaction-wide context.
func execSubRequest(ctx context.Context, deps Deps, conn driver.Conn, tx driver.Tx, sub types.OperationRequest) (int, error) {
	switch sub.Operation {
	case types.OpInsert, types.OpUpdate, types.OpMerge:
		return writeOne(ctx, deps, conn, tx, sub)

	case types.OpDelete:
		if len(sub.Where) == 0 {
			return 0, errs.New(errs.KindValidation, "delete sub-operation requires a primary-key where clause")
		}
		intent, err := sqlintent.BuildDelete(sub.Table, sub.Where)
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
			return 0, errs.Wrap(errs.KindConnection, err, "executing transaction delete sub-operation")
		}
		return affected, nil

	default:
		return 0, errs.Newf(errs.KindRouting, "unsupported transaction sub-operation: %q", sub.Operation)
	}
}
