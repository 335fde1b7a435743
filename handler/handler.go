// Package handler implements the stateless per-operation handlers of
// spec.md §4.9: one handler per (operation, mode[, scenario]) tuple, each
// executing via a leased connection and producing either a QueryResult or
// a complete OperationResponse. Grounded on the teacher's service-layer
// convention of small, explicitly-constructed, stateless request handlers
// rather than a reflection-driven dispatcher.
package handler

import (
	"context"
	"time"

	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/reqctx"
	"github.com/databricks-labs/gatewaydb/types"
)

// Output is a handler's result: exactly one of Query/Response is set.
// Lifecycle's SHAPE phase normalises either into the final
// OperationResponse (spec.md §4.1 phase 8).
type Output struct {
	Query    *types.QueryResult
	Response *types.OperationResponse
}

// Handler is implemented by every operation/mode[/scenario] handler.
type Handler interface {
	Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error)
}

// Deps bundles the collaborators handlers need, built once at startup and
// shared across all handler instances (all of it is either immutable or
// internally synchronized, matching spec.md §5's shared-state rules).
type Deps struct {
	MaxBatchSize    int
	MaxTxStatements int
	DefaultReadLimit int
	MaxReadLimit    int
	QueryTimeout    time.Duration
}

// execWithTimeout runs fn against conn under the per-statement wall-clock
// deadline of spec.md §4.3/§5: on expiry, it asks the connection to cancel,
// waits up to cancelJoinGrace for fn to return, and maps the failure to
// KindTimeout. A driver error returned once the deadline has passed
// (driver-native cancellation) is mapped to KindTimeout as well.
func execWithTimeout(ctx context.Context, timeout time.Duration, conn driver.Conn, fn func(ctx context.Context) error) error {
	const cancelJoinGrace = time.Second
	if timeout <= 0 {
		return fn(ctx)
	}
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn(timeoutCtx) }()

	select {
	case err := <-done:
		if err != nil && timeoutCtx.Err() == context.DeadlineExceeded {
			return errs.Wrap(errs.KindTimeout, err, "driver cancelled the statement at the query timeout")
		}
		return err
	case <-timeoutCtx.Done():
		_ = conn.Cancel()
		select {
		case <-done:
		case <-time.After(cancelJoinGrace):
		}
		return errs.New(errs.KindTimeout, "statement exceeded the configured query timeout")
	}
}

func queryOutput(q *types.QueryResult) Output           { return Output{Query: q} }
func responseOutput(r *types.OperationResponse) Output  { return Output{Response: r} }
