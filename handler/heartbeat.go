package handler

import (
	"context"

	"github.com/databricks-labs/gatewaydb/reqctx"
	"github.com/databricks-labs/gatewaydb/types"
)

// Heartbeat runs a best-effort SELECT 1 under the caller's identity
// (OBO when supplied, per spec.md §4.9) and always returns a status
// object, success or failure, never propagating the underlying error.
type Heartbeat struct {
	Deps Deps
}

func (h *Heartbeat) Handle(ctx context.Context, ec *reqctx.ExecutionContext) (Output, error) {
	conn, release, err := ec.LeaseConnection()
	if err != nil {
		return responseOutput(heartbeatResponse(ec.CorrelationID, false)), nil
	}
	defer release()

	_, err = conn.Exec(ctx, "SELECT 1", nil)
	return responseOutput(heartbeatResponse(ec.CorrelationID, err == nil)), nil
}

func heartbeatResponse(correlationID string, healthy bool) *types.OperationResponse {
	status := "ok"
	if !healthy {
		status = "unavailable"
	}
	return &types.OperationResponse{
		Success: healthy,
		Data:    map[string]any{"status": status},
		Message: status,
		Metadata: types.Metadata{CorrelationID: correlationID},
	}
}
