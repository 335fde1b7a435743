// Package reqctx implements the ExecutionContext described in spec.md §3:
// a task-scoped bundle carrying the connection pool, the original request,
// a correlation id, an optional caller identity, request headers with
// case-insensitive lookup, and a transaction flag, plus the method that
// leases a connection under either the caller's identity or the service
// principal. Grounded on the teacher's http.Header-based header handling
// (net/http's textproto.MIMEHeader canonicalisation) for the
// case-insensitive lookup requirement.
package reqctx

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/pool"
	"github.com/databricks-labs/gatewaydb/types"
)

// ExecutionContext is the task-scoped state threaded through the lifecycle
// phases and into the handler that ultimately serves a request.
type ExecutionContext struct {
	ctx           context.Context
	pool          *pool.Pool
	Request       types.OperationRequest
	CorrelationID string
	Identity      driver.Identity
	HasIdentity   bool
	Headers       http.Header
	InTransaction bool
}

// New builds an ExecutionContext. ctx must already carry a task-local pool
// slot (see pool.WithTask); headers uses net/http's canonicalisation so
// lookups are case-insensitive regardless of how the caller built the map.
func New(ctx context.Context, p *pool.Pool, request types.OperationRequest, identity *driver.Identity, headers map[string]string) *ExecutionContext {
	correlationID := request.CorrelationID
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}

	ec := &ExecutionContext{
		ctx:           ctx,
		pool:          p,
		Request:       request,
		CorrelationID: correlationID,
		Headers:       h,
	}
	if identity != nil {
		ec.Identity = *identity
		ec.HasIdentity = true
	}
	return ec
}

// Context returns the task-local context.Context this ExecutionContext was
// built against, for passing to pool/driver calls.
func (ec *ExecutionContext) Context() context.Context {
	return ec.ctx
}

// Header looks up a request header case-insensitively.
func (ec *ExecutionContext) Header(name string) string {
	return ec.Headers.Get(name)
}

// LeaseConnection leases a connection using the caller's identity if one was
// supplied on this request, falling back to the shared service principal
// otherwise (spec.md §3: "leases a connection using either the user token
// or the shared service principal").
func (ec *ExecutionContext) LeaseConnection() (driver.Conn, func(), error) {
	identity := driver.Identity{}
	if ec.HasIdentity {
		identity = ec.Identity
	}
	return ec.pool.Lease(ec.ctx, identity)
}

// LeaseServicePrincipal leases a connection under the shared service
// principal regardless of any caller identity on this request. Used by the
// schema scenario handlers; schema fetches lease from the pool directly and
// warmup pings through Driver.Ping.
func (ec *ExecutionContext) LeaseServicePrincipal() (driver.Conn, func(), error) {
	return ec.pool.Lease(ec.ctx, driver.Identity{})
}

// Close releases any cached connections leased during this task.
func (ec *ExecutionContext) Close() {
	ec.pool.CloseTask(ec.ctx)
}
