// Package manager implements the gateway's sole external entry point
// (spec.md §6): execute(request, obo_token?, correlation_id?, headers?) ->
// OperationResponse. It is the thinnest possible wrapper over
// lifecycle.Orchestrator — translating the obo_token parameter into a
// driver.Identity and normalising the recognised forwarded-auth headers —
// so every other package can be built, tested, and reasoned about without
// ever touching this shape. Grounded on the teacher's service-layer facade
// convention (one exported method per external capability, internals
// delegated to dedicated packages).
package manager

import (
	"context"
	"strings"

	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/lifecycle"
	"github.com/databricks-labs/gatewaydb/types"
)

// AccessTokenHeader carries an OBO bearer token when the caller passes it
// via headers instead of the obo_token parameter directly (spec.md §6).
const AccessTokenHeader = "X-Forwarded-Access-Token"

// Manager is the façade described by spec.md §6. Holding it is the only
// thing a caller (an HTTP handler, a CLI, an RPC server) needs to do.
type Manager struct {
	orchestrator *lifecycle.Orchestrator
}

// New wraps an already-built Orchestrator behind the façade.
func New(orchestrator *lifecycle.Orchestrator) *Manager {
	return &Manager{orchestrator: orchestrator}
}

// Execute is the gateway's sole API (spec.md §6). oboToken and headers are
// both optional; an obo_token parameter takes precedence over an
// equivalent header if both are supplied.
func (m *Manager) Execute(ctx context.Context, request types.OperationRequest, oboToken string, correlationID string, headers map[string]string) *types.OperationResponse {
	token := oboToken
	if token == "" {
		token = headerLookup(headers, AccessTokenHeader)
	}

	var identity *driver.Identity
	if token != "" {
		identity = &driver.Identity{Token: token}
	}

	return m.orchestrator.Execute(ctx, request, identity, correlationID, headers)
}

// headerLookup is a case-insensitive lookup over the plain map[string]string
// the façade accepts (headers become a canonicalised http.Header only once
// inside reqctx.New).
func headerLookup(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}
