// Package driver defines the abstract port to the remote warehouse. The
// concrete physical driver (the real Databricks/Unity-Catalog SQL
// connection) is explicitly out of scope (spec.md §1): this package only
// declares the interface a concrete implementation must satisfy, plus a
// Conn lease abstraction the pool package hands out. Grounded on the
// teacher's database/database.go DB-agnostic helper shape, generalized to
// an interface because gorm (the teacher's concrete binding) cannot express
// the rows/columnar/frame three-shape result the spec requires.
package driver

import (
	"context"

	"github.com/databricks-labs/gatewaydb/types"
)

// Identity selects which credential a Conn is leased under.
type Identity struct {
	// Token is empty for a service-principal lease, non-empty for an
	// on-behalf-of lease bound to this bearer token.
	Token string
}

func (i Identity) IsOBO() bool { return i.Token != "" }

// Driver opens connections against the warehouse. A concrete implementation
// wraps the real wire protocol; for tests, internal/fakedriver provides an
// in-memory stand-in.
type Driver interface {
	// Open returns a new Conn under the given identity. The pool package is
	// responsible for reuse; Driver.Open always produces a fresh physical
	// connection.
	Open(ctx context.Context, identity Identity) (Conn, error)

	// Ping is used by the warmup gate; it must always run under a
	// service-principal identity.
	Ping(ctx context.Context, sql string) error
}

// Conn is one physical connection, capable of producing a result in any of
// the three shapes spec.md §2 names (rows/columnar/frame).
type Conn interface {
	// Exec runs a statement and returns the number of affected rows, or -1
	// if the driver does not report a count (spec.md §8: -1 means success).
	Exec(ctx context.Context, sql string, params map[string]any) (affected int, err error)

	// Query runs a statement and materialises the result in format.
	Query(ctx context.Context, sql string, params map[string]any, format types.DataFormat) (*types.QueryResult, error)

	// Begin starts an explicit transaction on this connection. Required by
	// WriteSingle/WriteBatch/DeleteSingle/DeleteBatch/Transaction handlers
	// (spec.md §4.9).
	Begin(ctx context.Context) (Tx, error)

	// Cancel asks the driver to cancel the in-flight statement on this
	// connection (used by the per-statement timeout, spec.md §4.3/§5).
	Cancel() error

	// Close releases the physical connection. Best-effort: close errors are
	// logged, never propagated (spec.md §4.3).
	Close() error
}

// Tx is an explicit transaction on one Conn.
type Tx interface {
	Exec(ctx context.Context, sql string, params map[string]any) (affected int, err error)
	Query(ctx context.Context, sql string, params map[string]any, format types.DataFormat) (*types.QueryResult, error)
	Commit() error
	Rollback() error
}
