// Package fakedriver is an in-memory stand-in for driver.Driver, used by
// tests across pool/reqctx/schema/warmup/handler/lifecycle/manager/bootstrap.
// It stores no table data; it supports the subset of behaviour those tests
// exercise: Exec/Query with canned
// responses, per-connection cancel tracking, and injectable latency for
// timeout tests. Grounded on spec.md §8 "Testable Properties", which
// assumes a fake driver for exactly this purpose, and on the teacher's
// dependency graph carrying DATA-DOG/go-sqlmock for the equivalent role
// over database/sql (not applicable here since the port is arrow/row/
// pandas shaped, not database/sql shaped).
package fakedriver

import (
	"context"
	"sync"
	"time"

	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/types"
)

// Driver is the fake driver.Driver implementation.
type Driver struct {
	mu        sync.Mutex
	openCount int
	closed    map[driver.Conn]bool

	// PingErr, when set, makes Ping fail with this error.
	PingErr error
	// PingDelay, when set, makes Ping block before returning.
	PingDelay time.Duration
	pingCalls int

	// ExecFunc/QueryFunc let tests script responses; nil means a default
	// success response (affected=1 / empty rows).
	ExecFunc  func(sql string, params map[string]any) (int, error)
	QueryFunc func(sql string, params map[string]any, format types.DataFormat) (*types.QueryResult, error)

	// Delay makes every Exec/Query block, for timeout tests.
	Delay time.Duration
}

func New() *Driver {
	return &Driver{closed: make(map[driver.Conn]bool)}
}

func (d *Driver) OpenCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.openCount
}

func (d *Driver) PingCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pingCalls
}

func (d *Driver) IsClosed(c driver.Conn) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed[c]
}

func (d *Driver) Open(ctx context.Context, identity driver.Identity) (driver.Conn, error) {
	d.mu.Lock()
	d.openCount++
	d.mu.Unlock()
	return &conn{d: d, identity: identity}, nil
}

func (d *Driver) Ping(ctx context.Context, sql string) error {
	d.mu.Lock()
	d.pingCalls++
	delay := d.PingDelay
	err := d.PingErr
	d.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

type conn struct {
	d        *Driver
	identity driver.Identity
	mu       sync.Mutex
	canceled int
}

func (c *conn) CancelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canceled
}

func (c *conn) Exec(ctx context.Context, sql string, params map[string]any) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	if c.d.ExecFunc != nil {
		return c.d.ExecFunc(sql, params)
	}
	return 1, nil
}

func (c *conn) Query(ctx context.Context, sql string, params map[string]any, format types.DataFormat) (*types.QueryResult, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	if c.d.QueryFunc != nil {
		return c.d.QueryFunc(sql, params, format)
	}
	return &types.QueryResult{DataFormat: format, Rows: []types.Row{}, RowCount: 0}, nil
}

func (c *conn) wait(ctx context.Context) error {
	if c.d.Delay == 0 {
		return nil
	}
	select {
	case <-time.After(c.d.Delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *conn) Begin(ctx context.Context) (driver.Tx, error) {
	return &tx{conn: c}, nil
}

func (c *conn) Cancel() error {
	c.mu.Lock()
	c.canceled++
	c.mu.Unlock()
	return nil
}

func (c *conn) Close() error {
	c.d.mu.Lock()
	c.d.closed[c] = true
	c.d.mu.Unlock()
	return nil
}

type tx struct {
	conn      *conn
	committed bool
	rolledBack bool
}

func (t *tx) Exec(ctx context.Context, sql string, params map[string]any) (int, error) {
	return t.conn.Exec(ctx, sql, params)
}

func (t *tx) Query(ctx context.Context, sql string, params map[string]any, format types.DataFormat) (*types.QueryResult, error) {
	return t.conn.Query(ctx, sql, params, format)
}

func (t *tx) Commit() error {
	t.committed = true
	return nil
}

func (t *tx) Rollback() error {
	t.rolledBack = true
	return nil
}
