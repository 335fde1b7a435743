// Package bootstrap wires every gatewaydb singleton into a running
// manager.Manager, the same way the teacher's bootstrap package wires its
// much larger dependency graph (config, cache, database, providers,
// service, router, job) behind a small ordered Register/Init call list.
// Grounded on the teacher's bootstrap/bootstrap.go Bootstrap()/Run() shape;
// narrowed from the teacher's dozens of optional providers down to this
// gateway's fixed component graph (spec.md §2): config → logger → metrics
// → pool → manifest → schema → ratelimit/admission/warmup → uilog → router
// → lifecycle → manager.
package bootstrap

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/databricks-labs/gatewaydb/admission"
	"github.com/databricks-labs/gatewaydb/config"
	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/handler"
	"github.com/databricks-labs/gatewaydb/lifecycle"
	"github.com/databricks-labs/gatewaydb/logger"
	"github.com/databricks-labs/gatewaydb/manager"
	"github.com/databricks-labs/gatewaydb/manifest"
	"github.com/databricks-labs/gatewaydb/metrics"
	"github.com/databricks-labs/gatewaydb/pool"
	"github.com/databricks-labs/gatewaydb/ratelimit"
	"github.com/databricks-labs/gatewaydb/router"
	"github.com/databricks-labs/gatewaydb/schema"
	"github.com/databricks-labs/gatewaydb/uilog"
	"github.com/databricks-labs/gatewaydb/warmup"
)

var (
	mu          sync.Mutex
	initialized bool
	built       *components
)

// components is the full object graph a successful Bootstrap call produces.
// Bootstrap returns only Manager; the UI-log registry is reachable through
// UILog, and the warmup gate is held here without an accessor.
type components struct {
	uiLog   *uilog.Registry
	warmup  *warmup.Gate
	manager *manager.Manager
}

// Bootstrap initialises every singleton and returns the gateway's sole
// external entry point. drv is the one out-of-scope collaborator spec.md
// §1 names: the physical connection to the warehouse, supplied by the
// caller since this package has no concrete implementation to pick.
// Bootstrap is idempotent: a second call returns the first build's Manager
// without re-running initialisation.
func Bootstrap(drv driver.Driver) (*manager.Manager, error) {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return built.manager, nil
	}

	Register(
		config.Init,
		logger.Init,
		metrics.Init,
	)
	if err := Init(); err != nil {
		return nil, err
	}

	cfg := config.Get()

	breaker := admission.NewBreaker("warehouse", 5, cfg.RateLimitWindow, cfg.WarmupFailureBackoff)
	guardedDrv := &breakerDriver{inner: drv, breaker: breaker}

	connPool := pool.New(guardedDrv)

	m, err := manifest.Load(cfg.ManifestPath)
	if err != nil {
		return nil, err
	}

	schemaProvider := schema.New(connPool, m, cfg.SchemaCacheDir, cfg.SchemaCacheTTL)
	rateLimiter := ratelimit.New(cfg.RateLimitRequests, cfg.RateLimitWindow, cfg.SessionTimeout)
	admissionGate := admission.NewGate(cfg.MaxConcurrentQueries)

	var warmupGate *warmup.Gate
	if cfg.WarmupEnabled {
		warmupGate = warmup.New(guardedDrv, cfg.WarmupSQL, cfg.WarmupTTL, cfg.WarmupFailureBackoff)
	}

	uiLog := uilog.New(cfg.UILogCapacity)

	handlerDeps := handler.Deps{
		MaxBatchSize:     cfg.MaxBatchSize,
		MaxTxStatements:  cfg.MaxTxStatements,
		DefaultReadLimit: cfg.DefaultReadLimit,
		MaxReadLimit:     cfg.MaxReadLimit,
		QueryTimeout:     cfg.QueryTimeout,
	}
	rt := router.Build(handlerDeps, m, schemaProvider)

	orchestrator := lifecycle.New(lifecycle.Deps{
		Pool:            connPool,
		Router:          rt,
		RateLimiter:     rateLimiter,
		Admission:       admissionGate,
		Warmup:          warmupGate,
		Schema:          schemaProvider,
		UILog:           uiLog,
		MaxBatchSize:    cfg.MaxBatchSize,
		MaxTxStatements: cfg.MaxTxStatements,
		CleanupEvery:    cfg.RateLimitCleanupEvery,
	})

	built = &components{
		uiLog:   uiLog,
		warmup:  warmupGate,
		manager: manager.New(orchestrator),
	}

	RegisterCleanup(logger.Clean)

	initialized = true
	return built.manager, nil
}

// UILog returns the per-session UI log registry wired by the most recent
// Bootstrap call, for a UI-log-viewer endpoint to read from. Nil until
// Bootstrap has succeeded.
func UILog() *uilog.Registry {
	mu.Lock()
	defer mu.Unlock()
	if built == nil {
		return nil
	}
	return built.uiLog
}

var cleanupFns []func()

// RegisterCleanup appends fn to the shutdown sequence, run in reverse
// registration order by Cleanup.
func RegisterCleanup(fn func()) {
	if fn != nil {
		cleanupFns = append(cleanupFns, fn)
	}
}

// Cleanup runs every registered cleanup function in reverse order. Panics
// are recovered and logged so one misbehaving collaborator cannot stop the
// rest of the shutdown sequence from running.
func Cleanup() {
	for i := len(cleanupFns) - 1; i >= 0; i-- {
		fn := cleanupFns[i]
		func() {
			defer func() {
				if r := recover(); r != nil {
					zap.S().Errorw("cleanup panicked", "recover", r)
				}
			}()
			fn()
		}()
	}
	cleanupFns = nil
}

// breakerDriver wraps a driver.Driver so every Open/Ping call runs through
// an admission.Breaker: a string of consecutive failures trips the circuit
// and fails fast instead of letting pool.Lease and warmup.Gate keep hammering
// a degraded warehouse (spec.md §4.5 "circuit breaker around the driver").
type breakerDriver struct {
	inner   driver.Driver
	breaker *admission.Breaker
}

func (d *breakerDriver) Open(ctx context.Context, identity driver.Identity) (driver.Conn, error) {
	result, err := d.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return d.inner.Open(ctx, identity)
	})
	if err != nil {
		return nil, err
	}
	return result.(driver.Conn), nil
}

func (d *breakerDriver) Ping(ctx context.Context, sql string) error {
	_, err := d.breaker.Execute(ctx, func(ctx context.Context) (any, error) {
		return nil, d.inner.Ping(ctx, sql)
	})
	return err
}
