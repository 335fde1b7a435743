// Package lifecycle implements the ten-phase request pipeline of spec.md
// §4.1: every OperationRequest traverses VALIDATE, THROTTLE, AUTHN, ROUTE,
// WARMUP, RESOLVE, EXECUTE, SHAPE, OBSERVE, and a final cleanup step, in
// that fixed order, always terminating in an OperationResponse rather than
// a raised error. Grounded on the teacher's bootstrap/initializer.go timed,
// sequential-phase execution style (named phases, per-phase duration
// logging) generalised from process startup to per-request execution.
package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/databricks-labs/gatewaydb/admission"
	"github.com/databricks-labs/gatewaydb/driver"
	"github.com/databricks-labs/gatewaydb/errs"
	"github.com/databricks-labs/gatewaydb/handler"
	"github.com/databricks-labs/gatewaydb/logger"
	"github.com/databricks-labs/gatewaydb/metrics"
	"github.com/databricks-labs/gatewaydb/pool"
	"github.com/databricks-labs/gatewaydb/ratelimit"
	"github.com/databricks-labs/gatewaydb/reqctx"
	"github.com/databricks-labs/gatewaydb/router"
	"github.com/databricks-labs/gatewaydb/schema"
	"github.com/databricks-labs/gatewaydb/shape"
	"github.com/databricks-labs/gatewaydb/types"
	"github.com/databricks-labs/gatewaydb/uilog"
	"github.com/databricks-labs/gatewaydb/validate"
	"github.com/databricks-labs/gatewaydb/warmup"
	"go.uber.org/zap/zapcore"
)

// sessionHeader is the header the per-session rate limiter keys THROTTLE
// on (spec.md §4.4: "per-session sliding window... keyed by UI session id
// from scoped context"). x-forwarded-user is the most stable per-caller
// identity among the headers spec.md §6 recognises, falling back to the
// preferred-username header some UI deployments send instead.
const sessionHeader = "X-Forwarded-User"
const sessionHeaderFallback = "X-Forwarded-Preferred-Username"

// userEmailHeader carries the caller's identity for the AUTHN phase's
// logging-context attachment (spec.md §4.1 phase 3).
const userEmailHeader = "X-Forwarded-Email"

// Deps bundles every component the pipeline calls into. Built once at
// startup and shared across all requests; nothing here is request-scoped.
type Deps struct {
	Pool        *pool.Pool
	Router      *router.Router
	RateLimiter *ratelimit.Limiter
	Admission   *admission.Gate
	Warmup      *warmup.Gate
	Schema      *schema.Provider
	UILog       *uilog.Registry

	MaxBatchSize    int
	MaxTxStatements int

	// CleanupEvery gates how often OBSERVE sweeps stale rate-limiter
	// sessions; a zero value disables the sweep.
	CleanupEvery time.Duration
}

// Orchestrator runs requests through the pipeline.
type Orchestrator struct {
	deps Deps

	cleanupMu   chanMutex
	lastCleanup time.Time
	now         func() time.Time
}

// chanMutex is a non-blocking try-lock used only to make the periodic
// cleanup sweep single-flight across concurrent requests without making
// every request wait on a full mutex.
type chanMutex chan struct{}

func newChanMutex() chanMutex {
	c := make(chanMutex, 1)
	c <- struct{}{}
	return c
}

func (c chanMutex) tryLock() bool {
	select {
	case <-c:
		return true
	default:
		return false
	}
}

func (c chanMutex) unlock() { c <- struct{}{} }

// New builds an Orchestrator from its dependencies.
func New(deps Deps) *Orchestrator {
	return &Orchestrator{deps: deps, cleanupMu: newChanMutex(), now: time.Now}
}

// Execute runs one request through all ten phases and always returns a
// populated OperationResponse (spec.md §4.1: "never a raised exception").
func (o *Orchestrator) Execute(parent context.Context, req types.OperationRequest, identity *driver.Identity, correlationID string, headers map[string]string) *types.OperationResponse {
	if correlationID != "" {
		req.CorrelationID = correlationID
	}

	ctx := pool.WithTask(parent)
	ec := reqctx.New(ctx, o.deps.Pool, req, identity, headers)
	defer ec.Close()

	baseLog := logger.Lifecycle
	if o.deps.UILog != nil {
		if sessionID := o.sessionID(ec); sessionID != "" {
			uiCore := logger.Redact(o.deps.UILog.CoreFor(sessionID, zapcore.DebugLevel))
			baseLog = zap.New(zapcore.NewTee(baseLog.Core(), uiCore))
		}
	}
	log := baseLog.With(
		zap.String("correlation_id", ec.CorrelationID),
		zap.String("operation", string(req.Operation)),
		zap.String("mode", string(req.Mode)),
	)
	start := o.now()
	log.Info("request start")

	resp, detail := o.run(ctx, ec, log)

	if detail != nil {
		failure := types.Failure(ec.CorrelationID, toErrorDetail(*detail), detail.Message)
		resp = &failure
	}
	shape.MergeResponse(resp, ec.CorrelationID, resp.Metadata.SchemaResolved, nil)

	o.observe(ec, req, resp, log)

	log.Info("request end",
		zap.Bool("success", resp.Success),
		zap.Duration("elapsed", o.now().Sub(start)),
	)
	return resp
}

// run executes phases 1-8 in order, returning either a response (success
// path, or a handler-produced failure response already shaped) or an
// error Detail for the error-shaping path (any phase before SHAPE failed).
func (o *Orchestrator) run(ctx context.Context, ec *reqctx.ExecutionContext, log *zap.Logger) (*types.OperationResponse, *errs.Detail) {
	req := ec.Request

	if err := o.phase(types.PhaseValidate, func() error { return o.validate(req) }); err != nil {
		return nil, detailOf(err)
	}

	if err := o.phase(types.PhaseThrottle, func() error { return o.throttle(req, ec) }); err != nil {
		return nil, detailOf(err)
	}

	_ = o.phase(types.PhaseAuthn, func() error {
		o.authn(ec, log)
		return nil
	})

	var h handler.Handler
	if err := o.phase(types.PhaseRoute, func() error {
		var routeErr error
		h, routeErr = o.deps.Router.Resolve(req)
		return routeErr
	}); err != nil {
		return nil, detailOf(err)
	}

	_ = o.phase(types.PhaseWarmup, func() error {
		o.warmupIfNeeded(ctx, req)
		return nil
	})

	var resolvedColumns []string
	var resolvedSchema []types.ColumnMetadata
	schemaResolved := false
	_ = o.phase(types.PhaseResolve, func() error {
		resolvedColumns, resolvedSchema, schemaResolved = o.resolveSchema(ctx, req, log)
		return nil
	})

	var out handler.Output
	if err := o.phase(types.PhaseExecute, func() error {
		var execErr error
		out, execErr = o.execute(ctx, req, h, ec)
		return execErr
	}); err != nil {
		return nil, detailOf(err)
	}

	var resp *types.OperationResponse
	_ = o.phase(types.PhaseShape, func() error {
		resp = o.shapeOutput(out, ec, resolvedColumns, resolvedSchema, schemaResolved)
		return nil
	})

	return resp, nil
}

func (o *Orchestrator) phase(name types.Phase, fn func() error) error {
	start := time.Now()
	err := fn()
	metrics.PhaseDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())
	return err
}

func (o *Orchestrator) validate(req types.OperationRequest) error {
	if !req.Operation.Valid() {
		return errs.Newf(errs.KindValidation, "invalid operation: %q", req.Operation)
	}
	if !req.Mode.Valid() {
		return errs.Newf(errs.KindValidation, "invalid mode: %q", req.Mode)
	}

	if req.Operation == types.OpTransaction {
		if err := validate.TransactionDepth(len(req.Operations), o.deps.MaxTxStatements); err != nil {
			return err
		}
		for _, sub := range req.Operations {
			if err := validate.TransactionMode(sub); err != nil {
				return err
			}
		}
		return nil
	}

	if req.Operation == types.OpSchema {
		if !req.Scenario.Valid() {
			return errs.Newf(errs.KindValidation, "invalid schema scenario: %q", req.Scenario)
		}
		return nil
	}

	if req.Operation.IsMutation() && req.Mode == types.ModeBatch {
		if err := validate.BatchSize(len(req.Payload), o.deps.MaxBatchSize); err != nil {
			return err
		}
		if req.Operation != types.OpInsert {
			if err := validate.BatchWhereSymmetry(len(req.Payload), len(req.Where)); err != nil {
				return err
			}
		}
	}
	if req.Operation == types.OpRead && req.Mode == types.ModeBatch {
		if err := validate.BatchSize(len(req.Where), o.deps.MaxBatchSize); err != nil {
			return err
		}
	}

	return nil
}

func (o *Orchestrator) throttle(req types.OperationRequest, ec *reqctx.ExecutionContext) error {
	if req.Operation == types.OpHeartbeat {
		return nil
	}
	sessionID := o.sessionID(ec)
	if !o.deps.RateLimiter.Admit(sessionID) {
		return errs.Newf(errs.KindThrottle, "session %q exceeded the request rate", sessionID)
	}
	return nil
}

// sessionID extracts the UI session identity the rate limiter and uilog
// registry key on (spec.md §4.4, §9 "UI log capture").
func (o *Orchestrator) sessionID(ec *reqctx.ExecutionContext) string {
	if id := ec.Header(sessionHeader); id != "" {
		return id
	}
	return ec.Header(sessionHeaderFallback)
}

// authn is a soft, non-failing check: it only attaches identity
// information to the log context (spec.md §4.1 phase 3: "surface no error
// unless a future authz stage is added").
func (o *Orchestrator) authn(ec *reqctx.ExecutionContext, log *zap.Logger) {
	method := types.AuthMethodServicePrincipal
	if ec.HasIdentity && ec.Identity.IsOBO() {
		method = types.AuthMethodOBO
	} else if !ec.HasIdentity {
		method = types.AuthMethodLocal
	}
	if email := ec.Header(userEmailHeader); email != "" {
		log.Debug("authn", zap.String("auth_method", string(method)), zap.String("user_email", email))
	} else {
		log.Debug("authn", zap.String("auth_method", string(method)))
	}
}

func (o *Orchestrator) warmupIfNeeded(ctx context.Context, req types.OperationRequest) {
	if req.Operation == types.OpHeartbeat || o.deps.Warmup == nil {
		return
	}
	_ = o.deps.Warmup.Ensure(ctx) // best-effort; Ensure already logs failures
}

// resolveSchema implements step 6: only for READ, non-NAMED mode, with
// wildcard columns. Failures are logged and swallowed.
func (o *Orchestrator) resolveSchema(ctx context.Context, req types.OperationRequest, log *zap.Logger) (columns []string, cols []types.ColumnMetadata, resolved bool) {
	if req.Operation != types.OpRead || req.Mode == types.ModeNamed || !req.WildcardColumns() || o.deps.Schema == nil {
		return nil, nil, false
	}
	catalog, schemaName, table := req.TableParts()
	if catalog == "" {
		return nil, nil, false
	}
	ts, err := o.deps.Schema.Get(ctx, catalog, schemaName, table)
	if err != nil {
		log.Warn("schema resolution failed, continuing without it", zap.Error(err))
		return nil, nil, false
	}
	names := make([]string, len(ts.Columns))
	for i, c := range ts.Columns {
		names[i] = c.Name
	}
	return names, ts.Columns, true
}

// execute implements step 7: admission-gated handler invocation for
// everything except HEARTBEAT and SCHEMA.
func (o *Orchestrator) execute(ctx context.Context, req types.OperationRequest, h handler.Handler, ec *reqctx.ExecutionContext) (handler.Output, error) {
	needsAdmission := req.Operation != types.OpHeartbeat && req.Operation != types.OpSchema
	if needsAdmission {
		release, ok := o.deps.Admission.TryAcquire()
		if !ok {
			return handler.Output{}, errs.New(errs.KindAdmission, "admission gate is at capacity")
		}
		defer release()
	}
	return h.Handle(ctx, ec)
}

// shapeOutput implements step 8.
func (o *Orchestrator) shapeOutput(out handler.Output, ec *reqctx.ExecutionContext, resolvedColumns []string, resolvedSchema []types.ColumnMetadata, schemaResolved bool) *types.OperationResponse {
	if out.Query != nil {
		q := out.Query
		if schemaResolved && len(q.Columns) == 0 {
			q.Columns = resolvedColumns
			q.Schema = resolvedSchema
			q.SchemaResolved = true
		}
		return shape.BuildResponse(q, ec.Request.UIFormat, ec.CorrelationID)
	}
	if out.Response != nil {
		fallback := toErrorDetail(errs.ToDetail(errs.New(errs.KindUnknown, "handler reported failure without an error detail")))
		return shape.MergeResponse(out.Response, ec.CorrelationID, schemaResolved, &fallback)
	}
	return &types.OperationResponse{Success: true, Metadata: types.Metadata{CorrelationID: ec.CorrelationID}}
}

// observe implements step 9: a single structured summary line plus the
// periodic stale-session sweep.
func (o *Orchestrator) observe(ec *reqctx.ExecutionContext, req types.OperationRequest, resp *types.OperationResponse, log *zap.Logger) {
	metrics.RequestsTotal.WithLabelValues(string(req.Operation), string(req.Mode), boolLabel(resp.Success)).Inc()
	log.Info("request summary",
		zap.Bool("success", resp.Success),
		zap.Int("affected_rows", resp.AffectedRows),
		zap.Int("row_count", resp.Metadata.RowCount),
	)

	if o.deps.CleanupEvery <= 0 {
		return
	}
	if !o.cleanupMu.tryLock() {
		return
	}
	defer o.cleanupMu.unlock()
	now := o.now()
	if o.lastCleanup.IsZero() || now.Sub(o.lastCleanup) >= o.deps.CleanupEvery {
		evicted := o.deps.RateLimiter.Cleanup()
		o.lastCleanup = now
		if evicted > 0 {
			log.Debug("evicted stale rate-limiter sessions", zap.Int("evicted", evicted))
		}
	}
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func detailOf(err error) *errs.Detail {
	d := errs.ToDetail(err)
	return &d
}

func toErrorDetail(d errs.Detail) types.ErrorDetail {
	return types.ErrorDetail{
		Category: string(d.Category),
		Code:     d.Code,
		Message:  d.Message,
		Field:    d.Field,
	}
}
