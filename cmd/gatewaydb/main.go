// Command gatewaydb is the gateway's process entrypoint (SPEC_FULL.md §1
// "[FULL] Process shape"): it wires every singleton through
// bootstrap.Bootstrap, serves manager.Manager behind an HTTP handler, and
// exposes /metrics and /healthz. Grounded on the teacher's bootstrap.Run
// (signal handling, RegisterGo/RegisterCleanup, graceful shutdown on
// SIGINT/SIGTERM/SIGQUIT), narrowed from the teacher's grpc+HTTP+debug
// server fan-out down to the one HTTP mux this gateway needs.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/databricks-labs/gatewaydb/bootstrap"
	"github.com/databricks-labs/gatewaydb/config"
	"github.com/databricks-labs/gatewaydb/internal/fakedriver"
	"github.com/databricks-labs/gatewaydb/manager"
	"github.com/databricks-labs/gatewaydb/types"
)

func main() {
	// The physical warehouse driver is explicitly out of scope (spec.md
	// §1): a concrete implementation satisfying driver.Driver plugs in
	// here. fakedriver stands in so the wiring below compiles into a
	// runnable process without a live warehouse.
	drv := fakedriver.New()

	mgr, err := bootstrap.Bootstrap(drv)
	if err != nil {
		zap.S().Fatalw("bootstrap failed", "error", err)
	}
	defer bootstrap.Cleanup()

	cfg := config.Get()

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: newMux(mgr),
	}

	errCh := make(chan error, 1)
	go func() {
		zap.S().Infow("listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case sig := <-sigCh:
		zap.S().Infow("shutting down", "signal", sig)
	case err := <-errCh:
		if err != nil {
			zap.S().Errorw("server error", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Warnw("graceful shutdown failed", "error", err)
	}
}

// newMux builds the process's HTTP surface: /metrics for Prometheus
// scraping, /healthz for liveness, and /execute for manager.Manager.
func newMux(mgr *manager.Manager) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", handleHealthz)
	mux.HandleFunc("/execute", handleExecute(mgr))
	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// executeRequest is the wire shape for /execute: the OperationRequest fields
// of spec.md §3 (all already JSON-serialisable — Row/KV's exported fields
// round-trip as ordered JSON arrays, preserving the column order spec.md
// §4.2 requires) plus the obo_token the manager façade accepts alongside
// headers (spec.md §6); correlation_id travels as part of OperationRequest.
type executeRequest struct {
	types.OperationRequest
	OBOToken string `json:"obo_token,omitempty"`
}

func handleExecute(mgr *manager.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		var req executeRequest
		if err := json.Unmarshal(body, &req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		headers := make(map[string]string, len(r.Header))
		for k := range r.Header {
			headers[k] = r.Header.Get(k)
		}

		resp := mgr.Execute(r.Context(), req.OperationRequest, req.OBOToken, req.OperationRequest.CorrelationID, headers)

		w.Header().Set("Content-Type", "application/json")
		if !resp.Success {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
