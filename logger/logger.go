// Package logger builds the gateway's structured logger on top of zap,
// generalizing the teacher's logger/zap package (which wired one *Logger
// per subsystem — Controller, Service, Database, ...) down to the handful
// of scoped loggers this gateway needs, plus the redaction core the spec
// requires (spec.md §9 "Redaction").
package logger

import (
	"os"
	"regexp"
	"strings"

	"github.com/databricks-labs/gatewaydb/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Scoped loggers, one per major subsystem — mirrors the teacher's
// logger.Controller / logger.Service / logger.Database split, narrowed to
// this gateway's component list (spec.md §2). Each discards its output
// until Init replaces it.
var (
	Lifecycle = zap.NewNop()
	SQL       = zap.NewNop()
	Pool      = zap.NewNop()
	Schema    = zap.NewNop()
	UILog     = zap.NewNop()
	Manager   = zap.NewNop()
)

// redactPattern matches field keys that must never reach a log sink in the
// clear (spec.md §9).
var redactPattern = regexp.MustCompile(`(?i)(token|password|secret|key|credential|auth|api_key|apikey|access_token|refresh_token)`)

const redactedValue = "***REDACTED***"

// Init builds the global zap logger from config.Get() and wires the scoped
// loggers. Mirrors the teacher's logger/zap.Init: ReplaceGlobals once, then
// derive named child loggers via Named.
func Init() error {
	cfg := config.Get()

	core := zapcore.NewCore(newEncoder(cfg.LogFormat), newWriter(cfg.LogFile), newLevel(cfg.LogLevel))
	core = &redactingCore{Core: core}

	base := zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	zap.ReplaceGlobals(base)

	Lifecycle = base.Named("lifecycle")
	SQL = base.Named("sqlintent")
	Pool = base.Named("pool")
	Schema = base.Named("schema")
	UILog = base.Named("uilog")
	Manager = base.Named("manager")

	return nil
}

// Clean flushes all buffered log entries. Best-effort: sync errors on
// /dev/stdout are common on some platforms and are intentionally ignored,
// matching the teacher's logger.Clean.
func Clean() {
	for _, l := range []*zap.Logger{Lifecycle, SQL, Pool, Schema, UILog, Manager} {
		if l != nil {
			_ = l.Sync()
		}
	}
}

func newWriter(file string) zapcore.WriteSyncer {
	switch strings.TrimSpace(file) {
	case "", "/dev/stdout":
		return zapcore.AddSync(os.Stdout)
	case "/dev/stderr":
		return zapcore.AddSync(os.Stderr)
	default:
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zapcore.AddSync(os.Stdout)
		}
		return zapcore.AddSync(f)
	}
}

func newLevel(level string) zapcore.Level {
	if level == "" {
		return zapcore.InfoLevel
	}
	l := new(zapcore.Level)
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return *l
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	switch strings.ToLower(format) {
	case "terminal", "console", "text":
		return zapcore.NewConsoleEncoder(cfg)
	default:
		return zapcore.NewJSONEncoder(cfg)
	}
}

// Redact wraps an arbitrary zapcore.Core with the same field redaction the
// primary sink applies. zapcore.NewTee fans the same field slice out to
// every constituent core rather than sharing one redacted copy, so any
// core teed in alongside a logger's primary core — such as uilog's
// per-session ring buffer — must be wrapped individually to get the same
// guarantee (spec.md §9).
func Redact(core zapcore.Core) zapcore.Core {
	return &redactingCore{Core: core}
}

// redactingCore wraps a zapcore.Core and replaces the value of any field
// whose key matches redactPattern before the entry is written, regardless
// of sink (stdout, file, or a ui-log tee core).
type redactingCore struct {
	zapcore.Core
}

func (c *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: c.Core.With(redactFields(fields))}
}

func (c *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, redactFields(fields))
}

func redactFields(fields []zapcore.Field) []zapcore.Field {
	out := make([]zapcore.Field, len(fields))
	for i, f := range fields {
		if redactPattern.MatchString(f.Key) {
			out[i] = zap.String(f.Key, redactedValue)
			continue
		}
		out[i] = f
	}
	return out
}
