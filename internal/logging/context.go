// Package logging carries correlation IDs (session, run, node) on the context
// and injects them into slog records.
package logging

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	sessionIDKey ctxKey = iota
	runIDKey
	nodeIDKey
)

// WithSessionID returns a context carrying the editor session ID.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// WithRunID returns a context carrying the evaluation run ID.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// WithNodeID returns a context carrying the graph node ID being evaluated.
func WithNodeID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, nodeIDKey, id)
}

// SessionID extracts the session ID from the context, or "" if absent.
func SessionID(ctx context.Context) string {
	v, _ := ctx.Value(sessionIDKey).(string)
	return v
}

// RunID extracts the run ID from the context, or "" if absent.
func RunID(ctx context.Context) string {
	v, _ := ctx.Value(runIDKey).(string)
	return v
}

// NodeID extracts the node ID from the context, or "" if absent.
func NodeID(ctx context.Context) string {
	v, _ := ctx.Value(nodeIDKey).(string)
	return v
}

// correlationAttrs lists the non-empty correlation IDs found on ctx.
func correlationAttrs(ctx context.Context) []slog.Attr {
	var attrs []slog.Attr
	if v := SessionID(ctx); v != "" {
		attrs = append(attrs, slog.String("session_id", v))
	}
	if v := RunID(ctx); v != "" {
		attrs = append(attrs, slog.String("run_id", v))
	}
	if v := NodeID(ctx); v != "" {
		attrs = append(attrs, slog.String("node_id", v))
	}
	return attrs
}

// LogWith returns a logger enriched with the correlation IDs on ctx.
func LogWith(ctx context.Context, logger *slog.Logger) *slog.Logger {
	for _, a := range correlationAttrs(ctx) {
		logger = logger.With(a)
	}
	return logger
}

// CorrelationHandler wraps an slog.Handler and adds the correlation IDs of
// the record's context, so logger.InfoContext(ctx, ...) is enough.
type CorrelationHandler struct {
	inner slog.Handler
}

// NewCorrelationHandler wraps inner.
func NewCorrelationHandler(inner slog.Handler) *CorrelationHandler {
	return &CorrelationHandler{inner: inner}
}

func (h *CorrelationHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *CorrelationHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(correlationAttrs(ctx)...)
	return h.inner.Handle(ctx, r)
}

func (h *CorrelationHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *CorrelationHandler) WithGroup(name string) slog.Handler {
	return &CorrelationHandler{inner: h.inner.WithGroup(name)}
}
