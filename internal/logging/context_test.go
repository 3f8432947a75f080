package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()

	assert.Equal(t, "", SessionID(ctx))
	assert.Equal(t, "", RunID(ctx))
	assert.Equal(t, "", NodeID(ctx))

	ctx = WithSessionID(ctx, "sess-1")
	ctx = WithRunID(ctx, "run-9")
	ctx = WithNodeID(ctx, "B")

	assert.Equal(t, "sess-1", SessionID(ctx))
	assert.Equal(t, "run-9", RunID(ctx))
	assert.Equal(t, "B", NodeID(ctx))
}

func TestLogWith(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx := WithNodeID(WithSessionID(context.Background(), "sess-abc"), "C")
	LogWith(ctx, logger).Info("output recorded")

	output := buf.String()
	assert.Contains(t, output, "session_id=sess-abc")
	assert.Contains(t, output, "node_id=C")
	assert.NotContains(t, output, "run_id")
	assert.Contains(t, output, "output recorded")
}

func TestCorrelationHandler(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(NewCorrelationHandler(inner))

	ctx := WithRunID(WithSessionID(context.Background(), "sess-auto"), "run-auto")
	logger.InfoContext(ctx, "auto inject")

	output := buf.String()
	assert.Contains(t, output, `"session_id":"sess-auto"`)
	assert.Contains(t, output, `"run_id":"run-auto"`)
	assert.NotContains(t, output, "node_id")
}

func TestCorrelationHandlerEmptyContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewCorrelationHandler(slog.NewJSONHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "bare log")

	output := buf.String()
	assert.NotContains(t, output, "session_id")
	assert.Contains(t, output, "bare log")
}

func TestCorrelationHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewCorrelationHandler(slog.NewJSONHandler(&buf, nil))
	logger := slog.New(handler.WithAttrs([]slog.Attr{slog.String("component", "evaluator")}))

	logger.InfoContext(WithNodeID(context.Background(), "B"), "with attrs")

	output := buf.String()
	assert.Contains(t, output, `"node_id":"B"`)
	assert.Contains(t, output, `"component":"evaluator"`)
}

func TestNew(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "warn", true)

	logger.InfoContext(context.Background(), "hidden")
	logger.WarnContext(WithSessionID(context.Background(), "s"), "shown")

	output := buf.String()
	assert.NotContains(t, output, "hidden")
	assert.Contains(t, output, `"session_id":"s"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
