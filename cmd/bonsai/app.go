package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/evaluator"
	"github.com/rendis/bonsai/internal/graph"
	"github.com/rendis/bonsai/internal/journal"
	"github.com/rendis/bonsai/internal/logging"
	"github.com/rendis/bonsai/internal/refresh"
	"github.com/rendis/bonsai/internal/sandbox"
	"github.com/rendis/bonsai/internal/streaming"
	"github.com/rendis/bonsai/internal/validation"
)

// app is the wired set of components shared by every command.
type app struct {
	cfg       Config
	logger    *slog.Logger
	sandbox   *sandbox.Sandbox
	hub       *streaming.MemoryHub
	journal   *journal.Journal
	session   *editor.Session
	refresher *refresh.Refresher
}

type appInput struct {
	graphPath   string
	sourcesPath string
	logOut      io.Writer
}

func newApp(ctx context.Context, cfg Config, in appInput) (*app, error) {
	logOut := in.logOut
	if logOut == nil {
		logOut = os.Stderr
	}
	logger := logging.New(logOut, cfg.LogLevel, cfg.LogJSON)

	sb := sandbox.New(sandbox.WithDefaultDialect(cfg.Dialect))
	if err := cfg.validate(sb.Dialects()); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	g, err := loadGraph(in.graphPath)
	if err != nil {
		return nil, err
	}
	check := validation.ValidateGraph(g, sb)
	if !check.Valid() {
		return nil, check.ToError()
	}
	for _, w := range check.Warnings {
		logger.Warn("graph warning", slog.String("path", w.Path), slog.String("message", w.Message))
	}

	data, err := loadSources(in.sourcesPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, sandbox: sb, hub: streaming.NewMemoryHub()}

	opts := []editor.SessionOption{
		editor.WithDebounceWindow(cfg.debounceWindow()),
		editor.WithEvaluator(evaluator.New(
			evaluator.WithSandbox(sb),
			evaluator.WithBindings(sandbox.StandardLibrary()),
			evaluator.WithLogger(logger),
		)),
		editor.WithHub(a.hub),
		editor.WithLogger(logger),
		editor.WithSources(driverSources(g, data)),
	}
	if cfg.JournalPath != "" {
		j, err := journal.Open(ctx, cfg.JournalPath)
		if err != nil {
			return nil, err
		}
		a.journal = j
		opts = append(opts, editor.WithRecorder(j))
	}
	a.session = editor.NewSession(editor.NewState(g, cfg.viewportConfig()), opts...)

	if cfg.RefreshSchedule != "" {
		r, err := refresh.New(cfg.RefreshSchedule, a.session, refresh.WithLogger(logger))
		if err != nil {
			a.close()
			return nil, err
		}
		a.refresher = r
	}
	return a, nil
}

func (a *app) close() {
	if a.refresher != nil {
		a.refresher.Stop()
	}
	if a.session != nil {
		a.session.Close()
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.logger.Warn("close journal", slog.String("error", err.Error()))
		}
	}
}

// loadGraph reads a graph JSON file, or returns the seed graph for "".
func loadGraph(path string) (graph.Graph, error) {
	if path == "" {
		return graph.Seed(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return graph.Graph{}, fmt.Errorf("read graph: %w", err)
	}
	var g graph.Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return graph.Graph{}, fmt.Errorf("parse graph %s: %w", path, err)
	}
	if g.Nodes == nil {
		g.Nodes = map[string]graph.Node{}
	}
	return g, nil
}

// loadSources reads and validates a sources JSON file. "" means no data.
func loadSources(path string) (map[string]any, error) {
	if path == "" {
		return map[string]any{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	v, err := validation.Default()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateSources(raw); err != nil {
		return nil, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("parse sources %s: %w", path, err)
	}
	return data, nil
}

// driverSources gives every input node of g a driver value, carrying the
// matching entry of data when there is one.
func driverSources(g graph.Graph, data map[string]any) map[string]any {
	inputs := g.InputNodes()
	names := make([]string, 0, len(inputs))
	for _, n := range inputs {
		names = append(names, n.Name)
	}
	return sandbox.DriversFor(names, data)
}
