package editor

import (
	"context"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rendis/bonsai/internal/evaluator"
	"github.com/rendis/bonsai/internal/graph"
	"github.com/rendis/bonsai/internal/logging"
	"github.com/rendis/bonsai/internal/sandbox"
	"github.com/rendis/bonsai/internal/streaming"
	"github.com/rendis/bonsai/pkg/schema"
)

// What caused an evaluation run.
const (
	TriggerDebounce = "debounce"
	TriggerManual   = "manual"
	TriggerRefresh  = "refresh"
)

// RunRecord describes one finished evaluation run.
type RunRecord struct {
	ID        string
	SessionID string
	Trigger   string
	Version   uint64
	Graph     graph.Graph
	Result    *evaluator.Result
	StartedAt time.Time
}

// RunRecorder persists finished runs. Satisfied by *journal.Journal.
type RunRecorder interface {
	RecordRun(ctx context.Context, rec RunRecord) error
}

// Session owns the current State. Events are applied one at a time; every
// accepted transition is published and schedules a debounced evaluation of
// that snapshot. At most one evaluation runs at a time.
type Session struct {
	id        string
	evaluator *evaluator.Evaluator
	debouncer *Debouncer
	hub       streaming.EventHub
	recorder  RunRecorder
	onResult  func(State, *evaluator.Result)
	logger    *slog.Logger

	mu      sync.Mutex
	state   State
	version uint64
	gen     uint64 // bumped by accepted transitions and source changes
	lastGen uint64 // gen of the snapshot behind last
	sources map[string]any
	last    *evaluator.Result
	closed  bool

	evalMu sync.Mutex
}

// snapshot is the input of one evaluation run.
type snapshot struct {
	state   State
	version uint64
	gen     uint64
	sources map[string]any
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	id        string
	clock     Clock
	window    time.Duration
	evaluator *evaluator.Evaluator
	hub       streaming.EventHub
	recorder  RunRecorder
	onResult  func(State, *evaluator.Result)
	logger    *slog.Logger
	sources   map[string]any
}

// WithSessionID fixes the session ID instead of generating one.
func WithSessionID(id string) SessionOption {
	return func(c *sessionConfig) { c.id = id }
}

// WithClock sets the clock driving the debounce timer.
func WithClock(clock Clock) SessionOption {
	return func(c *sessionConfig) { c.clock = clock }
}

// WithDebounceWindow sets the quiet period before evaluation.
func WithDebounceWindow(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.window = d }
}

// WithEvaluator replaces the default evaluator.
func WithEvaluator(e *evaluator.Evaluator) SessionOption {
	return func(c *sessionConfig) { c.evaluator = e }
}

// WithHub publishes snapshots and results on hub.
func WithHub(hub streaming.EventHub) SessionOption {
	return func(c *sessionConfig) { c.hub = hub }
}

// WithRecorder records every finished run.
func WithRecorder(r RunRecorder) SessionOption {
	return func(c *sessionConfig) { c.recorder = r }
}

// WithResultHandler is called after every run with the evaluated snapshot.
func WithResultHandler(fn func(State, *evaluator.Result)) SessionOption {
	return func(c *sessionConfig) { c.onResult = fn }
}

// WithLogger sets the session logger.
func WithLogger(l *slog.Logger) SessionOption {
	return func(c *sessionConfig) { c.logger = l }
}

// WithSources sets the initial external source values.
func WithSources(sources map[string]any) SessionOption {
	return func(c *sessionConfig) { c.sources = sources }
}

// NewSession starts a session at initial. No evaluation is scheduled until
// the first transition or an explicit EvaluateNow.
func NewSession(initial State, opts ...SessionOption) *Session {
	cfg := sessionConfig{window: DefaultDebounceWindow}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.id == "" {
		cfg.id = uuid.NewString()
	}
	if cfg.evaluator == nil {
		cfg.evaluator = evaluator.New()
	}
	if cfg.logger == nil {
		cfg.logger = logging.Discard()
	}

	return &Session{
		id:        cfg.id,
		evaluator: cfg.evaluator,
		debouncer: NewDebouncer(cfg.window, cfg.clock),
		hub:       cfg.hub,
		recorder:  cfg.recorder,
		onResult:  cfg.onResult,
		logger:    cfg.logger,
		state:     initial,
		sources:   maps.Clone(cfg.sources),
	}
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// State returns the current snapshot.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version counts accepted transitions.
func (s *Session) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Sources returns a copy of the external source values.
func (s *Session) Sources() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return maps.Clone(s.sources)
}

// LastResult returns the most recent evaluation result, or nil.
func (s *Session) LastResult() *evaluator.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Dispatch applies ev. A rejected event leaves the state unchanged and
// returns the error together with the current snapshot.
func (s *Session) Dispatch(ctx context.Context, ev Event) (State, error) {
	ctx = s.context(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := Reduce(s.state, ev)
	if err != nil {
		bErr := schema.AsBonsaiError(err, schema.ErrCodeInvalidEvent)
		s.publish(ctx, schema.EventTransitionRejected, bErr.NodeID, map[string]any{
			"event": eventType(ev),
			"error": bErr,
		})
		s.logger.DebugContext(ctx, "transition rejected",
			slog.String("event", eventType(ev)), slog.String("error", bErr.Error()))
		return next, err
	}

	s.state = next
	s.version++
	s.gen++
	s.publish(ctx, schema.EventStateChanged, "", map[string]any{
		"event":   eventType(ev),
		"version": s.version,
		"state":   next,
	})
	s.scheduleLocked()
	return next, nil
}

// SetSources replaces the external source values and schedules evaluation.
func (s *Session) SetSources(ctx context.Context, sources map[string]any) {
	ctx = s.context(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sources = maps.Clone(sources)
	s.gen++
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	s.publish(ctx, schema.EventSourcesChanged, "", map[string]any{"names": names})
	s.scheduleLocked()
}

// SetSourceData replaces the source values with drivers built from plain
// data. Every input of the current graph gets a driver, so an input missing
// from data reads a nil value rather than failing with MISSING_INPUT.
func (s *Session) SetSourceData(ctx context.Context, data map[string]any) {
	s.mu.Lock()
	inputs := s.state.Graph.InputNodes()
	s.mu.Unlock()

	names := make([]string, 0, len(inputs))
	for _, n := range inputs {
		names = append(names, n.Name)
	}
	s.SetSources(ctx, sandbox.DriversFor(names, data))
}

// EvaluateNow runs the current snapshot immediately, dropping any pending
// debounced run. If ctx ends before the pass completes, the partial result
// is returned to the caller only and a debounced run is scheduled again.
func (s *Session) EvaluateNow(ctx context.Context, trigger string) *evaluator.Result {
	s.mu.Lock()
	s.debouncer.Cancel()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	return s.run(s.context(ctx), snap, trigger)
}

// Pending reports whether a debounced evaluation is scheduled.
func (s *Session) Pending() bool {
	return s.debouncer.Pending()
}

// Close drops any pending evaluation. Later transitions no longer schedule
// one.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.debouncer.Cancel()
}

// Caller holds s.mu.
func (s *Session) snapshotLocked() snapshot {
	return snapshot{
		state:   s.state,
		version: s.version,
		gen:     s.gen,
		sources: maps.Clone(s.sources),
	}
}

// scheduleLocked captures the current snapshot for a debounced run. Caller
// holds s.mu.
func (s *Session) scheduleLocked() {
	if s.closed {
		return
	}
	snap := s.snapshotLocked()
	s.debouncer.Trigger(func() {
		s.run(s.context(context.Background()), snap, TriggerDebounce)
	})
}

// run evaluates snap. A cancelled pass is neither stored nor published and
// puts a debounced run back in its place. A pass over a snapshot older than
// the stored result is dropped.
func (s *Session) run(ctx context.Context, snap snapshot, trigger string) *evaluator.Result {
	s.evalMu.Lock()
	defer s.evalMu.Unlock()

	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	started := time.Now()
	st, version := snap.state, snap.version

	res := s.evaluator.Run(ctx, st.Graph, snap.sources)

	if wasCancelled(ctx, res) {
		s.mu.Lock()
		s.scheduleLocked()
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "evaluation cancelled, rescheduled", slog.String("trigger", trigger))
		return res
	}

	s.mu.Lock()
	stale := snap.gen < s.lastGen
	if !stale {
		s.last = res
		s.lastGen = snap.gen
	}
	s.mu.Unlock()
	if stale {
		s.logger.DebugContext(ctx, "dropping stale result",
			slog.String("trigger", trigger), slog.Uint64("version", version))
		return res
	}

	s.publish(ctx, schema.EventOutputsComputed, "", map[string]any{
		"run_id":      runID,
		"trigger":     trigger,
		"version":     version,
		"outputs":     res.Outputs,
		"visited":     res.Visited,
		"errors":      len(res.Errors),
		"duration_ms": res.Duration.Milliseconds(),
	})
	for _, e := range res.Errors {
		s.publish(ctx, schema.EventNodeFailed, e.NodeID, map[string]any{
			"run_id": runID,
			"error":  e,
		})
	}

	if s.recorder != nil {
		rec := RunRecord{
			ID:        runID,
			SessionID: s.id,
			Trigger:   trigger,
			Version:   version,
			Graph:     st.Graph,
			Result:    res,
			StartedAt: started,
		}
		if err := s.recorder.RecordRun(ctx, rec); err != nil {
			s.logger.WarnContext(ctx, "record run failed", slog.String("error", err.Error()))
		}
	}
	if s.onResult != nil {
		s.onResult(st, res)
	}

	s.logger.InfoContext(ctx, "graph evaluated",
		slog.String("trigger", trigger),
		slog.Int("outputs", len(res.Outputs)),
		slog.Int("errors", len(res.Errors)))
	return res
}

func wasCancelled(ctx context.Context, res *evaluator.Result) bool {
	if ctx.Err() != nil {
		return true
	}
	for _, e := range res.Errors {
		if e.Code == schema.ErrCodeCancelled {
			return true
		}
	}
	return false
}

func (s *Session) publish(ctx context.Context, eventType, nodeID string, payload any) {
	if s.hub == nil {
		return
	}
	err := s.hub.Publish(ctx, streaming.StreamEvent{
		SessionID: s.id,
		NodeID:    nodeID,
		EventType: eventType,
		Payload:   payload,
	})
	if err != nil {
		s.logger.DebugContext(ctx, "publish failed", slog.String("event_type", eventType), slog.String("error", err.Error()))
	}
}

func (s *Session) context(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return logging.WithSessionID(ctx, s.id)
}

func eventType(ev Event) string {
	if ev == nil {
		return ""
	}
	return ev.Type()
}
