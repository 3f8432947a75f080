// Package refresh re-evaluates a session on a cron schedule so fragments
// with impure bindings (clocks, fetched data) stay current without edits.
package refresh

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/evaluator"
	"github.com/rendis/bonsai/internal/logging"
	"github.com/rendis/bonsai/pkg/schema"
)

// Target is what a Refresher drives. Satisfied by *editor.Session.
type Target interface {
	EvaluateNow(ctx context.Context, trigger string) *evaluator.Result
}

var _ Target = (*editor.Session)(nil)

// parser accepts standard five-field specs, an optional leading seconds
// field, and descriptors such as "@hourly" or "@every 30s".
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseSchedule validates a schedule expression.
func ParseSchedule(expr string) (cron.Schedule, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid refresh schedule %q", expr).
			WithCause(err).
			WithDetails(map[string]any{"schedule": expr})
	}
	return sched, nil
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Refresher) { r.logger = l }
}

// WithClock replaces the wall clock and timer source.
func WithClock(now func() time.Time, after func(time.Duration) <-chan time.Time) Option {
	return func(r *Refresher) {
		r.now = now
		r.after = after
	}
}

// Refresher forces a re-evaluation of its target at each scheduled time.
// A tick that fires while the previous refresh is still running is skipped.
type Refresher struct {
	expr     string
	schedule cron.Schedule
	target   Target
	logger   *slog.Logger
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}

	inflight atomic.Bool
	runs     atomic.Int64
}

// New parses expr and builds a Refresher for target.
func New(expr string, target Target, opts ...Option) (*Refresher, error) {
	sched, err := ParseSchedule(expr)
	if err != nil {
		return nil, err
	}
	r := &Refresher{
		expr:     expr,
		schedule: sched,
		target:   target,
		logger:   logging.Discard(),
		now:      time.Now,
		after:    time.After,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Schedule returns the expression the Refresher was built with.
func (r *Refresher) Schedule() string { return r.expr }

// Runs reports how many refreshes have completed.
func (r *Refresher) Runs() int64 { return r.runs.Load() }

// NextRun returns the first scheduled time strictly after from.
func (r *Refresher) NextRun(from time.Time) time.Time {
	return r.schedule.Next(from)
}

// Start launches the background loop.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done != nil {
		return fmt.Errorf("refresher already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	go r.loop(loopCtx, r.done)
	r.logger.Info("refresh started", slog.String("schedule", r.expr))
	return nil
}

// Stop cancels the loop and waits for it to exit. Safe to call when not started.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil
	r.logger.Info("refresh stopped")
}

func (r *Refresher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		now := r.now()
		next := r.schedule.Next(now)
		if next.IsZero() {
			r.logger.Warn("refresh schedule has no future activations", slog.String("schedule", r.expr))
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-r.after(next.Sub(now)):
			r.Tick(ctx)
		}
	}
}

// Tick runs one refresh unless another is still in flight. It reports
// whether a refresh ran.
func (r *Refresher) Tick(ctx context.Context) bool {
	if !r.inflight.CompareAndSwap(false, true) {
		r.logger.Debug("refresh skipped, previous still running")
		return false
	}
	defer r.inflight.Store(false)

	res := r.target.EvaluateNow(ctx, editor.TriggerRefresh)
	r.runs.Add(1)
	if res != nil && !res.OK() {
		r.logger.Warn("refresh produced errors",
			slog.Int("errors", len(res.Errors)),
			slog.Any("failed_nodes", res.FailedNodes()),
		)
	}
	return true
}
