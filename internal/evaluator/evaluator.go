// Package evaluator propagates values through a graph: every input node
// delivers its external source, code nodes transform what they receive and
// output nodes record the value under their name.
package evaluator

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/rendis/bonsai/internal/graph"
	"github.com/rendis/bonsai/internal/logging"
	"github.com/rendis/bonsai/internal/sandbox"
	"github.com/rendis/bonsai/pkg/schema"
)

// Result is the outcome of one evaluation pass.
type Result struct {
	Outputs  map[string]any        `json:"outputs"`
	Errors   []*schema.BonsaiError `json:"errors,omitempty"`
	Visited  int                   `json:"visited"`
	Duration time.Duration         `json:"duration"`
}

// OK reports whether the pass recorded no errors.
func (r *Result) OK() bool {
	return len(r.Errors) == 0
}

// FailedNodes returns the sorted, de-duplicated IDs of nodes that recorded
// an error.
func (r *Result) FailedNodes() []string {
	seen := map[string]bool{}
	var ids []string
	for _, e := range r.Errors {
		if e.NodeID != "" && !seen[e.NodeID] {
			seen[e.NodeID] = true
			ids = append(ids, e.NodeID)
		}
	}
	sort.Strings(ids)
	return ids
}

// ErrorFor returns the first error recorded for nodeID, or nil.
func (r *Result) ErrorFor(nodeID string) *schema.BonsaiError {
	for _, e := range r.Errors {
		if e.NodeID == nodeID {
			return e
		}
	}
	return nil
}

// Evaluator runs graphs against the sandbox. It holds no per-run state and
// is safe for concurrent use.
type Evaluator struct {
	sandbox  *sandbox.Sandbox
	bindings sandbox.Bindings
	logger   *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithSandbox replaces the default sandbox.
func WithSandbox(s *sandbox.Sandbox) Option {
	return func(e *Evaluator) { e.sandbox = s }
}

// WithBindings replaces the library bindings visible to code nodes.
func WithBindings(b sandbox.Bindings) Option {
	return func(e *Evaluator) { e.bindings = b }
}

// WithLogger sets the logger used for per-node diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Evaluator) { e.logger = l }
}

// New creates an Evaluator using the standard library bindings.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		sandbox:  sandbox.New(),
		bindings: sandbox.StandardLibrary(),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// run is the mutable state of a single pass.
type run struct {
	ctx       context.Context
	graph     graph.Graph
	result    *Result
	onPath    map[string]bool
	cancelled bool
}

// Run evaluates g. Inputs are processed in ID order; each one delivers
// sources[name] to its downstream nodes in edge order. A failure stops only
// the branch it occurs in. Run never returns nil.
func (e *Evaluator) Run(ctx context.Context, g graph.Graph, sources map[string]any) *Result {
	start := time.Now()
	r := &run{
		ctx:    ctx,
		graph:  g,
		result: &Result{Outputs: map[string]any{}},
		onPath: map[string]bool{},
	}

	for _, in := range g.InputNodes() {
		if r.stop() {
			break
		}
		r.result.Visited++
		src, ok := sources[in.Name]
		if !ok {
			e.record(r, schema.NewErrorf(schema.ErrCodeMissingInput,
				"no source provided for input %q", in.Name).
				WithNode(in.ID).
				WithDetails(map[string]any{"input": in.Name}))
			continue
		}
		for _, next := range g.DownstreamOf(in.ID) {
			e.visit(r, next, src)
		}
	}

	r.result.Duration = time.Since(start)
	e.logger.DebugContext(ctx, "evaluation finished",
		slog.Int("visited", r.result.Visited),
		slog.Int("outputs", len(r.result.Outputs)),
		slog.Int("errors", len(r.result.Errors)),
		slog.Duration("duration", r.result.Duration))
	return r.result
}

func (e *Evaluator) visit(r *run, n graph.Node, value any) {
	if r.stop() {
		return
	}
	switch n.Kind {
	case graph.KindInput:
		// Inputs only deliver their own source.
		r.result.Visited++
		return
	case graph.KindOutput:
		r.result.Visited++
		r.result.Outputs[n.Name] = value
		return
	}

	if r.onPath[n.ID] {
		e.record(r, schema.NewError(schema.ErrCodeCycleDetected,
			"value re-entered a node already on its path").WithNode(n.ID))
		return
	}
	r.result.Visited++

	ctx := logging.WithNodeID(r.ctx, n.ID)
	out, err := e.sandbox.Evaluate(ctx, n.Dialect, n.Text, value, e.bindings)
	if err != nil {
		bErr := schema.AsBonsaiError(err, schema.ErrCodeEval).WithNode(n.ID)
		if bErr.Code == schema.ErrCodeCancelled {
			r.cancelled = true
		}
		e.record(r, bErr)
		return
	}

	r.onPath[n.ID] = true
	for _, next := range r.graph.DownstreamOf(n.ID) {
		e.visit(r, next, out)
	}
	delete(r.onPath, n.ID)
}

// stop reports whether the pass must end, recording the cancellation once.
func (r *run) stop() bool {
	if r.cancelled {
		return true
	}
	if err := r.ctx.Err(); err != nil {
		r.cancelled = true
		r.result.Errors = append(r.result.Errors,
			schema.NewError(schema.ErrCodeCancelled, "evaluation cancelled").WithCause(err))
		return true
	}
	return false
}

func (e *Evaluator) record(r *run, err *schema.BonsaiError) {
	r.result.Errors = append(r.result.Errors, err)
	e.logger.WarnContext(logging.WithNodeID(r.ctx, err.NodeID), "node failed",
		slog.String("code", err.Code),
		slog.String("error", err.Message))
}
