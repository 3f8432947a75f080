// Package sandbox evaluates the code fragment of a code node against a
// restricted scope: the declared library bindings plus the incoming value,
// bound as "source". Nothing else from the process is visible to a fragment.
//
// Four dialects are available. expr (expr-lang) is the default; cel, jq and
// hcl are selected per node. A fragment that starts with "." is a method
// chain applied to the incoming value (".map(x => x + 1)"); jq fragments
// already read that way and are evaluated natively.
package sandbox

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rendis/bonsai/pkg/schema"
)

// PreviousName is the scope name the incoming value is bound to.
const PreviousName = "source"

// Dialect names.
const (
	DialectExpr = "expr"
	DialectCEL  = "cel"
	DialectJQ   = "jq"
	DialectHCL  = "hcl"
)

// Bindings is the set of names a fragment may reference besides PreviousName.
type Bindings map[string]any

// Scope is the complete, per-evaluation set of visible names.
type Scope map[string]any

// with returns a copy of s extended with extra.
func (s Scope) with(extra map[string]any) Scope {
	out := make(Scope, len(s)+len(extra))
	for k, v := range s {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

// names returns the sorted scope keys.
func (s Scope) names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Dialect evaluates a single fragment against a scope.
type Dialect interface {
	Name() string
	Evaluate(ctx context.Context, code string, scope Scope) (any, error)
}

// nativeChainer is implemented by dialects whose own syntax already treats a
// leading "." as the incoming value.
type nativeChainer interface {
	NativeChains() bool
}

// Sandbox dispatches fragments to dialects. Safe for concurrent use once
// constructed.
type Sandbox struct {
	dialects map[string]Dialect
	fallback string
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithDefaultDialect sets the dialect used for nodes that name none.
func WithDefaultDialect(name string) Option {
	return func(s *Sandbox) { s.fallback = name }
}

// WithDialect registers an additional or replacement dialect.
func WithDialect(d Dialect) Option {
	return func(s *Sandbox) { s.dialects[d.Name()] = d }
}

// New creates a Sandbox with the expr, cel, jq and hcl dialects registered.
func New(opts ...Option) *Sandbox {
	s := &Sandbox{
		dialects: map[string]Dialect{},
		fallback: DialectExpr,
	}
	for _, d := range []Dialect{NewExprDialect(), NewCELDialect(), NewJQDialect(), NewHCLDialect()} {
		s.dialects[d.Name()] = d
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dialects returns the registered dialect names, sorted.
func (s *Sandbox) Dialects() []string {
	names := make([]string, 0, len(s.dialects))
	for name := range s.dialects {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultDialect returns the dialect used when a node names none.
func (s *Sandbox) DefaultDialect() string {
	return s.fallback
}

// Evaluate runs code in dialect with previous bound to PreviousName and the
// entries of bindings visible. An empty fragment passes previous through.
// Every failure is a *schema.BonsaiError with code EVAL_ERROR.
func (s *Sandbox) Evaluate(ctx context.Context, dialect, code string, previous any, bindings Bindings) (out any, err error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, schema.NewError(schema.ErrCodeCancelled, "evaluation cancelled").WithCause(ctxErr)
	}

	if dialect == "" {
		dialect = s.fallback
	}
	d, ok := s.dialects[dialect]
	if !ok {
		return nil, evalError(schema.EvalKindReference, dialect, code,
			fmt.Errorf("unknown dialect %q (available: %s)", dialect, strings.Join(s.Dialects(), ", ")))
	}

	code = strings.TrimSpace(code)
	if code == "" {
		return previous, nil
	}

	scope := make(Scope, len(bindings)+1)
	for k, v := range bindings {
		scope[k] = v
	}
	scope[PreviousName] = previous

	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = evalError(schema.EvalKindRuntime, dialect, code, fmt.Errorf("panic: %v", r))
		}
	}()

	if nc, ok := d.(nativeChainer); !ok || !nc.NativeChains() {
		if isChain(code) {
			return evalChain(ctx, d, code, scope, previous)
		}
		if rest, ok := explicitChain(code); ok {
			return evalChain(ctx, d, rest, scope, previous)
		}
		if head, tail, ok := splitChainHead(code); ok {
			return evalHeadChain(ctx, d, head, tail, scope)
		}
	}
	return d.Evaluate(ctx, code, scope)
}

// evalError builds the EVAL_ERROR reported for a failed fragment.
func evalError(kind, dialect, code string, cause error) *schema.BonsaiError {
	return schema.NewErrorf(schema.ErrCodeEval, "%s %s error: %s", dialect, kind, cause.Error()).
		WithCause(cause).
		WithDetails(map[string]any{
			"kind":    kind,
			"dialect": dialect,
			"code":    code,
		})
}
