package sandbox

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rendis/bonsai/pkg/schema"
)

// ExprDialect evaluates fragments with expr-lang/expr. Programs are compiled
// against the scope's names and value types, so referencing a name that is not
// in scope fails at compile time. Compiled programs are cached per fragment
// and scope shape and reused across goroutines.
type ExprDialect struct {
	programs *programCache[*vm.Program]
}

// NewExprDialect creates the expr dialect.
func NewExprDialect() *ExprDialect {
	return &ExprDialect{programs: newProgramCache[*vm.Program](DefaultProgramCacheSize)}
}

// Name returns the dialect identifier.
func (d *ExprDialect) Name() string {
	return DialectExpr
}

// Evaluate compiles (or retrieves from cache) code and runs it with scope as
// the environment.
func (d *ExprDialect) Evaluate(ctx context.Context, code string, scope Scope) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, schema.NewError(schema.ErrCodeCancelled, "evaluation cancelled").WithCause(err)
	}

	env := map[string]any(scope)
	if env == nil {
		env = map[string]any{}
	}

	prg, err := d.getOrCompile(code, env)
	if err != nil {
		return nil, err
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, evalError(schema.EvalKindRuntime, DialectExpr, code, err)
	}
	return out, nil
}

func (d *ExprDialect) getOrCompile(code string, env map[string]any) (*vm.Program, error) {
	key := code + "\x00" + envSignature(env)
	return d.programs.getOrCompile(key, func() (*vm.Program, error) {
		prg, err := expr.Compile(code, expr.Env(env))
		if err != nil {
			kind := schema.EvalKindSyntax
			if isUnknownName(err.Error()) {
				kind = schema.EvalKindReference
			}
			return nil, evalError(kind, DialectExpr, code, err)
		}
		return prg, nil
	})
}

// envSignature describes the names and value types of env. Two environments
// with the same signature compile identically.
func envSignature(env map[string]any) string {
	var b strings.Builder
	for _, name := range Scope(env).names() {
		fmt.Fprintf(&b, "%s:%v;", name, reflect.TypeOf(env[name]))
	}
	return b.String()
}

func isUnknownName(msg string) bool {
	return strings.Contains(msg, "unknown name") || strings.Contains(msg, "unknown func")
}

var _ Dialect = (*ExprDialect)(nil)
