package sandbox

import (
	"context"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/rendis/bonsai/pkg/schema"
)

// CELDialect evaluates fragments with Google's Common Expression Language.
// Every plain-data scope entry is declared as a dyn variable; library
// functions are not representable in CEL and stay invisible.
type CELDialect struct {
	programs *programCache[cel.Program]
}

// NewCELDialect creates the cel dialect.
func NewCELDialect() *CELDialect {
	return &CELDialect{programs: newProgramCache[cel.Program](DefaultProgramCacheSize)}
}

// Name returns the dialect identifier.
func (d *CELDialect) Name() string {
	return DialectCEL
}

// Evaluate compiles (or retrieves from cache) code and evaluates it against
// the data entries of scope.
func (d *CELDialect) Evaluate(ctx context.Context, code string, scope Scope) (any, error) {
	activation := plainScope(scope)

	prg, err := d.getOrCompile(code, activation)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return nil, evalError(schema.EvalKindRuntime, DialectCEL, code, err)
	}
	return out.Value(), nil
}

func (d *CELDialect) getOrCompile(code string, activation map[string]any) (cel.Program, error) {
	names := Scope(activation).names()
	key := strings.Join(names, ",") + "\x00" + code

	return d.programs.getOrCompile(key, func() (cel.Program, error) {
		opts := make([]cel.EnvOption, 0, len(names))
		for _, name := range names {
			opts = append(opts, cel.Variable(name, cel.DynType))
		}
		env, err := cel.NewEnv(opts...)
		if err != nil {
			return nil, evalError(schema.EvalKindSyntax, DialectCEL, code, err)
		}

		ast, issues := env.Compile(code)
		if issues != nil && issues.Err() != nil {
			kind := schema.EvalKindSyntax
			if strings.Contains(issues.Err().Error(), "undeclared reference") {
				kind = schema.EvalKindReference
			}
			return nil, evalError(kind, DialectCEL, code, issues.Err())
		}

		prg, err := env.Program(ast)
		if err != nil {
			return nil, evalError(schema.EvalKindSyntax, DialectCEL, code, err)
		}
		return prg, nil
	})
}

// plainScope keeps the scope entries that convert to plain data.
func plainScope(scope Scope) map[string]any {
	out := make(map[string]any, len(scope))
	for name, v := range scope {
		plain, err := toPlain(v)
		if err != nil {
			continue
		}
		out[name] = plain
	}
	return out
}

var _ Dialect = (*CELDialect)(nil)
