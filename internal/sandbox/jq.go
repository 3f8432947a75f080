package sandbox

import (
	"context"
	"strings"

	"github.com/itchyny/gojq"
	"github.com/rendis/bonsai/pkg/schema"
)

// JQDialect evaluates fragments with gojq. The incoming value is the jq
// input "." and every other plain-data binding is available as $name.
// A query with several outputs yields a list; one output yields the value.
type JQDialect struct {
	programs *programCache[*gojq.Code]
}

// NewJQDialect creates the jq dialect.
func NewJQDialect() *JQDialect {
	return &JQDialect{programs: newProgramCache[*gojq.Code](DefaultProgramCacheSize)}
}

// Name returns the dialect identifier.
func (d *JQDialect) Name() string {
	return DialectJQ
}

// NativeChains reports that jq reads ".map(...)"-style fragments itself.
func (d *JQDialect) NativeChains() bool {
	return true
}

// Evaluate runs code with the previous value as input.
func (d *JQDialect) Evaluate(ctx context.Context, code string, scope Scope) (any, error) {
	input, err := toPlain(scope[PreviousName])
	if err != nil {
		return nil, evalError(schema.EvalKindRuntime, DialectJQ, code, err)
	}

	vars := plainScope(scope)
	delete(vars, PreviousName)
	names := Scope(vars).names()
	values := make([]any, len(names))
	for i, name := range names {
		values[i] = vars[name]
	}

	prg, err := d.getOrCompile(code, names)
	if err != nil {
		return nil, err
	}

	iter := prg.RunWithContext(ctx, input, values...)
	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, evalError(schema.EvalKindRuntime, DialectJQ, code, err)
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

func (d *JQDialect) getOrCompile(code string, names []string) (*gojq.Code, error) {
	key := strings.Join(names, ",") + "\x00" + code

	return d.programs.getOrCompile(key, func() (*gojq.Code, error) {
		query, err := gojq.Parse(code)
		if err != nil {
			return nil, evalError(schema.EvalKindSyntax, DialectJQ, code, err)
		}

		vars := make([]string, len(names))
		for i, name := range names {
			vars[i] = "$" + name
		}
		prg, err := gojq.Compile(query,
			gojq.WithVariables(vars),
			// $ENV and env stay empty: the process environment is not in scope.
			gojq.WithEnvironLoader(func() []string { return nil }),
		)
		if err != nil {
			kind := schema.EvalKindSyntax
			if strings.Contains(err.Error(), "not defined") {
				kind = schema.EvalKindReference
			}
			return nil, evalError(kind, DialectJQ, code, err)
		}
		return prg, nil
	})
}

var (
	_ Dialect       = (*JQDialect)(nil)
	_ nativeChainer = (*JQDialect)(nil)
)
