package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rendis/bonsai/pkg/schema"
)

// chainCall is one ".name(args)" segment of a method chain.
type chainCall struct {
	name string
	args []string
}

// lambda is an argument of the form "x => body" or "(a, b) => body".
type lambda struct {
	params []string
	body   string
}

// chainFunc is a lambda bound to the dialect and scope it is evaluated in.
type chainFunc func(args ...any) (any, error)

var lambdaPattern = regexp.MustCompile(`(?s)^(?:\(\s*([A-Za-z_]\w*(?:\s*,\s*[A-Za-z_]\w*)*)?\s*\)|([A-Za-z_]\w*))\s*=>\s*(.+)$`)

func isChain(code string) bool {
	return strings.HasPrefix(code, ".")
}

// explicitChain recognises "source.map(...)" written out in full. It only
// matches when every call in the remainder is a chain method, so
// "source.of(...)" is left to the dialect.
func explicitChain(code string) (string, bool) {
	rest, ok := strings.CutPrefix(code, PreviousName)
	if !ok || !isChain(rest) {
		return "", false
	}
	if !onlyChainMethods(rest) {
		return "", false
	}
	return rest, true
}

// splitChainHead finds the first top-level ".m(" where m is a chain method
// and everything from there on is a chain of chain methods. It splits
// `xs.of(1, 2).map(x => x + 1)` into `xs.of(1, 2)` and `.map(x => x + 1)`.
func splitChainHead(code string) (head, tail string, ok bool) {
	depth := 0
	for i := 0; i < len(code); i++ {
		switch c := code[i]; c {
		case '"', '\'', '`':
			end, err := skipString(code, i)
			if err != nil {
				return "", "", false
			}
			i = end
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case '.':
			if depth != 0 || i == 0 || !startsChainMethod(code[i+1:]) {
				continue
			}
			if calls, err := parseChain(code[i:]); err == nil && bindable(calls) {
				return strings.TrimSpace(code[:i]), code[i:], true
			}
		}
	}
	return "", "", false
}

func startsChainMethod(s string) bool {
	j := 0
	for j < len(s) && isIdentByte(s[j], j == 0) {
		j++
	}
	if _, known := chainMethods[s[:j]]; !known {
		return false
	}
	j = skipSpace(s, j)
	return j < len(s) && s[j] == '('
}

func onlyChainMethods(chain string) bool {
	calls, err := parseChain(chain)
	if err != nil {
		return false
	}
	for _, call := range calls {
		if _, known := chainMethods[call.name]; !known {
			return false
		}
	}
	return true
}

// bindable reports whether every call is a chain method and every
// function-taking call gets a lambda. CEL's own `list.map(x, x + 1)` macro
// form is not bindable and stays with the dialect.
func bindable(calls []chainCall) bool {
	for _, call := range calls {
		if _, known := chainMethods[call.name]; !known {
			return false
		}
		switch call.name {
		case "map", "filter", "fold":
			if len(call.args) == 0 {
				return false
			}
			if _, ok := parseLambda(call.args[0]); !ok {
				return false
			}
		}
	}
	return true
}

// evalHeadChain evaluates head in d and applies tail to its value. Lambdas
// in tail still see the node's input as PreviousName.
func evalHeadChain(ctx context.Context, d Dialect, head, tail string, scope Scope) (any, error) {
	start, err := d.Evaluate(ctx, head, scope)
	if err != nil {
		return nil, err
	}
	return evalChain(ctx, d, tail, scope, start)
}

// evalChain applies the calls in code, left to right, starting from start.
// Arguments and lambda bodies are evaluated by d.
func evalChain(ctx context.Context, d Dialect, code string, scope Scope, start any) (any, error) {
	calls, err := parseChain(code)
	if err != nil {
		return nil, evalError(schema.EvalKindSyntax, d.Name(), code, err)
	}

	cur := start
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, schema.NewError(schema.ErrCodeCancelled, "evaluation cancelled").WithCause(err)
		}
		method, ok := chainMethods[call.name]
		if !ok {
			return nil, evalError(schema.EvalKindReference, d.Name(), code,
				fmt.Errorf("unknown chain method %q", call.name))
		}
		args, err := chainArgs(ctx, d, call, scope)
		if err != nil {
			return nil, err
		}
		next, err := method(cur, args)
		if err != nil {
			var bErr *schema.BonsaiError
			if errors.As(err, &bErr) {
				return nil, bErr
			}
			return nil, evalError(schema.EvalKindRuntime, d.Name(), code,
				fmt.Errorf("%s: %w", call.name, err))
		}
		cur = next
	}
	return cur, nil
}

func chainArgs(ctx context.Context, d Dialect, call chainCall, scope Scope) ([]any, error) {
	args := make([]any, len(call.args))
	for i, raw := range call.args {
		if l, ok := parseLambda(raw); ok {
			args[i] = bindLambda(ctx, d, l, scope)
			continue
		}
		v, err := d.Evaluate(ctx, raw, scope)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return args, nil
}

func bindLambda(ctx context.Context, d Dialect, l lambda, scope Scope) chainFunc {
	return func(args ...any) (any, error) {
		if len(args) != len(l.params) {
			return nil, fmt.Errorf("lambda expects %d argument(s), got %d", len(l.params), len(args))
		}
		params := make(map[string]any, len(args))
		for i, name := range l.params {
			params[name] = args[i]
		}
		return d.Evaluate(ctx, l.body, scope.with(params))
	}
}

func parseLambda(raw string) (lambda, bool) {
	m := lambdaPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return lambda{}, false
	}
	var params []string
	switch {
	case m[2] != "":
		params = []string{m[2]}
	case m[1] != "":
		for _, p := range strings.Split(m[1], ",") {
			params = append(params, strings.TrimSpace(p))
		}
	}
	return lambda{params: params, body: strings.TrimSpace(m[3])}, true
}

// parseChain splits ".a(x).b(y, z)" into calls.
func parseChain(code string) ([]chainCall, error) {
	var calls []chainCall
	i := 0
	for {
		i = skipSpace(code, i)
		if i >= len(code) {
			break
		}
		if code[i] != '.' {
			return nil, fmt.Errorf("expected '.' at offset %d", i)
		}
		i++
		start := i
		for i < len(code) && isIdentByte(code[i], i == start) {
			i++
		}
		if i == start {
			return nil, fmt.Errorf("expected method name at offset %d", start)
		}
		name := code[start:i]
		i = skipSpace(code, i)
		if i >= len(code) || code[i] != '(' {
			return nil, fmt.Errorf("expected '(' after %q", name)
		}
		end, err := matchParen(code, i)
		if err != nil {
			return nil, err
		}
		args, err := splitArgs(code[i+1 : end])
		if err != nil {
			return nil, err
		}
		calls = append(calls, chainCall{name: name, args: args})
		i = end + 1
	}
	if len(calls) == 0 {
		return nil, fmt.Errorf("empty method chain")
	}
	return calls, nil
}

// matchParen returns the index of the parenthesis closing the one at open,
// skipping string literals and nested brackets.
func matchParen(code string, open int) (int, error) {
	depth := 0
	for i := open; i < len(code); i++ {
		switch c := code[i]; c {
		case '"', '\'', '`':
			end, err := skipString(code, i)
			if err != nil {
				return 0, err
			}
			i = end
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				if c != ')' {
					return 0, fmt.Errorf("mismatched %q at offset %d", c, i)
				}
				return i, nil
			}
		}
	}
	return 0, fmt.Errorf("unterminated argument list at offset %d", open)
}

// splitArgs splits an argument list on top-level commas.
func splitArgs(list string) ([]string, error) {
	if strings.TrimSpace(list) == "" {
		return nil, nil
	}
	var (
		args  []string
		depth int
		start int
	)
	for i := 0; i < len(list); i++ {
		switch list[i] {
		case '"', '\'', '`':
			end, err := skipString(list, i)
			if err != nil {
				return nil, err
			}
			i = end
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(list[start:i]))
				start = i + 1
			}
		}
	}
	last := strings.TrimSpace(list[start:])
	if last == "" {
		return nil, fmt.Errorf("empty argument in %q", list)
	}
	return append(args, last), nil
}

// skipString returns the index of the quote closing the literal at i.
func skipString(s string, i int) (int, error) {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j, nil
		}
	}
	return 0, fmt.Errorf("unterminated string at offset %d", i)
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func isIdentByte(c byte, first bool) bool {
	switch {
	case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return !first
	}
	return false
}
