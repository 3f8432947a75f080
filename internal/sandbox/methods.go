package sandbox

import (
	"fmt"
	"math"
)

type chainMethod func(recv any, args []any) (any, error)

var chainMethods = map[string]chainMethod{
	"map":       chainMap,
	"filter":    chainFilter,
	"mapTo":     chainMapTo,
	"startWith": chainStartWith,
	"take":      chainTake,
	"last":      chainLast,
	"fold":      chainFold,
}

func chainMap(recv any, args []any) (any, error) {
	fn, err := funcArg("map", args, 0, 1)
	if err != nil {
		return nil, err
	}
	apply := func(v any) (any, error) { return fn(v) }
	switch r := recv.(type) {
	case *Stream:
		return r.Map(apply)
	case []any:
		return mapValues(r, apply)
	default:
		return fn(recv)
	}
}

func chainFilter(recv any, args []any) (any, error) {
	fn, err := funcArg("filter", args, 0, 1)
	if err != nil {
		return nil, err
	}
	keep := func(v any) (bool, error) {
		out, err := fn(v)
		if err != nil {
			return false, err
		}
		b, ok := out.(bool)
		if !ok {
			return false, fmt.Errorf("filter predicate returned %T, want bool", out)
		}
		return b, nil
	}
	switch r := recv.(type) {
	case *Stream:
		return r.Filter(keep)
	case []any:
		return filterValues(r, keep)
	default:
		ok, err := keep(recv)
		if err != nil || !ok {
			return nil, err
		}
		return recv, nil
	}
}

func chainMapTo(recv any, args []any) (any, error) {
	if err := arity("mapTo", args, 1); err != nil {
		return nil, err
	}
	switch r := recv.(type) {
	case *Stream:
		return r.MapTo(args[0]), nil
	case []any:
		out := make([]any, len(r))
		for i := range out {
			out[i] = args[0]
		}
		return out, nil
	default:
		return args[0], nil
	}
}

func chainStartWith(recv any, args []any) (any, error) {
	if err := arity("startWith", args, 1); err != nil {
		return nil, err
	}
	switch r := recv.(type) {
	case *Stream:
		return r.StartWith(args[0]), nil
	case []any:
		return append([]any{args[0]}, r...), nil
	default:
		return nil, fmt.Errorf("startWith: receiver %T is not a stream or list", recv)
	}
}

func chainTake(recv any, args []any) (any, error) {
	if err := arity("take", args, 1); err != nil {
		return nil, err
	}
	n, err := toInt(args[0])
	if err != nil {
		return nil, fmt.Errorf("take: %w", err)
	}
	switch r := recv.(type) {
	case *Stream:
		return r.Take(n), nil
	case []any:
		if n < 0 {
			n = 0
		}
		if n > len(r) {
			n = len(r)
		}
		out := make([]any, n)
		copy(out, r)
		return out, nil
	default:
		return nil, fmt.Errorf("take: receiver %T is not a stream or list", recv)
	}
}

func chainLast(recv any, args []any) (any, error) {
	if err := arity("last", args, 0); err != nil {
		return nil, err
	}
	switch r := recv.(type) {
	case *Stream:
		return r.Last(), nil
	case []any:
		if len(r) == 0 {
			return nil, nil
		}
		return r[len(r)-1], nil
	default:
		return recv, nil
	}
}

// chainFold on a stream emits every accumulation; on a list it returns the
// final accumulator.
func chainFold(recv any, args []any) (any, error) {
	fn, err := funcArg("fold", args, 0, 2)
	if err != nil {
		return nil, err
	}
	step := func(acc, v any) (any, error) { return fn(acc, v) }
	switch r := recv.(type) {
	case *Stream:
		return r.Fold(step, args[1])
	case []any:
		acc := args[1]
		for _, v := range r {
			if acc, err = step(acc, v); err != nil {
				return nil, err
			}
		}
		return acc, nil
	default:
		return nil, fmt.Errorf("fold: receiver %T is not a stream or list", recv)
	}
}

func arity(method string, args []any, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s expects %d argument(s), got %d", method, want, len(args))
	}
	return nil
}

func funcArg(method string, args []any, idx, want int) (chainFunc, error) {
	if err := arity(method, args, want); err != nil {
		return nil, err
	}
	fn, ok := args[idx].(chainFunc)
	if !ok {
		return nil, fmt.Errorf("%s expects a lambda as argument %d, got %T", method, idx+1, args[idx])
	}
	return fn, nil
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case int32:
		return int(n), nil
	case uint64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%T is not an integer", v)
	}
}
