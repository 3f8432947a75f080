package sandbox

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/rendis/bonsai/pkg/schema"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// HCLDialect evaluates fragments as HCL native-syntax expressions. Plain-data
// scope entries become variables and a small set of go-cty standard
// functions is available.
type HCLDialect struct {
	functions map[string]function.Function
}

// NewHCLDialect creates the hcl dialect.
func NewHCLDialect() *HCLDialect {
	return &HCLDialect{
		functions: map[string]function.Function{
			"upper":      stdlib.UpperFunc,
			"lower":      stdlib.LowerFunc,
			"length":     stdlib.LengthFunc,
			"concat":     stdlib.ConcatFunc,
			"join":       stdlib.JoinFunc,
			"format":     stdlib.FormatFunc,
			"max":        stdlib.MaxFunc,
			"min":        stdlib.MinFunc,
			"jsonencode": stdlib.JSONEncodeFunc,
		},
	}
}

// Name returns the dialect identifier.
func (d *HCLDialect) Name() string {
	return DialectHCL
}

// Evaluate parses and evaluates code. HCL expressions are cheap to parse, so
// nothing is cached.
func (d *HCLDialect) Evaluate(ctx context.Context, code string, scope Scope) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, schema.NewError(schema.ErrCodeCancelled, "evaluation cancelled").WithCause(err)
	}

	expr, diags := hclsyntax.ParseExpression([]byte(code), "fragment.hcl", hcl.Pos{Line: 1, Column: 1, Byte: 0})
	if diags.HasErrors() {
		return nil, evalError(schema.EvalKindSyntax, DialectHCL, code, diags)
	}

	vars := make(map[string]cty.Value, len(scope))
	for name, v := range scope {
		cv, err := toCty(v)
		if err != nil {
			continue
		}
		vars[name] = cv
	}

	val, diags := expr.Value(&hcl.EvalContext{Variables: vars, Functions: d.functions})
	if diags.HasErrors() {
		kind := schema.EvalKindRuntime
		for _, diag := range diags {
			if diag.Summary == "Unknown variable" || diag.Summary == "Call to unknown function" {
				kind = schema.EvalKindReference
			}
		}
		return nil, evalError(kind, DialectHCL, code, diags)
	}

	out, err := fromCty(val)
	if err != nil {
		return nil, evalError(schema.EvalKindRuntime, DialectHCL, code, err)
	}
	return out, nil
}

// toCty converts plain data to a cty value.
func toCty(v any) (cty.Value, error) {
	plain, err := toPlain(v)
	if err != nil {
		return cty.NilVal, err
	}
	switch val := plain.(type) {
	case nil:
		return cty.NullVal(cty.DynamicPseudoType), nil
	case bool:
		return cty.BoolVal(val), nil
	case string:
		return cty.StringVal(val), nil
	case int:
		return cty.NumberIntVal(int64(val)), nil
	case float64:
		return cty.NumberFloatVal(val), nil
	case []any:
		if len(val) == 0 {
			return cty.EmptyTupleVal, nil
		}
		elems := make([]cty.Value, len(val))
		for i, item := range val {
			if elems[i], err = toCty(item); err != nil {
				return cty.NilVal, err
			}
		}
		return cty.TupleVal(elems), nil
	case map[string]any:
		if len(val) == 0 {
			return cty.EmptyObjectVal, nil
		}
		attrs := make(map[string]cty.Value, len(val))
		for k, item := range val {
			if attrs[k], err = toCty(item); err != nil {
				return cty.NilVal, err
			}
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported value %T", plain)
	}
}

// fromCty converts a cty value back to plain data. Whole numbers that fit an
// int come back as int.
func fromCty(v cty.Value) (any, error) {
	if v.IsNull() || !v.IsKnown() {
		return nil, nil
	}

	ty := v.Type()
	switch {
	case ty == cty.String:
		return v.AsString(), nil
	case ty == cty.Bool:
		return v.True(), nil
	case ty == cty.Number:
		bf := v.AsBigFloat()
		if bf.IsInt() {
			if i, acc := bf.Int64(); acc == big.Exact {
				return int(i), nil
			}
		}
		f, _ := bf.Float64()
		return f, nil
	case ty.IsListType(), ty.IsTupleType(), ty.IsSetType():
		out := make([]any, 0, v.LengthInt())
		for it := v.ElementIterator(); it.Next(); {
			_, ev := it.Element()
			item, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case ty.IsMapType(), ty.IsObjectType():
		m := v.AsValueMap()
		out := make(map[string]any, len(m))
		for k, ev := range m {
			item, err := fromCty(ev)
			if err != nil {
				return nil, err
			}
			out[k] = item
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported cty type %s", ty.FriendlyName())
	}
}

var _ Dialect = (*HCLDialect)(nil)
