package sandbox

import "fmt"

// toPlain converts v to JSON-shaped data: nil, bool, int, float64, string,
// []any and map[string]any. Streams become their value list, elements a
// {tag, sel, children} map and drivers a {name, value} map. Functions and
// other Go values are rejected.
func toPlain(v any) (any, error) {
	switch val := v.(type) {
	case nil, bool, string, float64, int:
		return val, nil
	case int64:
		return int(val), nil
	case int32:
		return int(val), nil
	case uint:
		return int(val), nil
	case uint64:
		return int(val), nil
	case float32:
		return float64(val), nil
	case *Stream:
		return toPlain(val.Values())
	case *Element:
		children, err := toPlain(val.Children)
		if err != nil {
			return nil, err
		}
		out := map[string]any{"tag": val.Tag, "children": children}
		if val.Selector != "" {
			out["sel"] = val.Selector
		}
		return out, nil
	case Driver:
		value, err := toPlain(val.Value())
		if err != nil {
			return nil, err
		}
		return map[string]any{"name": val.Name(), "value": value}, nil
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			p, err := toPlain(item)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			p, err := toPlain(item)
			if err != nil {
				return nil, err
			}
			out[k] = p
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value of type %T has no data representation", v)
	}
}
