package sandbox

import (
	"encoding/json"
	"fmt"
	"strings"
)

// LibraryVersion identifies the set of names StandardLibrary exposes. It is
// bumped whenever a binding is added, removed or changes behaviour.
const LibraryVersion = "1"

// Element is a virtual view node produced by the div, pre and h constructors.
// Output consumers render it; the engine only passes it along.
type Element struct {
	Tag      string `json:"tag"`
	Selector string `json:"sel,omitempty"`
	Children []any  `json:"children,omitempty"`
}

// NewElement builds an Element. A leading string starting with "." or "#" is
// the selector; remaining strings become text children, slices are flattened
// one level and everything else is kept as a child value.
func NewElement(tag string, args ...any) *Element {
	el := &Element{Tag: tag}
	if len(args) > 1 {
		if sel, ok := args[0].(string); ok && isSelector(sel) {
			el.Selector = sel
			args = args[1:]
		}
	}
	for _, arg := range args {
		switch v := arg.(type) {
		case nil:
		case []any:
			el.Children = append(el.Children, v...)
		default:
			el.Children = append(el.Children, v)
		}
	}
	return el
}

// Text concatenates the text content of the element tree.
func (e *Element) Text() string {
	var b strings.Builder
	for _, c := range e.Children {
		switch v := c.(type) {
		case *Element:
			b.WriteString(v.Text())
		case string:
			b.WriteString(v)
		default:
			fmt.Fprint(&b, v)
		}
	}
	return b.String()
}

func isSelector(s string) bool {
	return len(s) > 1 && (s[0] == '.' || s[0] == '#')
}

// StandardLibrary returns the bindings visible to every fragment: the xs
// stream factory and the view-element constructors. A fresh map is returned
// on each call so callers may extend it.
func StandardLibrary() Bindings {
	return Bindings{
		"xs": map[string]any{
			"of":        Of,
			"fromArray": FromSlice,
			"merge":     Merge,
			"empty":     Empty,
		},
		"div": func(args ...any) *Element { return NewElement("div", args...) },
		"pre": func(args ...any) *Element { return NewElement("pre", args...) },
		"h":   NewElement,
	}
}

// Driver is the value an input node delivers. Fragments reach the of and
// empty stream factories and the source data under "value"; JSON surfaces
// see only {name, value}.
type Driver map[string]any

// NewSource returns the driver value delivered by an input node named name.
// It exposes of and empty so a downstream fragment can start a stream from it.
func NewSource(name string) Driver {
	return Driver{
		"name":  name,
		"of":    Of,
		"empty": Empty,
	}
}

// Name is the source name the driver was created for.
func (d Driver) Name() string {
	name, _ := d["name"].(string)
	return name
}

// Value is the source data, nil when none was supplied.
func (d Driver) Value() any {
	return d["value"]
}

// MarshalJSON encodes the driver as {"name": ..., "value": ...}.
func (d Driver) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name  string `json:"name"`
		Value any    `json:"value"`
	}{d.Name(), d.Value()})
}

// WrapSources turns plain source data, as decoded from JSON, into driver
// values: each entry becomes NewSource(name) with the data under "value".
func WrapSources(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for name, v := range data {
		src := NewSource(name)
		src["value"] = v
		out[name] = src
	}
	return out
}

// DriversFor gives every name in inputs a driver, carrying the matching
// entry of data when there is one. Entries of data no input reads are kept.
func DriversFor(inputs []string, data map[string]any) map[string]any {
	merged := make(map[string]any, len(inputs)+len(data))
	for _, name := range inputs {
		merged[name] = nil
	}
	for k, v := range data {
		merged[k] = v
	}
	return WrapSources(merged)
}
