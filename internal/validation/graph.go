package validation

import (
	"fmt"
	"slices"
	"sort"

	"github.com/rendis/bonsai/internal/graph"
	"github.com/rendis/bonsai/pkg/schema"
)

// DialectLookup reports the dialects code nodes may name.
// Satisfied by *sandbox.Sandbox.
type DialectLookup interface {
	Dialects() []string
}

// ValidateGraph runs the structural checks of graph.Validate and adds the
// semantic ones: named inputs and outputs, known dialects, and unique input
// names. dialects may be nil to skip the dialect check.
func ValidateGraph(g graph.Graph, dialects DialectLookup) *schema.ValidationResult {
	result := graph.Validate(g)
	result.Merge(validateNodes(g, dialects))
	return result
}

func validateNodes(g graph.Graph, dialects DialectLookup) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	var known []string
	if dialects != nil {
		known = dialects.Dialects()
	}

	inputsByName := map[string][]string{}
	for _, id := range g.SortedIDs() {
		n := g.Nodes[id]
		path := fmt.Sprintf("nodes[%s]", id)

		switch n.Kind {
		case graph.KindInput, graph.KindOutput:
			if n.Name == "" {
				result.AddError(path+".name", schema.ErrCodeValidation,
					fmt.Sprintf("%s node has no name", n.Kind), id)
			}
			if n.Kind == graph.KindInput && n.Name != "" {
				inputsByName[n.Name] = append(inputsByName[n.Name], id)
			}
		case graph.KindCode:
			if n.Dialect != "" && dialects != nil && !slices.Contains(known, n.Dialect) {
				result.AddError(path+".dialect", schema.ErrCodeValidation,
					fmt.Sprintf("unknown dialect %q", n.Dialect), id)
			}
		default:
			result.AddError(path+".kind", schema.ErrCodeValidation,
				fmt.Sprintf("unknown node kind %q", n.Kind), id)
		}
	}

	names := make([]string, 0, len(inputsByName))
	for name := range inputsByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ids := inputsByName[name]; len(ids) > 1 {
			result.AddWarning(fmt.Sprintf("inputs[%s]", name), schema.ErrCodeValidation,
				fmt.Sprintf("inputs %v read the same source", ids), ids...)
		}
	}

	return result
}
