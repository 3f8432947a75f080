package graph

import (
	"fmt"
	"sort"

	"github.com/rendis/bonsai/pkg/schema"
)

// Validate performs structural analysis of g. Dangling edges and cycles are
// errors; fan-in, output-name collisions and outputs no input can reach are
// warnings, since the evaluator tolerates them.
func Validate(g Graph) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	// Dangling edges.
	for i, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			result.AddError(fmt.Sprintf("edges[%d].from", i), schema.ErrCodeNotFound,
				fmt.Sprintf("edge references unknown node %q", e.From))
		}
		if _, ok := g.Nodes[e.To]; !ok {
			result.AddError(fmt.Sprintf("edges[%d].to", i), schema.ErrCodeNotFound,
				fmt.Sprintf("edge references unknown node %q", e.To))
		}
	}

	if cyclic := cycleMembers(g); len(cyclic) > 0 {
		result.AddError("edges", schema.ErrCodeCycleDetected,
			fmt.Sprintf("graph contains a cycle through %v", cyclic), cyclic...)
		return result // reachability is meaningless on a cyclic graph
	}

	// Fan-in.
	for _, id := range g.SortedIDs() {
		if n := len(g.UpstreamOf(id)); n > 1 {
			result.AddWarning(fmt.Sprintf("nodes[%s]", id), schema.ErrCodeValidation,
				fmt.Sprintf("node %q has %d incoming edges; it is evaluated once per delivery", id, n), id)
		}
	}

	// Output-name collisions.
	owners := make(map[string][]string)
	for _, id := range g.SortedIDs() {
		n := g.Nodes[id]
		if n.Kind == KindOutput {
			owners[n.Name] = append(owners[n.Name], id)
		}
	}
	names := make([]string, 0, len(owners))
	for name := range owners {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ids := owners[name]; len(ids) > 1 {
			result.AddWarning(fmt.Sprintf("outputs[%s]", name), schema.ErrCodeValidation,
				fmt.Sprintf("output %q is written by nodes %v; the last write wins", name, ids), ids...)
		}
	}

	// Reachability: BFS from input nodes.
	reachable := make(map[string]bool, len(g.Nodes))
	queue := make([]string, 0, len(g.Nodes))
	for _, n := range g.InputNodes() {
		reachable[n.ID] = true
		queue = append(queue, n.ID)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.DownstreamOf(id) {
			if !reachable[next.ID] {
				reachable[next.ID] = true
				queue = append(queue, next.ID)
			}
		}
	}
	for _, id := range g.SortedIDs() {
		if g.Nodes[id].Kind == KindOutput && !reachable[id] {
			result.AddWarning(fmt.Sprintf("nodes[%s]", id), schema.ErrCodeValidation,
				fmt.Sprintf("output node %q is unreachable from any input", id), id)
		}
	}

	return result
}

// cycleMembers runs Kahn's algorithm and returns the sorted IDs of the nodes
// left with positive in-degree, i.e. those on or behind a cycle.
func cycleMembers(g Graph) []string {
	inDegree := make(map[string]int, len(g.Nodes))
	for id := range g.Nodes {
		inDegree[id] = 0
	}
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			continue
		}
		if _, ok := g.Nodes[e.To]; ok {
			inDegree[e.To]++
		}
	}

	queue := make([]string, 0, len(g.Nodes))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.DownstreamOf(id) {
			inDegree[next.ID]--
			if inDegree[next.ID] == 0 {
				queue = append(queue, next.ID)
			}
		}
	}

	var cyclic []string
	for id, deg := range inDegree {
		if deg > 0 {
			cyclic = append(cyclic, id)
		}
	}
	sort.Strings(cyclic)
	return cyclic
}
