package diagram

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/rendis/bonsai/internal/evaluator"
	"github.com/rendis/bonsai/internal/graph"
)

const (
	maxLabel   = 32
	maxPreview = 40
)

// Build constructs a DiagramModel from a graph and an optional evaluation
// result. Failed nodes get a failed overlay; output nodes that received a
// value get an ok overlay with a preview of the value.
func Build(title string, g graph.Graph, res *evaluator.Result) *DiagramModel {
	if title == "" {
		title = "bonsai"
	}
	m := &DiagramModel{Title: title}

	levels := levelsOf(g)
	for _, level := range levels {
		for _, id := range level {
			m.Nodes = append(m.Nodes, toNode(g.Nodes[id], res))
		}
	}
	m.Levels = levels

	for _, e := range g.Edges {
		m.Edges = append(m.Edges, Edge{From: e.From, To: e.To})
	}
	return m
}

func toNode(n graph.Node, res *evaluator.Result) *Node {
	node := &Node{ID: n.ID, Kind: NodeKind(n.Kind), Label: nodeLabel(n)}
	if res == nil {
		return node
	}
	if err := res.ErrorFor(n.ID); err != nil {
		node.Status = &StatusOverlay{Status: StatusFailed, Error: err.Message}
		return node
	}
	if n.Kind == graph.KindOutput {
		if v, ok := res.Outputs[n.Name]; ok {
			node.Status = &StatusOverlay{Status: StatusOK, Value: preview(v)}
		}
	}
	return node
}

func nodeLabel(n graph.Node) string {
	switch n.Kind {
	case graph.KindInput:
		return "in: " + n.Name
	case graph.KindOutput:
		return "out: " + n.Name
	}
	label := truncate(firstLine(n.Text), maxLabel)
	if label == "" {
		label = "(identity)"
	}
	if n.Dialect != "" {
		label += " [" + n.Dialect + "]"
	}
	return label
}

func preview(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return truncate(fmt.Sprint(v), maxPreview)
	}
	return truncate(string(b), maxPreview)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}

// levelsOf assigns each node its longest distance from a root. Nodes on a
// cycle are placed one level below their deepest already placed predecessor.
func levelsOf(g graph.Graph) [][]string {
	ids := g.SortedIDs()
	indeg := make(map[string]int, len(ids))
	for _, e := range g.Edges {
		if _, ok := g.Nodes[e.From]; !ok {
			continue
		}
		if _, ok := g.Nodes[e.To]; ok {
			indeg[e.To]++
		}
	}

	level := make(map[string]int, len(ids))
	var queue []string
	for _, id := range ids {
		if indeg[id] == 0 {
			queue = append(queue, id)
			level[id] = 0
		}
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.DownstreamOf(id) {
			if l := level[id] + 1; l > level[next.ID] {
				level[next.ID] = l
			}
			indeg[next.ID]--
			if indeg[next.ID] == 0 {
				queue = append(queue, next.ID)
			}
		}
	}

	placed := make(map[string]bool, len(ids))
	for _, id := range ids {
		if indeg[id] <= 0 {
			placed[id] = true
		}
	}
	for _, id := range ids {
		if placed[id] {
			continue
		}
		l := 0
		for _, up := range g.UpstreamOf(id) {
			if placed[up.ID] && level[up.ID]+1 > l {
				l = level[up.ID] + 1
			}
		}
		level[id] = l
		placed[id] = true
	}

	byLevel := map[int][]string{}
	maxLevel := -1
	for _, id := range ids {
		l := level[id]
		byLevel[l] = append(byLevel[l], id)
		if l > maxLevel {
			maxLevel = l
		}
	}
	levels := make([][]string, 0, maxLevel+1)
	for l := 0; l <= maxLevel; l++ {
		if row := byLevel[l]; len(row) > 0 {
			sort.Strings(row)
			levels = append(levels, row)
		}
	}
	return levels
}
