package graph

import (
	"github.com/google/uuid"

	"github.com/rendis/bonsai/internal/vector"
	"github.com/rendis/bonsai/pkg/schema"
)

// newNodeID generates IDs for nodes created by SplitEdge.
var newNodeID = uuid.NewString

// Midpoint returns the arithmetic mean of a and b.
func Midpoint(a, b vector.Vector) vector.Vector {
	return a.Plus(b).Times(0.5)
}

// SplitEdge subdivides the edge from -> to with a new, empty code node placed
// at the midpoint of its neighbours. The edge is replaced in place by
// from -> new and new -> to, so edge-list order is preserved.
func (g Graph) SplitEdge(from, to string) (Graph, string, error) {
	idx := g.edgeIndex(from, to)
	if idx < 0 {
		return g, "", schema.NewErrorf(schema.ErrCodeMalformedSplit,
			"cannot split edge %s -> %s: edge not found", from, to).
			WithDetails(map[string]any{"from": from, "to": to})
	}

	fromNode, okFrom := g.Nodes[from]
	toNode, okTo := g.Nodes[to]
	if !okFrom || !okTo {
		return g, "", schema.NewErrorf(schema.ErrCodeMalformedSplit,
			"cannot split edge %s -> %s: dangling endpoint", from, to).
			WithDetails(map[string]any{"from": from, "to": to})
	}

	id := newNodeID()
	out := g.Clone()
	out.Nodes[id] = Node{
		ID:       id,
		Kind:     KindCode,
		Position: Midpoint(fromNode.Position, toNode.Position),
	}

	edges := make([]Edge, 0, len(g.Edges)+1)
	edges = append(edges, g.Edges[:idx]...)
	edges = append(edges, Edge{From: from, To: id}, Edge{From: id, To: to})
	edges = append(edges, g.Edges[idx+1:]...)
	out.Edges = edges

	return out, id, nil
}

// RemoveNode deletes the node and every edge that references it.
func (g Graph) RemoveNode(id string) (Graph, error) {
	if _, ok := g.Nodes[id]; !ok {
		return g, schema.NewErrorf(schema.ErrCodeNotFound, "node %s not found", id).WithNode(id)
	}

	out := g.Clone()
	delete(out.Nodes, id)

	kept := out.Edges[:0]
	for _, e := range out.Edges {
		if e.From == id || e.To == id {
			continue
		}
		kept = append(kept, e)
	}
	out.Edges = kept

	return out, nil
}

// RemoveEdge deletes the first edge matching from -> to.
func (g Graph) RemoveEdge(from, to string) (Graph, error) {
	idx := g.edgeIndex(from, to)
	if idx < 0 {
		return g, schema.NewErrorf(schema.ErrCodeNotFound, "edge %s -> %s not found", from, to)
	}

	out := g.Clone()
	out.Edges = append(out.Edges[:idx], out.Edges[idx+1:]...)
	return out, nil
}

// MoveNode returns a copy of g with node id displaced by delta.
func (g Graph) MoveNode(id string, delta vector.Vector) (Graph, error) {
	n, ok := g.Nodes[id]
	if !ok {
		return g, schema.NewErrorf(schema.ErrCodeNotFound, "node %s not found", id).WithNode(id)
	}
	n.Position = n.Position.Plus(delta)
	return g.WithNode(n), nil
}

// SetCode replaces the text of code node id.
func (g Graph) SetCode(id, text string) (Graph, error) {
	n, ok := g.Nodes[id]
	if !ok {
		return g, schema.NewErrorf(schema.ErrCodeNotFound, "node %s not found", id).WithNode(id)
	}
	if n.Kind != KindCode {
		return g, schema.NewErrorf(schema.ErrCodeValidation, "node %s is a %s node, not code", id, n.Kind).WithNode(id)
	}
	n.Text = text
	return g.WithNode(n), nil
}
