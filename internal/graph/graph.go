// Package graph holds the node graph a user assembles on the canvas: typed
// nodes keyed by ID plus an ordered edge list, with copy-on-write mutations.
package graph

import (
	"sort"

	"github.com/rendis/bonsai/internal/vector"
)

// NodeKind classifies a node.
type NodeKind string

const (
	KindInput  NodeKind = "input"
	KindOutput NodeKind = "output"
	KindCode   NodeKind = "code"
)

// Node is a unit of the program graph. Name is used by input and output
// nodes; Text and Dialect by code nodes.
type Node struct {
	ID       string        `json:"id"`
	Kind     NodeKind      `json:"kind"`
	Position vector.Vector `json:"position"`
	Name     string        `json:"name,omitempty"`
	Text     string        `json:"text,omitempty"`
	Dialect  string        `json:"dialect,omitempty"`
}

// Label is the text a presentation layer shows for the node.
func (n Node) Label() string {
	if n.Kind == KindCode {
		return n.Text
	}
	return n.Name
}

// Edge is a directed value-flow link.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Graph is the node map plus ordered edge list. Methods never mutate the
// receiver; mutations return a new Graph.
type Graph struct {
	Nodes map[string]Node `json:"nodes"`
	Edges []Edge          `json:"edges"`
}

// New builds a graph from nodes and edges.
func New(nodes []Node, edges []Edge) Graph {
	g := Graph{
		Nodes: make(map[string]Node, len(nodes)),
		Edges: make([]Edge, len(edges)),
	}
	for _, n := range nodes {
		g.Nodes[n.ID] = n
	}
	copy(g.Edges, edges)
	return g
}

// Clone returns a copy that shares no mutable storage with g.
func (g Graph) Clone() Graph {
	return New(g.nodeList(), g.Edges)
}

// Node looks up a node by ID.
func (g Graph) Node(id string) (Node, bool) {
	n, ok := g.Nodes[id]
	return n, ok
}

// WithNode returns a copy of g with n inserted or replaced.
func (g Graph) WithNode(n Node) Graph {
	out := g.Clone()
	out.Nodes[n.ID] = n
	return out
}

// InputNodes returns every input node sorted by ID. The order seeds the
// evaluator's traversal, so it must be stable.
func (g Graph) InputNodes() []Node {
	var inputs []Node
	for _, n := range g.Nodes {
		if n.Kind == KindInput {
			inputs = append(inputs, n)
		}
	}
	sort.Slice(inputs, func(i, j int) bool { return inputs[i].ID < inputs[j].ID })
	return inputs
}

// DownstreamOf returns the targets of every edge leaving id, in edge-list
// order. Edges pointing at unknown nodes are skipped.
func (g Graph) DownstreamOf(id string) []Node {
	var out []Node
	for _, e := range g.Edges {
		if e.From != id {
			continue
		}
		if n, ok := g.Nodes[e.To]; ok {
			out = append(out, n)
		}
	}
	return out
}

// UpstreamOf returns the sources of every edge entering id, in edge-list order.
func (g Graph) UpstreamOf(id string) []Node {
	var out []Node
	for _, e := range g.Edges {
		if e.To != id {
			continue
		}
		if n, ok := g.Nodes[e.From]; ok {
			out = append(out, n)
		}
	}
	return out
}

// HasEdge reports whether the exact edge from -> to exists.
func (g Graph) HasEdge(from, to string) bool {
	return g.edgeIndex(from, to) >= 0
}

// SortedIDs returns all node IDs in lexical order.
func (g Graph) SortedIDs() []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (g Graph) edgeIndex(from, to string) int {
	for i, e := range g.Edges {
		if e.From == from && e.To == to {
			return i
		}
	}
	return -1
}

func (g Graph) nodeList() []Node {
	nodes := make([]Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	return nodes
}
