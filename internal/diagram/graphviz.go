package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
)

// RenderImage renders a DiagramModel as a PNG using graphviz.
func RenderImage(ctx context.Context, model *DiagramModel) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()

	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	gvNodes := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, node := range model.Nodes {
		gvNode, err := graph.CreateNodeByName(node.ID)
		if err != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, err)
		}
		label := node.Label
		if node.Status != nil && node.Status.Value != "" {
			label += "\n" + node.Status.Value
		}
		gvNode.SetLabel(label)
		applyNodeStyle(gvNode, node)
		gvNodes[node.ID] = gvNode
	}

	for _, edge := range model.Edges {
		from, to := gvNodes[edge.From], gvNodes[edge.To]
		if from == nil || to == nil {
			continue
		}
		e, err := graph.CreateEdgeByName("", from, to)
		if err == nil && edge.Label != "" {
			e.SetLabel(edge.Label)
		}
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func applyNodeStyle(gvNode *cgraph.Node, node *Node) {
	switch node.Kind {
	case NodeKindInput:
		gvNode.SetShape(cgraph.EllipseShape)
	case NodeKindOutput:
		gvNode.SetShape(cgraph.HexagonShape)
	default:
		gvNode.SetShape(cgraph.BoxShape)
	}

	if node.Status == nil {
		return
	}
	gvNode.SetStyle(cgraph.FilledNodeStyle)
	gvNode.SetFontColor("white")
	switch node.Status.Status {
	case StatusOK:
		gvNode.SetFillColor("#2d6a2d")
	case StatusFailed:
		gvNode.SetFillColor("#8b1a1a")
	}
}
