package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")
	if model.Title != "" {
		fmt.Fprintf(&b, "    %%%% %s\n", model.Title)
	}

	for _, node := range model.Nodes {
		fmt.Fprintf(&b, "    %s\n", mermaidNodeDef(node))
	}
	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		fmt.Fprintf(&b, "    %s -->%s %s\n", mermaidSafeID(edge.From), label, mermaidSafeID(edge.To))
	}

	b.WriteString("\n")
	b.WriteString("    classDef ok fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef failed fill:#8b1a1a,stroke:#5c0e0e,color:#fff\n")

	for _, node := range model.Nodes {
		if node.Status != nil {
			fmt.Fprintf(&b, "    class %s %s\n", mermaidSafeID(node.ID), node.Status.Status)
		}
	}
	return b.String()
}

// mermaidNodeDef picks a shape per node kind: inputs are stadiums, outputs
// are circles, code nodes are boxes.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := mermaidEscapeLabel(node.Label)
	if node.Status != nil && node.Status.Value != "" {
		label += " = " + mermaidEscapeLabel(node.Status.Value)
	}

	switch node.Kind {
	case NodeKindInput:
		return fmt.Sprintf("%s([\"%s\"])", id, label)
	case NodeKindOutput:
		return fmt.Sprintf("%s((\"%s\"))", id, label)
	default:
		return fmt.Sprintf("%s[\"%s\"]", id, label)
	}
}

var mermaidIDReplacer = strings.NewReplacer(".", "_", "-", "_", " ", "_")

// mermaidSafeID replaces characters Mermaid does not accept in identifiers.
// Generated node IDs are UUIDs, so the dashes matter.
func mermaidSafeID(id string) string {
	return "n_" + mermaidIDReplacer.Replace(id)
}

var mermaidLabelReplacer = strings.NewReplacer(`"`, "#quot;", "\n", " ")

func mermaidEscapeLabel(s string) string {
	return mermaidLabelReplacer.Replace(s)
}
