package diagram

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

func statusTag(status string) string {
	switch status {
	case StatusOK:
		return "[OK]"
	case StatusFailed:
		return "[FAIL]"
	default:
		return ""
	}
}

// RenderASCII renders a DiagramModel as rows of boxes, one row per level,
// followed by the edge list and any failure messages.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		fmt.Fprintf(&b, "=== %s ===\n\n", model.Title)
	}

	for i, level := range model.Levels {
		var boxes []asciiBox
		for _, id := range level {
			if node := model.node(id); node != nil {
				boxes = append(boxes, makeBox(node))
			}
		}
		renderBoxRow(&b, boxes)
		if i < len(model.Levels)-1 && len(boxes) > 0 {
			b.WriteString("       │\n")
			b.WriteString("       ▼\n")
		}
	}

	if len(model.Edges) > 0 {
		b.WriteString("\nedges:\n")
		for _, e := range model.Edges {
			fmt.Fprintf(&b, "  %s ─→ %s\n", shortID(e.From), shortID(e.To))
		}
	}

	var failures []string
	for _, n := range model.Nodes {
		if n.Status != nil && n.Status.Status == StatusFailed {
			failures = append(failures, fmt.Sprintf("  %s: %s", shortID(n.ID), n.Status.Error))
		}
	}
	if len(failures) > 0 {
		b.WriteString("\nerrors:\n")
		b.WriteString(strings.Join(failures, "\n"))
		b.WriteByte('\n')
	}
	return b.String()
}

type asciiBox struct {
	lines []string
	width int
}

func makeBox(node *Node) asciiBox {
	content := []string{node.Label}
	if node.Status != nil {
		if tag := statusTag(node.Status.Status); tag != "" {
			content = append(content, tag)
		}
		if node.Status.Value != "" {
			content = append(content, node.Status.Value)
		}
	}

	maxLen := 0
	for _, line := range content {
		if n := utf8.RuneCountInString(line); n > maxLen {
			maxLen = n
		}
	}
	width := maxLen + 4

	lines := []string{"┌" + strings.Repeat("─", width-2) + "┐"}
	for _, c := range content {
		pad := maxLen - utf8.RuneCountInString(c)
		lines = append(lines, "│ "+c+strings.Repeat(" ", pad)+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")
	return asciiBox{lines: lines, width: width}
}

func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}
	height := 0
	for _, box := range boxes {
		height = max(height, len(box.lines))
	}
	for row := 0; row < height; row++ {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// shortID keeps generated UUIDs readable by showing their first segment.
func shortID(id string) string {
	if len(id) == 36 && strings.Count(id, "-") == 4 {
		return id[:8]
	}
	return id
}
