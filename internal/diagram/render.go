// Package diagram renders a graph, optionally overlaid with the outcome of
// its last evaluation, as Mermaid, ASCII or PNG.
package diagram

import (
	"context"

	"github.com/rendis/bonsai/pkg/schema"
)

// Supported output formats.
const (
	FormatMermaid = "mermaid"
	FormatASCII   = "ascii"
	FormatPNG     = "png"
)

// Render dispatches to the renderer for format and returns the bytes plus
// their content type.
func Render(ctx context.Context, format string, model *DiagramModel) ([]byte, string, error) {
	switch format {
	case "", FormatMermaid:
		return []byte(RenderMermaid(model)), "text/plain; charset=utf-8", nil
	case FormatASCII:
		return []byte(RenderASCII(model)), "text/plain; charset=utf-8", nil
	case FormatPNG:
		png, err := RenderImage(ctx, model)
		if err != nil {
			return nil, "", err
		}
		return png, "image/png", nil
	default:
		return nil, "", schema.NewErrorf(schema.ErrCodeValidation, "unknown diagram format %q", format).
			WithDetails(map[string]any{"format": format})
	}
}
