package diagram

import (
	"context"

	"github.com/rendis/mindflow/pkg/schema"
)

// Format names an output of Render.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// ParseFormat converts a user-supplied format name. Empty means Mermaid.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatMermaid:
		return FormatMermaid, nil
	case FormatASCII:
		return FormatASCII, nil
	}
	return "", schema.NewErrorf(schema.ErrCodeValidation, "unsupported render format %q (want mermaid or ascii)", s)
}

// Render draws model in format. ASCII output goes through the mermaid-ascii
// binary at binPath when it is usable and falls back to the built-in renderer.
func Render(ctx context.Context, model *DiagramModel, format Format, binPath string) (string, error) {
	switch format {
	case FormatMermaid, "":
		return RenderMermaid(model), nil
	case FormatASCII:
		return RenderASCIIAuto(ctx, model, binPath), nil
	}
	return "", schema.NewErrorf(schema.ErrCodeValidation, "unsupported render format %q", format)
}
