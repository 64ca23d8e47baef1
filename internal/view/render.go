package view

import (
	"bytes"
	"fmt"
	"io"

	"github.com/labstack/echo/v4"
	g "maragu.dev/gomponents"
)

// Renderer renders gomponents nodes for echo's c.Render(status, name, node).
type Renderer struct{}

var _ echo.Renderer = (*Renderer)(nil)

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Render implements echo.Renderer. The node is passed as data; name is unused.
func (r *Renderer) Render(w io.Writer, _ string, data any, _ echo.Context) error {
	node, ok := data.(g.Node)
	if !ok {
		return fmt.Errorf("unsupported component type: %T. Component must be a gomponents.Node", data)
	}
	return node.Render(w)
}

// RenderComponent renders a node to bytes.
func (r *Renderer) RenderComponent(node g.Node) ([]byte, error) {
	var buf bytes.Buffer
	if err := node.Render(&buf); err != nil {
		return nil, fmt.Errorf("failed to render component to bytes: %w", err)
	}
	return buf.Bytes(), nil
}
