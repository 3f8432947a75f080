// Package editor is the interaction state machine of the canvas. Reduce is a
// pure transition function over immutable State snapshots; Session applies
// events one at a time and schedules debounced re-evaluation.
package editor

import (
	"github.com/rendis/bonsai/internal/graph"
	"github.com/rendis/bonsai/internal/vector"
)

// Viewport is the pan/zoom transform between screen and content space.
type Viewport struct {
	Zoom float64       `json:"zoom"`
	Pan  vector.Vector `json:"pan"`
}

// ViewportConfig carries the canvas dimensions and zoom behaviour.
type ViewportConfig struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	ZoomStep float64 `json:"zoom_step"`
	MinZoom  float64 `json:"min_zoom"`
	MaxZoom  float64 `json:"max_zoom"`
}

// Defaults used by DefaultViewportConfig.
const (
	DefaultWidth    = 1280
	DefaultHeight   = 800
	DefaultZoomStep = 0.05
	DefaultMinZoom  = 0.1
	DefaultMaxZoom  = 10
)

// DefaultViewportConfig returns the configuration used when none is given.
func DefaultViewportConfig() ViewportConfig {
	return ViewportConfig{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		ZoomStep: DefaultZoomStep,
		MinZoom:  DefaultMinZoom,
		MaxZoom:  DefaultMaxZoom,
	}
}

// withDefaults fills zero fields from DefaultViewportConfig.
func (c ViewportConfig) withDefaults() ViewportConfig {
	d := DefaultViewportConfig()
	if c.Width <= 0 {
		c.Width = d.Width
	}
	if c.Height <= 0 {
		c.Height = d.Height
	}
	if c.ZoomStep <= 0 {
		c.ZoomStep = d.ZoomStep
	}
	if c.MinZoom <= 0 {
		c.MinZoom = d.MinZoom
	}
	if c.MaxZoom < c.MinZoom {
		c.MaxZoom = d.MaxZoom
	}
	return c
}

// Center is the screen point zoom scales around.
func (c ViewportConfig) Center() vector.Vector {
	return vector.New(c.Width/2, c.Height/2)
}

// Pointer tracks the button state between pointer events.
type Pointer struct {
	Down bool          `json:"down"`
	Last vector.Vector `json:"last"`
}

// State is one immutable snapshot of the editor. SelectedNode and
// EditingNode are "" when unset.
type State struct {
	Graph        graph.Graph    `json:"graph"`
	Viewport     Viewport       `json:"viewport"`
	Config       ViewportConfig `json:"config"`
	SelectedNode string         `json:"selected_node,omitempty"`
	EditingNode  string         `json:"editing_node,omitempty"`
	Pointer      Pointer        `json:"pointer"`
}

// NewState returns the start-up state for g: unit zoom, no pan, nothing
// selected.
func NewState(g graph.Graph, cfg ViewportConfig) State {
	return State{
		Graph:    g,
		Viewport: Viewport{Zoom: 1},
		Config:   cfg.withDefaults(),
	}
}

// Initial returns the state the editor opens with: the seed graph.
func Initial(cfg ViewportConfig) State {
	return NewState(graph.Seed(), cfg)
}

// ToContent maps a screen point to content space.
func (s State) ToContent(screen vector.Vector) vector.Vector {
	c := s.Config.Center()
	return s.Viewport.Pan.Plus(c).Plus(screen.Minus(c).Times(s.Viewport.Zoom))
}

// ToScreen maps a content point to screen space. It is the inverse of
// ToContent.
func (s State) ToScreen(content vector.Vector) vector.Vector {
	c := s.Config.Center()
	return c.Plus(content.Minus(s.Viewport.Pan).Minus(c).Times(1 / s.Viewport.Zoom))
}
