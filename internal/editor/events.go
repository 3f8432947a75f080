package editor

import "github.com/rendis/bonsai/internal/vector"

// Event type names used in the JSON envelope.
const (
	TypeWheel          = "wheel"
	TypePointerDown    = "pointer_down"
	TypePointerMove    = "pointer_move"
	TypePointerUp      = "pointer_up"
	TypeDoubleActivate = "double_activate"
	TypeTextCommit     = "text_commit"
	TypeEdgeActivate   = "edge_activate"
	TypeResize         = "resize"
	TypeRemoveNode     = "remove_node"
)

// Event is an inbound interaction, independent of any UI toolkit.
type Event interface {
	Type() string
}

// Wheel zooms around Cursor. A negative Delta zooms in.
type Wheel struct {
	Delta  float64       `json:"delta"`
	Cursor vector.Vector `json:"cursor"`
}

// PointerDown presses the pointer at Position. Target is the node under the
// pointer, or "" for the background.
type PointerDown struct {
	Target   string        `json:"target,omitempty"`
	Position vector.Vector `json:"position"`
}

// PointerMove moves the pointer to Position.
type PointerMove struct {
	Position vector.Vector `json:"position"`
}

// PointerUp releases the pointer.
type PointerUp struct {
	Position vector.Vector `json:"position"`
}

// DoubleActivate is the edit gesture on a node.
type DoubleActivate struct {
	Target string `json:"target"`
}

// TextCommit replaces the text of the node being edited. Target may be left
// empty to mean the editing node; Dialect, when set, also switches the
// node's dialect.
type TextCommit struct {
	Target  string `json:"target,omitempty"`
	Text    string `json:"text"`
	Dialect string `json:"dialect,omitempty"`
}

// EdgeActivate is the gesture on an edge's midpoint marker.
type EdgeActivate struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Resize changes the canvas dimensions.
type Resize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RemoveNode deletes a node and its edges.
type RemoveNode struct {
	Target string `json:"target"`
}

func (Wheel) Type() string          { return TypeWheel }
func (PointerDown) Type() string    { return TypePointerDown }
func (PointerMove) Type() string    { return TypePointerMove }
func (PointerUp) Type() string      { return TypePointerUp }
func (DoubleActivate) Type() string { return TypeDoubleActivate }
func (TextCommit) Type() string     { return TypeTextCommit }
func (EdgeActivate) Type() string   { return TypeEdgeActivate }
func (Resize) Type() string         { return TypeResize }
func (RemoveNode) Type() string     { return TypeRemoveNode }
