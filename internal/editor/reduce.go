package editor

import (
	"math"

	"github.com/rendis/bonsai/internal/graph"
	"github.com/rendis/bonsai/pkg/schema"
)

// Reduce applies ev to s. It never mutates s; on error the returned state is
// s itself, so callers always hold a renderable snapshot.
func Reduce(s State, ev Event) (State, error) {
	var (
		next State
		err  error
	)
	switch e := ev.(type) {
	case Wheel:
		next, err = zoom(s, e)
	case PointerDown:
		next, err = pointerDown(s, e)
	case PointerMove:
		next, err = pointerMove(s, e)
	case PointerUp:
		next, err = pointerUp(s, e)
	case DoubleActivate:
		next, err = beginEdit(s, e)
	case TextCommit:
		next, err = commitEdit(s, e)
	case EdgeActivate:
		next, err = splitEdge(s, e)
	case Resize:
		next, err = resize(s, e)
	case RemoveNode:
		next, err = removeNode(s, e)
	case nil:
		err = schema.NewError(schema.ErrCodeInvalidEvent, "nil event")
	default:
		err = schema.NewErrorf(schema.ErrCodeInvalidEvent, "unsupported event %T", ev)
	}
	if err != nil {
		return s, err
	}
	return next, nil
}

// zoom scales the viewport by one step around e.Cursor. The pan is adjusted
// so ToContent(e.Cursor) is the same before and after.
func zoom(s State, e Wheel) (State, error) {
	if !e.Cursor.IsFinite() || math.IsNaN(e.Delta) {
		return s, nonFinite("wheel")
	}
	if s.Viewport.Zoom <= 0 {
		return s, schema.NewErrorf(schema.ErrCodeValidation, "viewport zoom %v is not positive", s.Viewport.Zoom)
	}

	step := s.Config.ZoomStep
	if e.Delta >= 0 {
		step = -step
	}
	target := math.Min(math.Max(s.Viewport.Zoom*(1+step), s.Config.MinZoom), s.Config.MaxZoom)
	// The effective step after clamping.
	step = target/s.Viewport.Zoom - 1

	offset := e.Cursor.Minus(s.Config.Center())
	s.Viewport.Pan = s.Viewport.Pan.Plus(offset.Times(-s.Viewport.Zoom * step))
	s.Viewport.Zoom = target
	return s, nil
}

func pointerDown(s State, e PointerDown) (State, error) {
	if !e.Position.IsFinite() {
		return s, nonFinite("pointer down")
	}
	if e.Target != "" {
		if _, ok := s.Graph.Node(e.Target); !ok {
			return s, schema.NewErrorf(schema.ErrCodeNotFound, "node %s not found", e.Target).WithNode(e.Target)
		}
	}
	s.SelectedNode = e.Target
	s.Pointer = Pointer{Down: true, Last: e.Position}
	return s, nil
}

// pointerMove drags the selected node, or pans the view when nothing is
// selected. Screen deltas are scaled by the zoom into content units.
func pointerMove(s State, e PointerMove) (State, error) {
	if !e.Position.IsFinite() {
		return s, nonFinite("pointer move")
	}
	if !s.Pointer.Down {
		s.Pointer.Last = e.Position
		return s, nil
	}

	scaled := e.Position.Minus(s.Pointer.Last).Times(s.Viewport.Zoom)
	s.Pointer.Last = e.Position

	if s.SelectedNode != "" {
		g, err := s.Graph.MoveNode(s.SelectedNode, scaled)
		if err == nil {
			s.Graph = g
			return s, nil
		}
		// The selected node was removed mid-drag.
		s.SelectedNode = ""
	}
	s.Viewport.Pan = s.Viewport.Pan.Minus(scaled)
	return s, nil
}

func pointerUp(s State, e PointerUp) (State, error) {
	if !e.Position.IsFinite() {
		return s, nonFinite("pointer up")
	}
	s.SelectedNode = ""
	s.Pointer = Pointer{Down: false, Last: e.Position}
	return s, nil
}

func beginEdit(s State, e DoubleActivate) (State, error) {
	n, ok := s.Graph.Node(e.Target)
	if !ok {
		return s, schema.NewErrorf(schema.ErrCodeNotFound, "node %s not found", e.Target).WithNode(e.Target)
	}
	if n.Kind != graph.KindCode {
		return s, schema.NewErrorf(schema.ErrCodeValidation, "only code nodes can be edited, %s is %s", n.ID, n.Kind).
			WithNode(n.ID)
	}
	s.EditingNode = n.ID
	return s, nil
}

// commitEdit is a no-op unless a node is being edited and e targets it.
func commitEdit(s State, e TextCommit) (State, error) {
	if s.EditingNode == "" || (e.Target != "" && e.Target != s.EditingNode) {
		return s, nil
	}

	g, err := s.Graph.SetCode(s.EditingNode, e.Text)
	if err != nil {
		return s, err
	}
	if e.Dialect != "" {
		n, _ := g.Node(s.EditingNode)
		n.Dialect = e.Dialect
		g = g.WithNode(n)
	}
	s.Graph = g
	s.EditingNode = ""
	return s, nil
}

// splitEdge subdivides the edge and opens the new node for editing.
func splitEdge(s State, e EdgeActivate) (State, error) {
	g, id, err := s.Graph.SplitEdge(e.From, e.To)
	if err != nil {
		return s, err
	}
	s.Graph = g
	s.EditingNode = id
	return s, nil
}

func resize(s State, e Resize) (State, error) {
	if !(e.Width > 0 && e.Height > 0) || math.IsInf(e.Width, 0) || math.IsInf(e.Height, 0) {
		return s, schema.NewErrorf(schema.ErrCodeValidation, "invalid viewport size %vx%v", e.Width, e.Height)
	}
	s.Config.Width = e.Width
	s.Config.Height = e.Height
	return s, nil
}

func removeNode(s State, e RemoveNode) (State, error) {
	g, err := s.Graph.RemoveNode(e.Target)
	if err != nil {
		return s, err
	}
	s.Graph = g
	if s.SelectedNode == e.Target {
		s.SelectedNode = ""
	}
	if s.EditingNode == e.Target {
		s.EditingNode = ""
	}
	return s, nil
}

func nonFinite(event string) error {
	return schema.NewErrorf(schema.ErrCodeValidation, "%s event carries a non-finite number", event)
}
