package editor

import (
	"encoding/json"

	"github.com/rendis/bonsai/internal/validation"
	"github.com/rendis/bonsai/pkg/schema"
)

// ParseEvent validates raw against the event envelope schema and decodes it
// into the matching Event value.
func ParseEvent(raw []byte) (Event, error) {
	v, err := validation.Default()
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeInvalidEvent, "event schema unavailable").WithCause(err)
	}
	if err := v.ValidateEvent(raw); err != nil {
		return nil, err
	}

	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, schema.NewError(schema.ErrCodeInvalidEvent, "malformed event envelope").WithCause(err)
	}

	var ev Event
	switch envelope.Type {
	case TypeWheel:
		ev, err = decode[Wheel](raw)
	case TypePointerDown:
		ev, err = decode[PointerDown](raw)
	case TypePointerMove:
		ev, err = decode[PointerMove](raw)
	case TypePointerUp:
		ev, err = decode[PointerUp](raw)
	case TypeDoubleActivate:
		ev, err = decode[DoubleActivate](raw)
	case TypeTextCommit:
		ev, err = decode[TextCommit](raw)
	case TypeEdgeActivate:
		ev, err = decode[EdgeActivate](raw)
	case TypeResize:
		ev, err = decode[Resize](raw)
	case TypeRemoveNode:
		ev, err = decode[RemoveNode](raw)
	default:
		return nil, schema.NewErrorf(schema.ErrCodeInvalidEvent, "unknown event type %q", envelope.Type)
	}
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeInvalidEvent, "malformed event").WithCause(err)
	}
	return ev, nil
}

func decode[T Event](raw []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return ev, nil
}

// MarshalEvent encodes ev in the envelope ParseEvent accepts.
func MarshalEvent(ev Event) ([]byte, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["type"] = ev.Type()
	return json.Marshal(fields)
}
