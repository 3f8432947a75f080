package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/bonsai/internal/vector"
	"github.com/rendis/bonsai/pkg/schema"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		doc  string
		want Event
	}{
		{`{"type":"wheel","delta":-120,"cursor":{"x":10,"y":20}}`, Wheel{Delta: -120, Cursor: vector.New(10, 20)}},
		{`{"type":"pointer_down","target":"B","position":{"x":1,"y":2}}`, PointerDown{Target: "B", Position: vector.New(1, 2)}},
		{`{"type":"pointer_move","position":{"x":3,"y":4}}`, PointerMove{Position: vector.New(3, 4)}},
		{`{"type":"pointer_up"}`, PointerUp{}},
		{`{"type":"double_activate","target":"B"}`, DoubleActivate{Target: "B"}},
		{`{"type":"text_commit","text":". + 1","dialect":"jq"}`, TextCommit{Text: ". + 1", Dialect: "jq"}},
		{`{"type":"edge_activate","from":"A","to":"B"}`, EdgeActivate{From: "A", To: "B"}},
		{`{"type":"resize","width":640,"height":480}`, Resize{Width: 640, Height: 480}},
		{`{"type":"remove_node","target":"C"}`, RemoveNode{Target: "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.want.Type(), func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev)
		})
	}
}

func TestParseEvent_Invalid(t *testing.T) {
	for _, doc := range []string{
		`not json`,
		`{}`,
		`{"type":"wheel"}`,
		`{"type":"edge_activate","from":"A","to":""}`,
	} {
		t.Run(doc, func(t *testing.T) {
			_, err := ParseEvent([]byte(doc))
			assert.True(t, schema.HasCode(err, schema.ErrCodeInvalidEvent), "got %v", err)
		})
	}
}

func TestMarshalEvent_IsAcceptedByParseEvent(t *testing.T) {
	ev := TextCommit{Target: "B", Text: `source.of("hi")`}

	raw, err := MarshalEvent(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"text_commit","target":"B","text":"source.of(\"hi\")"}`, string(raw))

	parsed, err := ParseEvent(raw)
	require.NoError(t, err)
	assert.Equal(t, ev, parsed)
}
