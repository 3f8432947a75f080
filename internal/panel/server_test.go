package panel

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/bonsai/internal/editor"
	"github.com/rendis/bonsai/internal/journal"
	"github.com/rendis/bonsai/internal/sandbox"
	"github.com/rendis/bonsai/internal/streaming"
	"github.com/rendis/bonsai/pkg/schema"
)

type fixture struct {
	server  *httptest.Server
	session *editor.Session
	hub     *streaming.MemoryHub
	journal *journal.Journal
}

func newFixture(t *testing.T, withJournal bool) *fixture {
	t.Helper()
	hub := streaming.NewMemoryHub()
	opts := []editor.SessionOption{
		editor.WithSessionID("sess-1"),
		editor.WithHub(hub),
		editor.WithDebounceWindow(time.Hour),
		editor.WithSources(sandbox.WrapSources(map[string]any{"DOM": "page"})),
	}
	f := &fixture{hub: hub}
	if withJournal {
		j, err := journal.Open(context.Background(), filepath.Join(t.TempDir(), "runs.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = j.Close() })
		f.journal = j
		opts = append(opts, editor.WithRecorder(j))
	}
	f.session = editor.NewSession(editor.Initial(editor.DefaultViewportConfig()), opts...)
	t.Cleanup(f.session.Close)

	deps := Deps{Session: f.session, Hub: hub, Dialects: sandbox.New()}
	if f.journal != nil {
		deps.History = f.journal
	}
	f.server = httptest.NewServer(NewServer(deps).Handler())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(f.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestState(t *testing.T) {
	f := newFixture(t, false)
	resp := f.get(t, "/api/state")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "sess-1", body["session_id"])
	assert.Equal(t, float64(0), body["version"])
	st := body["state"].(map[string]any)
	nodes := st["graph"].(map[string]any)["nodes"].(map[string]any)
	assert.Len(t, nodes, 3)
}

func TestPostEventAccepted(t *testing.T) {
	f := newFixture(t, false)
	resp := f.post(t, "/api/events", `{"type":"double_activate","target":"B"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, float64(1), body["version"])
	assert.Equal(t, true, body["pending"])
	assert.Equal(t, "B", body["state"].(map[string]any)["editing_node"])
}

func TestPostEventSchemaRejected(t *testing.T) {
	f := newFixture(t, false)
	resp := f.post(t, "/api/events", `{"type":"teleport"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, schema.ErrCodeInvalidEvent, body["error"].(map[string]any)["code"])
	assert.Equal(t, uint64(0), f.session.Version())
}

func TestPostEventTransitionRejected(t *testing.T) {
	f := newFixture(t, false)
	resp := f.post(t, "/api/events", `{"type":"edge_activate","from":"A","to":"C"}`)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, schema.ErrCodeMalformedSplit, body["error"].(map[string]any)["code"])
	assert.NotNil(t, body["state"])
	assert.Equal(t, uint64(0), f.session.Version())
}

func TestPostSources(t *testing.T) {
	f := newFixture(t, false)
	resp := f.post(t, "/api/sources", `{"DOM":{"title":"x"}}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	dom := f.session.Sources()["DOM"].(sandbox.Driver)
	assert.Equal(t, map[string]any{"title": "x"}, dom.Value())

	other := f.post(t, "/api/sources", `{"clock":1}`)
	require.Equal(t, http.StatusAccepted, other.StatusCode)
	sources := f.session.Sources()
	assert.Contains(t, sources, "DOM", "graph inputs keep a driver")
	assert.Nil(t, sources["DOM"].(sandbox.Driver).Value())
	assert.Equal(t, 1.0, sources["clock"].(sandbox.Driver).Value())
	res := f.session.EvaluateNow(context.Background(), editor.TriggerManual)
	assert.True(t, res.OK())

	bad := f.post(t, "/api/sources", `[1,2]`)
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestRunAndOutputs(t *testing.T) {
	f := newFixture(t, false)

	before := decodeBody(t, f.get(t, "/api/outputs"))
	assert.Equal(t, false, before["evaluated"])

	resp := f.post(t, "/api/run", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	run := decodeBody(t, resp)
	assert.Equal(t, float64(3), run["visited"])

	after := decodeBody(t, f.get(t, "/api/outputs"))
	assert.Equal(t, true, after["evaluated"])
	outputs := after["outputs"].(map[string]any)
	assert.Equal(t, map[string]any{"stream": []any{"hello world"}}, outputs["DOM"])
}

func TestRunWithIdentityCodeNode(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	_, err := f.session.Dispatch(ctx, editor.DoubleActivate{Target: "B"})
	require.NoError(t, err)
	_, err = f.session.Dispatch(ctx, editor.TextCommit{Text: ""})
	require.NoError(t, err)

	resp := f.post(t, "/api/run", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	after := decodeBody(t, f.get(t, "/api/outputs"))
	outputs := after["outputs"].(map[string]any)
	assert.Equal(t, map[string]any{"name": "DOM", "value": "page"}, outputs["DOM"])

	runs, err := f.journal.ListRuns(ctx, "sess-1", 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestWriteJSON_UnencodableValue(t *testing.T) {
	rec := httptest.NewRecorder()
	writeJSON(rec, http.StatusOK, map[string]any{"fn": func() {}})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body["error"], "encode response")
}

func TestRunsDisabledWithoutJournal(t *testing.T) {
	f := newFixture(t, false)
	assert.Equal(t, http.StatusNotImplemented, f.get(t, "/api/runs").StatusCode)
	assert.Equal(t, http.StatusNotImplemented, f.get(t, "/api/runs/x").StatusCode)
}

func TestRunsFromJournal(t *testing.T) {
	f := newFixture(t, true)
	f.session.EvaluateNow(context.Background(), editor.TriggerManual)
	f.session.EvaluateNow(context.Background(), editor.TriggerManual)

	resp := f.get(t, "/api/runs?limit=1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	runs := decodeBody(t, resp)["runs"].([]any)
	require.Len(t, runs, 1)
	id := runs[0].(map[string]any)["id"].(string)

	one := f.get(t, "/api/runs/"+id)
	require.Equal(t, http.StatusOK, one.StatusCode)
	assert.Equal(t, "manual", decodeBody(t, one)["trigger"])

	missing := f.get(t, "/api/runs/nope")
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestDiagram(t *testing.T) {
	f := newFixture(t, false)

	resp := f.get(t, "/api/diagram?format=mermaid")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	var sb strings.Builder
	_, err := bufio.NewReader(resp.Body).WriteTo(&sb)
	require.NoError(t, err)
	assert.Contains(t, sb.String(), "graph TD")

	bad := f.get(t, "/api/diagram?format=svg")
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestValidate(t *testing.T) {
	f := newFixture(t, false)
	body := decodeBody(t, f.get(t, "/api/validate"))
	assert.Equal(t, true, body["valid"])
}

func TestIndex(t *testing.T) {
	f := newFixture(t, true)
	f.session.EvaluateNow(context.Background(), editor.TriggerManual)

	resp := f.get(t, "/")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var sb strings.Builder
	_, err := bufio.NewReader(resp.Body).WriteTo(&sb)
	require.NoError(t, err)
	page := sb.String()
	assert.Contains(t, page, "sess-1")
	assert.Contains(t, page, "hello world")
	assert.Contains(t, page, "recent runs")
}

func TestSSEStreamsSessionEvents(t *testing.T) {
	f := newFixture(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.server.URL+"/sse?types=state.changed", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return f.hub.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	// Filtered out by ?types.
	f.session.EvaluateNow(context.Background(), editor.TriggerManual)
	_, err = f.session.Dispatch(context.Background(), editor.DoubleActivate{Target: "B"})
	require.NoError(t, err)

	reader := bufio.NewReader(resp.Body)
	var eventLine, dataLine string
	for eventLine == "" || dataLine == "" {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		switch {
		case strings.HasPrefix(line, "event: "):
			eventLine = strings.TrimSpace(strings.TrimPrefix(line, "event: "))
		case strings.HasPrefix(line, "data: "):
			dataLine = strings.TrimPrefix(line, "data: ")
		}
	}
	assert.Equal(t, schema.EventStateChanged, eventLine)

	var ev streaming.StreamEvent
	require.NoError(t, json.Unmarshal([]byte(dataLine), &ev))
	assert.Equal(t, "sess-1", ev.SessionID)
}
