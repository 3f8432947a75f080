package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/bonsai/internal/graph"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	isolateHome(t)
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "bonsai dev"))
}

func TestRunCmd_SeedGraph(t *testing.T) {
	out, err := execute(t, "run")
	require.NoError(t, err)

	var got struct {
		Outputs map[string]any `json:"outputs"`
		Visited int            `json:"visited"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 3, got.Visited)
	assert.Contains(t, out, "hello world")
}

func TestRunCmd_StrictFailure(t *testing.T) {
	dir := t.TempDir()
	g := graph.New(
		[]graph.Node{
			{ID: "A", Kind: graph.KindInput, Name: "DOM"},
			{ID: "B", Kind: graph.KindCode, Text: ")("},
			{ID: "C", Kind: graph.KindOutput, Name: "DOM"},
		},
		[]graph.Edge{{From: "A", To: "B"}, {From: "B", To: "C"}},
	)
	data, err := json.Marshal(g)
	require.NoError(t, err)
	path := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	stdout, err := execute(t, "run", "--graph", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "failed_nodes")

	_, err = execute(t, "run", "--graph", path, "--strict")
	assert.Error(t, err)
}

func TestRunCmd_IdentityCodeNodeOutputsDriver(t *testing.T) {
	dir := t.TempDir()
	g := graph.New(
		[]graph.Node{
			{ID: "A", Kind: graph.KindInput, Name: "DOM"},
			{ID: "B", Kind: graph.KindCode, Text: ""},
			{ID: "C", Kind: graph.KindOutput, Name: "DOM"},
		},
		[]graph.Edge{{From: "A", To: "B"}, {From: "B", To: "C"}},
	)
	data, err := json.Marshal(g)
	require.NoError(t, err)
	graphPath := filepath.Join(dir, "graph.json")
	require.NoError(t, os.WriteFile(graphPath, data, 0o644))
	sourcesPath := filepath.Join(dir, "sources.json")
	require.NoError(t, os.WriteFile(sourcesPath, []byte(`{"DOM":"page"}`), 0o644))

	out, err := execute(t, "run", "--graph", graphPath, "--sources", sourcesPath, "--strict")
	require.NoError(t, err)

	var got struct {
		Outputs map[string]any `json:"outputs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, map[string]any{"name": "DOM", "value": "page"}, got.Outputs["DOM"])
}

func TestRunCmd_MissingGraphFile(t *testing.T) {
	_, err := execute(t, "run", "--graph", filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestRunCmd_InvalidConfig(t *testing.T) {
	_, err := execute(t, "run", "--dialect", "cobol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestRunCmd_Journal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	_, err := execute(t, "run", "--journal", path)
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDiagramCmd_Mermaid(t *testing.T) {
	out, err := execute(t, "diagram", "--format", "mermaid", "--evaluate")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "graph TD"))
	assert.Contains(t, out, "classDef ok")
}

func TestDiagramCmd_ToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	out, err := execute(t, "diagram", "--out", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "in: DOM")
}

func TestDiagramCmd_UnknownFormat(t *testing.T) {
	_, err := execute(t, "diagram", "--format", "svg")
	assert.Error(t, err)
}

func TestServe_GracefulShutdown(t *testing.T) {
	isolateHome(t)
	cfg := defaultConfig()
	a, err := newApp(context.Background(), cfg, appInput{logOut: io.Discard})
	require.NoError(t, err)
	defer a.close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/api/state")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
