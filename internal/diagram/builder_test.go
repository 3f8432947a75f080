package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/bonsai/internal/evaluator"
	"github.com/rendis/bonsai/internal/graph"
	"github.com/rendis/bonsai/pkg/schema"
)

func fanInGraph() graph.Graph {
	return graph.New([]graph.Node{
		{ID: "in1", Kind: graph.KindInput, Name: "x"},
		{ID: "in2", Kind: graph.KindInput, Name: "y"},
		{ID: "sum", Kind: graph.KindCode, Text: "source * 2"},
		{ID: "out", Kind: graph.KindOutput, Name: "DOM"},
	}, []graph.Edge{
		{From: "in1", To: "sum"},
		{From: "in2", To: "sum"},
		{From: "sum", To: "out"},
	})
}

func TestBuildSeedLevels(t *testing.T) {
	m := Build("", graph.Seed(), nil)

	assert.Equal(t, "bonsai", m.Title)
	assert.Equal(t, [][]string{{"A"}, {"B"}, {"C"}}, m.Levels)
	require.Len(t, m.Nodes, 3)
	require.Len(t, m.Edges, 2)

	assert.Equal(t, NodeKindInput, m.node("A").Kind)
	assert.Equal(t, "in: DOM", m.node("A").Label)
	assert.Equal(t, NodeKindCode, m.node("B").Kind)
	assert.Equal(t, `source.of("hello world")`, m.node("B").Label)
	assert.Equal(t, "out: DOM", m.node("C").Label)
	for _, n := range m.Nodes {
		assert.Nil(t, n.Status)
	}
}

func TestBuildFanInLevels(t *testing.T) {
	m := Build("fan", fanInGraph(), nil)
	assert.Equal(t, [][]string{{"in1", "in2"}, {"sum"}, {"out"}}, m.Levels)
}

func TestBuildLongestPath(t *testing.T) {
	g := graph.New([]graph.Node{
		{ID: "a", Kind: graph.KindInput, Name: "a"},
		{ID: "b", Kind: graph.KindCode},
		{ID: "c", Kind: graph.KindCode},
		{ID: "d", Kind: graph.KindOutput, Name: "d"},
	}, []graph.Edge{
		{From: "a", To: "b"},
		{From: "b", To: "c"},
		{From: "a", To: "c"},
		{From: "c", To: "d"},
	})
	m := Build("", g, nil)
	assert.Equal(t, [][]string{{"a"}, {"b"}, {"c"}, {"d"}}, m.Levels)
	assert.Equal(t, "(identity)", m.node("b").Label)
}

func TestBuildCycleStillPlacesEveryNode(t *testing.T) {
	g := graph.New([]graph.Node{
		{ID: "in", Kind: graph.KindInput, Name: "x"},
		{ID: "p", Kind: graph.KindCode},
		{ID: "q", Kind: graph.KindCode},
	}, []graph.Edge{
		{From: "in", To: "p"},
		{From: "p", To: "q"},
		{From: "q", To: "p"},
	})
	m := Build("", g, nil)

	var all []string
	for _, level := range m.Levels {
		all = append(all, level...)
	}
	assert.ElementsMatch(t, []string{"in", "p", "q"}, all)
	assert.Equal(t, []string{"in"}, m.Levels[0])
}

func TestBuildOverlay(t *testing.T) {
	res := &evaluator.Result{
		Outputs: map[string]any{"DOM": "hello world"},
		Errors: []*schema.BonsaiError{
			schema.NewError(schema.ErrCodeEval, "unknown name document").WithNode("sum"),
		},
	}
	m := Build("", fanInGraph(), res)

	sum := m.node("sum")
	require.NotNil(t, sum.Status)
	assert.Equal(t, StatusFailed, sum.Status.Status)
	assert.Equal(t, "unknown name document", sum.Status.Error)

	out := m.node("out")
	require.NotNil(t, out.Status)
	assert.Equal(t, StatusOK, out.Status.Status)
	assert.Equal(t, `"hello world"`, out.Status.Value)

	assert.Nil(t, m.node("in1").Status)
}

func TestLabelTruncationAndDialect(t *testing.T) {
	n := graph.Node{ID: "x", Kind: graph.KindCode, Text: "source.map(x => x + 1111111111111111111111111)\n.take(1)", Dialect: "cel"}
	label := nodeLabel(n)
	assert.Contains(t, label, "...")
	assert.Contains(t, label, "[cel]")
	assert.NotContains(t, label, "take")
}
