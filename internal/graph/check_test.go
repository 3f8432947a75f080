package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/bonsai/pkg/schema"
)

func TestValidate_SeedIsClean(t *testing.T) {
	result := Validate(Seed())
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestValidate_DanglingEdge(t *testing.T) {
	g := New([]Node{input("A", "in")}, []Edge{{From: "A", To: "ghost"}})

	result := Validate(g)
	require.False(t, result.Valid())
	assert.Equal(t, "edges[0].to", result.Errors[0].Path)
	assert.Equal(t, schema.ErrCodeNotFound, result.Errors[0].Code)
}

func TestValidate_Cycle(t *testing.T) {
	g := New(
		[]Node{input("A", "in"), code("B", "1"), code("C", "2")},
		[]Edge{{From: "A", To: "B"}, {From: "B", To: "C"}, {From: "C", To: "B"}},
	)

	result := Validate(g)
	require.False(t, result.Valid())
	assert.Equal(t, schema.ErrCodeCycleDetected, result.Errors[0].Code)
	assert.Contains(t, result.Errors[0].Message, "[B C]")
	assert.Equal(t, []string{"B", "C"}, result.Errors[0].NodeIDs)
}

func TestValidate_Warnings(t *testing.T) {
	g := New(
		[]Node{
			input("A", "in"),
			code("B", "1"),
			code("C", "2"),
			output("D", "out"),
			output("E", "out"),
			output("F", "orphan"),
		},
		[]Edge{
			{From: "A", To: "B"},
			{From: "A", To: "C"},
			{From: "B", To: "D"},
			{From: "C", To: "D"},
			{From: "C", To: "E"},
		},
	)

	result := Validate(g)
	assert.True(t, result.Valid())

	paths := make([]string, 0, len(result.Warnings))
	for _, w := range result.Warnings {
		paths = append(paths, w.Path)
	}
	assert.ElementsMatch(t, []string{"nodes[D]", "outputs[out]", "nodes[F]"}, paths)
}
