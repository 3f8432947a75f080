package graph

import "github.com/rendis/bonsai/internal/vector"

// Seed returns the graph every session starts from: the DOM source flows
// through a single code node into the DOM sink.
func Seed() Graph {
	return New(
		[]Node{
			{ID: "A", Kind: KindInput, Name: "DOM", Position: vector.New(400, 50)},
			{ID: "B", Kind: KindCode, Text: `source.of("hello world")`, Position: vector.New(400, 200)},
			{ID: "C", Kind: KindOutput, Name: "DOM", Position: vector.New(400, 500)},
		},
		[]Edge{
			{From: "A", To: "B"},
			{From: "B", To: "C"},
		},
	)
}
