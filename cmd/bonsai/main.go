// Command bonsai runs the graph evaluation engine: a live preview server,
// an MCP server, and one-shot evaluation and diagram commands.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
