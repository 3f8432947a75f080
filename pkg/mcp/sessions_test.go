package mcp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWatcherRegistry(t *testing.T) {
	r := NewWatcherRegistry()

	r.Register("b")
	r.Register("a")
	r.Register("a")
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"a", "b"}, r.Sessions())

	r.Remove("a")
	assert.Equal(t, []string{"b"}, r.Sessions())

	r.Remove("missing")
	assert.Equal(t, 1, r.Len())
}
