package sandbox

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultProgramCacheSize bounds each dialect's compiled-program cache. An
// edit session compiles a new program per keystroke-level text change, so
// old texts are evicted least recently used first.
const DefaultProgramCacheSize = 512

// programCache memoizes compiled fragments by key.
type programCache[P any] struct {
	mu    sync.Mutex // serializes compiles
	cache *lru.Cache[string, P]
}

func newProgramCache[P any](size int) *programCache[P] {
	if size <= 0 {
		size = DefaultProgramCacheSize
	}
	c, _ := lru.New[string, P](size) // errors only for size <= 0
	return &programCache[P]{cache: c}
}

// getOrCompile returns the program cached under key, compiling and caching
// it on a miss. Failed compiles are not cached.
func (c *programCache[P]) getOrCompile(key string, compile func() (P, error)) (P, error) {
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.cache.Get(key); ok {
		return p, nil
	}
	p, err := compile()
	if err != nil {
		var zero P
		return zero, err
	}
	c.cache.Add(key, p)
	return p, nil
}

func (c *programCache[P]) Len() int {
	return c.cache.Len()
}
