package script

import (
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Cache holds compiled programs keyed by language, options and source.
// Lookups are lock free; concurrent misses for the same key share a single
// compilation. Failed compilations are not cached.
type Cache struct {
	entries  sync.Map
	group    singleflight.Group
	compiles atomic.Int64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{}
}

// CacheKey builds the cache key of a script.
func CacheKey(lang Language, source string) string {
	var b strings.Builder
	b.WriteString(lang.ID)
	for _, o := range lang.Options {
		b.WriteByte(0)
		b.WriteString(o.String())
	}
	b.WriteByte(0)
	b.WriteByte(0)
	b.WriteString(source)
	return b.String()
}

// Load returns the cached program for key, compiling it on a miss.
func (c *Cache) Load(key string, compile func() (Program, error)) (Program, error) {
	if p, ok := c.entries.Load(key); ok {
		return p.(Program), nil
	}
	v, err, _ := c.group.Do(key, func() (any, error) {
		if p, ok := c.entries.Load(key); ok {
			return p, nil
		}
		p, err := compile()
		if err != nil {
			return nil, err
		}
		c.compiles.Add(1)
		actual, _ := c.entries.LoadOrStore(key, p)
		return actual, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Program), nil
}

// Len returns the number of cached programs.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Compiles returns how many compilations populated the cache.
func (c *Cache) Compiles() int64 {
	return c.compiles.Load()
}
