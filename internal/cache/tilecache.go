// Package cache provides an in-memory LRU for raw tile bytes. Tiles
// for the same capture are frequently re-requested across adjacent
// grid fetches; nothing is ever written to disk.
package cache

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/walkthru-earth/property-aerial/internal/mercator"
)

// TileCache holds recently fetched tile payloads keyed by image URN
// and tile coordinate.
type TileCache struct {
	entries *lru.Cache[string, []byte]
	hits    int64
	misses  int64
}

// Stats reports cache effectiveness counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// New creates a tile cache bounded to the given number of entries.
func New(maxEntries int) (*TileCache, error) {
	if maxEntries <= 0 {
		maxEntries = 2048
	}
	entries, err := lru.New[string, []byte](maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create tile cache: %w", err)
	}
	return &TileCache{entries: entries}, nil
}

// Key builds the cache key for a tile of an image.
func Key(urn string, t mercator.Tile) string {
	return fmt.Sprintf("%s/%s", urn, t)
}

// Get returns the cached payload for a key, if present.
func (c *TileCache) Get(key string) ([]byte, bool) {
	data, ok := c.entries.Get(key)
	if ok {
		atomic.AddInt64(&c.hits, 1)
	} else {
		atomic.AddInt64(&c.misses, 1)
	}
	return data, ok
}

// Set stores a tile payload, evicting the least recently used entry
// when full.
func (c *TileCache) Set(key string, data []byte) {
	c.entries.Add(key, data)
}

// Stats returns a snapshot of the counters.
func (c *TileCache) Stats() Stats {
	return Stats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Entries: c.entries.Len(),
	}
}
