package storage

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// MarkCache keeps decoded marks files, keyed by their full path. A nil
// *MarkCache is valid and caches nothing.
type MarkCache struct {
	cache *lru.Cache[string, []Mark]
}

// NewMarkCache returns a cache holding up to entries marks files.
func NewMarkCache(entries int) (*MarkCache, error) {
	c, err := lru.New[string, []Mark](entries)
	if err != nil {
		return nil, fmt.Errorf("create mark cache: %w", err)
	}
	return &MarkCache{cache: c}, nil
}

func (c *MarkCache) get(key string) ([]Mark, bool) {
	if c == nil {
		return nil, false
	}
	marks, ok := c.cache.Get(key)
	recordCacheLookup("marks", ok)
	return marks, ok
}

func (c *MarkCache) add(key string, marks []Mark) {
	if c != nil {
		c.cache.Add(key, marks)
	}
}

// Len returns the number of cached marks files.
func (c *MarkCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

// UncompressedCache keeps decompressed blocks of .bin files, keyed by file
// path and block offset. A nil *UncompressedCache is valid and caches
// nothing.
type UncompressedCache struct {
	cache *lru.Cache[string, []byte]
}

// NewUncompressedCache returns a cache holding up to entries blocks.
func NewUncompressedCache(entries int) (*UncompressedCache, error) {
	c, err := lru.New[string, []byte](entries)
	if err != nil {
		return nil, fmt.Errorf("create uncompressed cache: %w", err)
	}
	return &UncompressedCache{cache: c}, nil
}

func uncompressedKey(path string, offset uint64) string {
	return fmt.Sprintf("%s@%d", path, offset)
}

func (c *UncompressedCache) get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	data, ok := c.cache.Get(key)
	recordCacheLookup("uncompressed", ok)
	return data, ok
}

func (c *UncompressedCache) add(key string, data []byte) {
	if c != nil {
		c.cache.Add(key, data)
	}
}

// Len returns the number of cached blocks.
func (c *UncompressedCache) Len() int {
	if c == nil {
		return 0
	}
	return c.cache.Len()
}

func recordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheRequests.WithLabelValues(cache, result).Inc()
}
