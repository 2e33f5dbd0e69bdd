package rawpreview

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	cacheEntries = 64
	cacheTTL     = 5 * time.Minute
)

// resultCache is the process-wide extraction cache: fixed capacity LRU with
// a TTL, keyed by path identity and the selection-relevant options.
type resultCache struct {
	lru *expirable.LRU[string, ExtractionResult]
}

func newResultCache() *resultCache {
	return &resultCache{
		lru: expirable.NewLRU[string, ExtractionResult](cacheEntries, nil, cacheTTL),
	}
}

func (c *resultCache) get(key string) (ExtractionResult, bool) {
	return c.lru.Get(key)
}

func (c *resultCache) put(key string, res ExtractionResult) {
	c.lru.Add(key, res)
}

// cacheKey builds the lookup key for a path. Modification time is part of
// the key, so a rewritten file misses naturally instead of serving a stale
// preview. Returns false when the file cannot be identified; the caller then
// extracts uncached.
func cacheKey(path string, o *ExtractionOptions) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s|%d|%x", abs, info.ModTime().UnixNano(), o.hash()), true
}
