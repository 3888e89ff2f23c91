package transport

import (
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	defaultCacheEntries = 256
	defaultCacheTTL     = time.Minute
)

// responseCache is the shared GET cache used by CacheForce. Entries are
// keyed by URL plus the credentials that produced them, are never mutated
// after insertion and expire after a fixed TTL.
type responseCache struct {
	lru *expirable.LRU[string, *Response]
}

func newResponseCache(size int, ttl time.Duration) *responseCache {
	if size <= 0 {
		size = defaultCacheEntries
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &responseCache{lru: expirable.NewLRU[string, *Response](size, nil, ttl)}
}

func cacheKey(method, url string, h http.Header) string {
	return strings.Join([]string{method, url, h.Get("Authorization"), h.Get("Cookie")}, "\x00")
}

func (c *responseCache) get(key string) (*Response, bool) {
	return c.lru.Get(key)
}

func (c *responseCache) put(key string, resp *Response) {
	c.lru.Add(key, resp)
}

func (c *responseCache) purge() {
	c.lru.Purge()
}
