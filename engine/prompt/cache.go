package prompt

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/mathieu007/dev-wizard-engine/engine/step"
)

// cacheKey derives a stable key from (repoRoot, providerType, providerConfig),
// per spec.md §4.5's "(repoRoot, providerConfig)" session cache key.
func cacheKey(repoRoot, providerType string, cfg map[string]any) string {
	data, _ := json.Marshal(cfg)
	sum := sha1.Sum(append([]byte(repoRoot+"\x00"+providerType+"\x00"), data...))
	return hex.EncodeToString(sum[:])
}

// Cache partitions dynamic-option results by cache mode: "session" lives
// only for the run (a plain map, cleared by discarding the Cache),
// "{ttlMs}" and "always" are process-wide, shared across runs within
// this process's lifetime.
type Cache struct {
	mu      sync.Mutex
	session map[string][]step.Option

	alwaysMu sync.Mutex
	always   map[string][]step.Option
}

// NewCache builds an empty per-run Cache. The process-wide "always"/TTL
// tiers are backed by package-level state so they genuinely outlive any
// one Cache instance, matching "process-wide forever"/"process-wide with
// TTL" in spec.md §4.5.
func NewCache() *Cache {
	return &Cache{session: make(map[string][]step.Option)}
}

var (
	ttlCachesMu sync.Mutex
	ttlCaches   = make(map[time.Duration]*lru.LRU[string, []step.Option])

	alwaysCacheMu sync.Mutex
	alwaysCache   = make(map[string][]step.Option)
)

func ttlCache(ttl time.Duration) *lru.LRU[string, []step.Option] {
	ttlCachesMu.Lock()
	defer ttlCachesMu.Unlock()
	c, ok := ttlCaches[ttl]
	if !ok {
		c = lru.NewLRU[string, []step.Option](4096, nil, ttl)
		ttlCaches[ttl] = c
	}
	return c
}

// Resolve runs resolve() and caches its result according to dyn.Cache,
// or runs it uncached if dyn.Cache is nil.
func (c *Cache) Resolve(
	_ context.Context,
	repoRoot string,
	dyn *step.DynamicOptions,
	resolve func() ([]step.Option, error),
) ([]step.Option, error) {
	if dyn.Cache == nil {
		return resolve()
	}
	key := cacheKey(repoRoot, dyn.Type, dyn.Config)

	switch dyn.Cache.Mode {
	case step.CacheSession:
		c.mu.Lock()
		if v, ok := c.session[key]; ok {
			c.mu.Unlock()
			return v, nil
		}
		c.mu.Unlock()
		v, err := resolve()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.session[key] = v
		c.mu.Unlock()
		return v, nil

	case step.CacheAlways:
		alwaysCacheMu.Lock()
		if v, ok := alwaysCache[key]; ok {
			alwaysCacheMu.Unlock()
			return v, nil
		}
		alwaysCacheMu.Unlock()
		v, err := resolve()
		if err != nil {
			return nil, err
		}
		alwaysCacheMu.Lock()
		alwaysCache[key] = v
		alwaysCacheMu.Unlock()
		return v, nil

	case step.CacheTTL:
		ttl := time.Duration(dyn.Cache.TTLMs) * time.Millisecond
		lruCache := ttlCache(ttl)
		if v, ok := lruCache.Get(key); ok {
			return v, nil
		}
		v, err := resolve()
		if err != nil {
			return nil, err
		}
		lruCache.Add(key, v)
		return v, nil
	}
	return resolve()
}
