package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// missSentinel marks a confirmed-absent code so repeated invalid codes in a
// large file do not hammer the lookup service.
const missSentinel = "__miss__"

// CachedLookup decorates a Lookup with a redis cache. Cache failures fall
// through to the inner lookup: a degraded cache must never turn into a
// "lookup unavailable" finding on its own.
type CachedLookup struct {
	inner  Lookup
	client *redis.Client
	ttl    time.Duration
}

// NewCached wraps inner with a redis cache. A nil client returns inner
// unchanged so callers need no cache-disabled branch.
func NewCached(inner Lookup, client *redis.Client, ttl time.Duration) Lookup {
	if client == nil {
		return inner
	}
	return &CachedLookup{inner: inner, client: client, ttl: ttl}
}

func cacheKey(catalogName, code string) string {
	return fmt.Sprintf("certus:catalog:%s:%s", catalogName, code)
}

// Exists checks the cache, then the inner lookup. Only confirmed misses
// are written back here; hits get cached with their fields on the
// Metadata path.
func (c *CachedLookup) Exists(ctx context.Context, catalogName, code string) (bool, error) {
	if cached, err := c.client.Get(ctx, cacheKey(catalogName, code)).Result(); err == nil {
		return cached != missSentinel, nil
	}

	ok, err := c.inner.Exists(ctx, catalogName, code)
	if err != nil {
		return false, err
	}
	if !ok {
		c.client.Set(ctx, cacheKey(catalogName, code), missSentinel, c.ttl)
	}
	return ok, nil
}

// Metadata returns cached fields when present, consulting the inner lookup
// otherwise.
func (c *CachedLookup) Metadata(ctx context.Context, catalogName, code string) (Fields, error) {
	key := cacheKey(catalogName, code)
	if cached, err := c.client.Get(ctx, key).Result(); err == nil {
		if cached == missSentinel {
			return nil, nil
		}
		var f Fields
		if err := json.Unmarshal([]byte(cached), &f); err == nil {
			return f, nil
		}
	}

	f, err := c.inner.Metadata(ctx, catalogName, code)
	if err != nil {
		return nil, err
	}
	if f == nil {
		c.client.Set(ctx, key, missSentinel, c.ttl)
		return nil, nil
	}
	if payload, err := json.Marshal(f); err == nil {
		c.client.Set(ctx, key, payload, c.ttl)
	}
	return f, nil
}
