package cache

import (
	"context"
	"errors"

	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
)

// Searcher is the part of the log store the cache sits in front of.
type Searcher interface {
	SearchLimit(ctx context.Context, q query.Query, limit int) ([]types.LogEntry, error)
}

// Store is a Searcher that can also count matches.
type Store interface {
	Searcher
	Count(ctx context.Context, q query.Query) (int64, error)
}

// CachedStore answers searches and counts from the cache when it can. Cache
// failures are logged and fall through to the store; store errors are never
// cached.
type CachedStore struct {
	store Store
	cache CacheService
}

func NewCachedStore(store Store, cache CacheService) *CachedStore {
	if cache == nil {
		cache = NewNoOpCache()
	}
	return &CachedStore{store: store, cache: cache}
}

func (c *CachedStore) Search(ctx context.Context, q query.Query) ([]types.LogEntry, error) {
	return c.SearchLimit(ctx, q, 0)
}

func (c *CachedStore) SearchLimit(ctx context.Context, q query.Query, limit int) ([]types.LogEntry, error) {
	entries, err := c.cache.GetSearch(ctx, q, limit)
	if err == nil {
		return entries, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Warn().
			Str("component", "cache").
			Str("operation", "get_search").
			Err(err).
			Msg("Cache read failed, querying store")
	}

	entries, err = c.store.SearchLimit(ctx, q, limit)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetSearch(ctx, q, limit, entries); err != nil {
		log.Warn().
			Str("component", "cache").
			Str("operation", "set_search").
			Err(err).
			Msg("Cache write failed")
	}
	return entries, nil
}

func (c *CachedStore) Count(ctx context.Context, q query.Query) (int64, error) {
	total, err := c.cache.GetCount(ctx, q)
	if err == nil {
		return total, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		log.Warn().
			Str("component", "cache").
			Str("operation", "get_count").
			Err(err).
			Msg("Cache read failed, counting in store")
	}

	total, err = c.store.Count(ctx, q)
	if err != nil {
		return 0, err
	}

	if err := c.cache.SetCount(ctx, q, total); err != nil {
		log.Warn().
			Str("component", "cache").
			Str("operation", "set_count").
			Err(err).
			Msg("Cache write failed")
	}
	return total, nil
}

// Invalidate drops every cached search and count. It is called after new entries land
// in the store.
func (c *CachedStore) Invalidate(ctx context.Context) {
	if err := c.cache.InvalidateSearches(ctx); err != nil {
		log.Warn().
			Str("component", "cache").
			Str("operation", "invalidate").
			Err(err).
			Msg("Failed to invalidate cached searches")
	}
}
