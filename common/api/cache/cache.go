package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/monobilisim/logagent/common/api/models"
	"github.com/monobilisim/logagent/common/query"
	"github.com/monobilisim/logagent/common/types"
	"github.com/rs/zerolog/log"
	"github.com/valkey-io/valkey-go"
)

// ErrCacheMiss is returned by Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

const searchPrefix = "search:"

// CacheService defines the interface for cache operations
type CacheService interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeletePrefix(ctx context.Context, prefix string) error

	// Search results, keyed by query and limit
	SetSearch(ctx context.Context, q query.Query, limit int, entries []types.LogEntry) error
	GetSearch(ctx context.Context, q query.Query, limit int) ([]types.LogEntry, error)
	SetCount(ctx context.Context, q query.Query, total int64) error
	GetCount(ctx context.Context, q query.Query) (int64, error)
	InvalidateSearches(ctx context.Context) error

	Close() error
	Ping(ctx context.Context) error
}

// SearchKey is the cache key for one search.
func SearchKey(q query.Query, limit int) string {
	b, _ := json.Marshal(struct {
		Q     query.Query `json:"q"`
		Limit int         `json:"limit"`
	}{q, limit})
	return searchPrefix + string(b)
}

// CountKey is the cache key for the total matching q. It shares the search
// prefix so InvalidateSearches drops it too.
func CountKey(q query.Query) string {
	b, _ := json.Marshal(q)
	return searchPrefix + "count:" + string(b)
}

// ValkeyCache implements CacheService using Valkey
type ValkeyCache struct {
	client valkey.Client
	config models.ValkeyConfig
}

// NewValkeyCache creates a new Valkey cache instance
func NewValkeyCache(config models.ValkeyConfig) (*ValkeyCache, error) {
	if !config.Enabled {
		return nil, fmt.Errorf("valkey is disabled in configuration")
	}

	options := valkey.ClientOption{
		InitAddress:      []string{config.Address},
		Password:         config.Password,
		SelectDB:         config.Database,
		ConnWriteTimeout: time.Duration(config.WriteTimeout) * time.Second,
	}

	client, err := valkey.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	return &ValkeyCache{
		client: client,
		config: config,
	}, nil
}

func (v *ValkeyCache) buildKey(key string) string {
	return v.config.KeyPrefix + key
}

// Set stores a value with TTL
func (v *ValkeyCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if ttl > 0 {
		return v.client.Do(ctx, v.client.B().Set().Key(v.buildKey(key)).Value(string(data)).Ex(ttl).Build()).Error()
	}
	return v.client.Do(ctx, v.client.B().Set().Key(v.buildKey(key)).Value(string(data)).Build()).Error()
}

// Get retrieves a value and unmarshals it
func (v *ValkeyCache) Get(ctx context.Context, key string, dest interface{}) error {
	result := v.client.Do(ctx, v.client.B().Get().Key(v.buildKey(key)).Build())
	if err := result.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return ErrCacheMiss
		}
		return err
	}

	data, err := result.ToString()
	if err != nil {
		return fmt.Errorf("failed to get string value: %w", err)
	}

	return json.Unmarshal([]byte(data), dest)
}

func (v *ValkeyCache) Delete(ctx context.Context, key string) error {
	return v.client.Do(ctx, v.client.B().Del().Key(v.buildKey(key)).Build()).Error()
}

// DeletePrefix removes every key starting with prefix
func (v *ValkeyCache) DeletePrefix(ctx context.Context, prefix string) error {
	pattern := v.buildKey(prefix) + "*"
	result := v.client.Do(ctx, v.client.B().Keys().Pattern(pattern).Build())
	if result.Error() != nil {
		return result.Error()
	}

	keys, err := result.AsStrSlice()
	if err != nil {
		return fmt.Errorf("failed to get keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	return v.client.Do(ctx, v.client.B().Del().Key(keys...).Build()).Error()
}

func (v *ValkeyCache) SetSearch(ctx context.Context, q query.Query, limit int, entries []types.LogEntry) error {
	ttl := time.Duration(v.config.SearchTTL) * time.Second
	return v.Set(ctx, SearchKey(q, limit), entries, ttl)
}

func (v *ValkeyCache) GetSearch(ctx context.Context, q query.Query, limit int) ([]types.LogEntry, error) {
	var entries []types.LogEntry
	if err := v.Get(ctx, SearchKey(q, limit), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (v *ValkeyCache) SetCount(ctx context.Context, q query.Query, total int64) error {
	ttl := time.Duration(v.config.SearchTTL) * time.Second
	return v.Set(ctx, CountKey(q), total, ttl)
}

func (v *ValkeyCache) GetCount(ctx context.Context, q query.Query) (int64, error) {
	var total int64
	if err := v.Get(ctx, CountKey(q), &total); err != nil {
		return 0, err
	}
	return total, nil
}

func (v *ValkeyCache) InvalidateSearches(ctx context.Context) error {
	return v.DeletePrefix(ctx, searchPrefix)
}

// Close closes the Valkey client
func (v *ValkeyCache) Close() error {
	v.client.Close()
	return nil
}

// Ping checks if the Valkey server is reachable
func (v *ValkeyCache) Ping(ctx context.Context) error {
	return v.client.Do(ctx, v.client.B().Ping().Build()).Error()
}

// NoOpCache is a no-op implementation for when caching is disabled
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (n *NoOpCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return nil
}

func (n *NoOpCache) Get(ctx context.Context, key string, dest interface{}) error {
	return ErrCacheMiss
}

func (n *NoOpCache) Delete(ctx context.Context, key string) error {
	return nil
}

func (n *NoOpCache) DeletePrefix(ctx context.Context, prefix string) error {
	return nil
}

func (n *NoOpCache) SetSearch(ctx context.Context, q query.Query, limit int, entries []types.LogEntry) error {
	return nil
}

func (n *NoOpCache) GetSearch(ctx context.Context, q query.Query, limit int) ([]types.LogEntry, error) {
	return nil, ErrCacheMiss
}

func (n *NoOpCache) SetCount(ctx context.Context, q query.Query, total int64) error {
	return nil
}

func (n *NoOpCache) GetCount(ctx context.Context, q query.Query) (int64, error) {
	return 0, ErrCacheMiss
}

func (n *NoOpCache) InvalidateSearches(ctx context.Context) error {
	return nil
}

func (n *NoOpCache) Close() error {
	return nil
}

func (n *NoOpCache) Ping(ctx context.Context) error {
	return nil
}

// Global cache instance
var GlobalCache CacheService

func init() {
	GlobalCache = NewNoOpCache()
}

// InitCache initializes the global cache instance. On any failure the no-op
// cache stays in place and the error is returned for logging.
func InitCache(config models.ValkeyConfig) error {
	if !config.Enabled {
		log.Info().Str("component", "cache").Msg("Valkey cache is disabled, using no-op cache")
		GlobalCache = NewNoOpCache()
		return nil
	}

	cache, err := NewValkeyCache(config)
	if err != nil {
		log.Error().Str("component", "cache").Err(err).Msg("Failed to initialize Valkey cache, falling back to no-op cache")
		GlobalCache = NewNoOpCache()
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := cache.Ping(ctx); err != nil {
		log.Error().Str("component", "cache").Err(err).Msg("Failed to ping Valkey server, falling back to no-op cache")
		cache.Close()
		GlobalCache = NewNoOpCache()
		return err
	}

	log.Info().
		Str("component", "cache").
		Str("address", config.Address).
		Int("database", config.Database).
		Msg("Valkey cache initialized successfully")

	GlobalCache = cache
	return nil
}

// CloseCache closes the global cache instance
func CloseCache() error {
	if GlobalCache != nil {
		return GlobalCache.Close()
	}
	return nil
}
