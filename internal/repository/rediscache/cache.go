// Package rediscache implements service.Cache on Redis.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/skycast/weather/internal/domain"
	"github.com/skycast/weather/internal/service"
)

// DefaultPrefix namespaces report keys
const DefaultPrefix = "weather:report:"

// Cache stores reports as JSON strings. Keys expire after retention, which
// is longer than the freshness window so stale copies survive provider
// outages.
type Cache struct {
	client    *redis.Client
	prefix    string
	retention time.Duration
}

// New wraps client. retention <= 0 keeps entries for a day.
func New(client *redis.Client, prefix string, retention time.Duration) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &Cache{client: client, prefix: prefix, retention: retention}
}

// Connect parses a redis:// URL and returns a client
func Connect(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	return redis.NewClient(opts), nil
}

// Key returns the Redis key for place. Places differing only in case or
// surrounding space share an entry.
func (c *Cache) Key(place string) string {
	return c.prefix + strings.ToLower(strings.TrimSpace(place))
}

func (c *Cache) Get(ctx context.Context, place string) (service.CacheEntry, bool, error) {
	key := c.Key(place)
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return service.CacheEntry{}, false, nil
	}
	if err != nil {
		return service.CacheEntry{}, false, fmt.Errorf("redis: GET %s: %w", key, err)
	}

	var entry service.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return service.CacheEntry{}, false, fmt.Errorf("redis: decode %s: %w", key, err)
	}
	return entry, true, nil
}

func (c *Cache) Set(ctx context.Context, place string, r domain.Report) error {
	key := c.Key(place)
	raw, err := json.Marshal(service.CacheEntry{Report: r, StoredAt: time.Now()})
	if err != nil {
		return fmt.Errorf("redis: encode %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.retention).Err(); err != nil {
		return fmt.Errorf("redis: SET %s: %w", key, err)
	}
	return nil
}

// Health pings the server
func (c *Cache) Health(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: health check failed: %w", err)
	}
	return nil
}
