package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nitesh/news_digest/pkg/models"
)

// Key identifies one assembled feed view. Store and profile versions are
// part of the key, so any write produces a new key and old entries simply
// age out. The versions are only meaningful inside one process, so Epoch
// must be unique per process lifetime; it keeps a restarted instance or a
// replica sharing the same Redis from reading another state's feed.
type Key struct {
	UserID         string
	Epoch          string
	StoreVersion   uint64
	ProfileVersion uint64
	Filter         models.Filter
}

func (k Key) String() string {
	return fmt.Sprintf("digest:feed:%s:%s:%d:%d:%s", k.UserID, k.Epoch, k.StoreVersion, k.ProfileVersion, k.Filter)
}

// FeedCache stores assembled feeds in Redis.
type FeedCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewFeedCache(rdb *redis.Client, ttl time.Duration) *FeedCache {
	return &FeedCache{rdb: rdb, ttl: ttl}
}

// Get returns the cached items for k. hit is false on a miss.
func (c *FeedCache) Get(ctx context.Context, k Key) ([]models.FeedItem, bool, error) {
	raw, err := c.rdb.Get(ctx, k.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", k, err)
	}
	var items []models.FeedItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, fmt.Errorf("cache decode %s: %w", k, err)
	}
	return items, true, nil
}

func (c *FeedCache) Set(ctx context.Context, k Key, items []models.FeedItem) error {
	if items == nil {
		items = []models.FeedItem{}
	}
	b, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", k, err)
	}
	if err := c.rdb.Set(ctx, k.String(), b, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache set %s: %w", k, err)
	}
	return nil
}

// Nop never hits. It stands in when Redis is disabled.
type Nop struct{}

func (Nop) Get(context.Context, Key) ([]models.FeedItem, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, Key, []models.FeedItem) error         { return nil }
