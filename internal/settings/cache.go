package settings

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewCache constructs a cache helper. A nil client disables caching.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl, prefix: "settings:"}
}

func (c *Cache) key(restaurantID string) string {
	return c.prefix + restaurantID
}

// Get loads the cached snapshot. It reports whether the key existed.
func (c *Cache) Get(ctx context.Context, restaurantID string) (Snapshot, bool, error) {
	if c == nil || c.client == nil || restaurantID == "" {
		return Snapshot{}, false, nil
	}
	data, err := c.client.Get(ctx, c.key(restaurantID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, false, nil
		}
		return Snapshot{}, false, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// Set stores the snapshot with the configured TTL.
func (c *Cache) Set(ctx context.Context, snap Snapshot) error {
	if c == nil || c.client == nil || snap.RestaurantID == "" || c.ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(snap.RestaurantID), data, c.ttl).Err()
}

// Delete removes a cached snapshot.
func (c *Cache) Delete(ctx context.Context, restaurantID string) error {
	if c == nil || c.client == nil || restaurantID == "" {
		return nil
	}
	return c.client.Del(ctx, c.key(restaurantID)).Err()
}
