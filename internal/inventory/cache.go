package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lowStockCacheKey = "sims:inventory:lowstock"

// LowStockCache keeps the latest low-stock snapshot in Redis so the read
// endpoint and the alert job do not rescan the table on every hit.
type LowStockCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewLowStockCache constructs the cache.
func NewLowStockCache(client *redis.Client, ttl time.Duration) *LowStockCache {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LowStockCache{client: client, ttl: ttl}
}

// Set stores the snapshot.
func (c *LowStockCache) Set(ctx context.Context, records []Record) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("inventory: marshal low stock snapshot: %w", err)
	}
	return c.client.Set(ctx, lowStockCacheKey, data, c.ttl).Err()
}

// Get returns the cached snapshot; ok is false on a miss.
func (c *LowStockCache) Get(ctx context.Context) ([]Record, bool, error) {
	if c == nil || c.client == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, lowStockCacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("inventory: read low stock snapshot: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, false, fmt.Errorf("inventory: decode low stock snapshot: %w", err)
	}
	return records, true, nil
}
