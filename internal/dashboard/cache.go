package dashboard

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/efxlab/simulator/internal/handler"
)

// RedisCache is a read-through cache of the latest snapshot record, so
// dashboard polling doesn't need to hold the server's record-buffer lock
// or recompute anything from the in-memory buffer.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisCache wraps an existing Redis client.
func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

const latestSnapshotKey = "efxsim:latest_snapshot"

// SetLatestSnapshot writes rec as the cached latest snapshot.
func (c *RedisCache) SetLatestSnapshot(ctx context.Context, rec handler.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, latestSnapshotKey, data, c.ttl).Err()
}

// LatestSnapshot reads the cached latest snapshot, if present.
func (c *RedisCache) LatestSnapshot(ctx context.Context) (handler.Record, bool) {
	data, err := c.rdb.Get(ctx, latestSnapshotKey).Bytes()
	if err != nil {
		return handler.Record{}, false
	}
	var rec handler.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return handler.Record{}, false
	}
	return rec, true
}

// Close releases the underlying Redis client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
