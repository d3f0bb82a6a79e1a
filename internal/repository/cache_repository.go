package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/workeasy-api/pkg/querycache"
)

// CacheRepository stores query cache entries in Redis so every API replica shares them.
type CacheRepository struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewCacheRepository constructs a Redis backed query cache backend. ttl acts as the gc time.
func NewCacheRepository(client redis.UniversalClient, prefix string, ttl time.Duration, logger *zap.Logger) *CacheRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheRepository{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// Get retrieves and decodes an entry.
func (r *CacheRepository) Get(ctx context.Context, key string) (querycache.Entry, bool, error) {
	if r.client == nil {
		return querycache.Entry{}, false, nil
	}

	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return querycache.Entry{}, false, nil
		}
		return querycache.Entry{}, false, fmt.Errorf("redis get %s: %w", key, err)
	}

	var entry querycache.Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return querycache.Entry{}, false, fmt.Errorf("unmarshal cache value for %s: %w", key, err)
	}
	return entry, true, nil
}

// Set stores an entry with the configured TTL.
func (r *CacheRepository) Set(ctx context.Context, key string, entry querycache.Entry) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal cache value for %s: %w", key, err)
	}

	if err := r.client.Set(ctx, r.prefix+key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// Delete removes an entry.
func (r *CacheRepository) Delete(ctx context.Context, key string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Keys scans for keys matching pattern and returns them without the prefix.
func (r *CacheRepository) Keys(ctx context.Context, pattern string) ([]string, error) {
	if r.client == nil {
		return nil, nil
	}

	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(r.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan pattern %s: %w", pattern, err)
	}
	return keys, nil
}

// DeleteByPattern removes every entry matching pattern.
func (r *CacheRepository) DeleteByPattern(ctx context.Context, pattern string) error {
	keys, err := r.Keys(ctx, pattern)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := r.Delete(ctx, key); err != nil {
			return err
		}
	}
	r.logger.Debug("cache entries purged", zap.String("pattern", pattern), zap.Int("count", len(keys)))
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *CacheRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
