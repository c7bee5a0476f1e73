package storage

import (
	"context"
	"fmt"
	"time"

	"nodegraph_poc/pkg"
	"nodegraph_poc/src/datastore"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultSnapshotTTL is used when no TTL is configured
	DefaultSnapshotTTL = time.Hour
	snapshotPrefix     = "nodegraph:"
)

// RedisSnapshotter keeps the last good list of each resource in Redis
type RedisSnapshotter struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedisSnapshotter connects to redisURL and verifies the connection
func NewRedisSnapshotter(ctx context.Context, redisURL string, ttl time.Duration) (*RedisSnapshotter, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if ttl <= 0 {
		ttl = DefaultSnapshotTTL
	}

	return &RedisSnapshotter{
		client: client,
		ttl:    ttl,
		prefix: snapshotPrefix,
	}, nil
}

// key generates the Redis key for a resource
func (r *RedisSnapshotter) key(resource pkg.Resource) string {
	return r.prefix + string(resource)
}

// Save stores the list with the configured TTL
func (r *RedisSnapshotter) Save(ctx context.Context, resource pkg.Resource, records []pkg.Record) error {
	data, err := datastore.EncodeList(records)
	if err != nil {
		return err
	}

	err = r.client.Set(ctx, r.key(resource), data, r.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set %s snapshot: %w", resource, err)
	}

	return nil
}

// Load returns the stored list; found is false when no snapshot exists
func (r *RedisSnapshotter) Load(ctx context.Context, resource pkg.Resource) ([]pkg.Record, bool, error) {
	data, err := r.client.Get(ctx, r.key(resource)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to get %s snapshot: %w", resource, err)
	}

	records, err := datastore.DecodeList(data)
	if err != nil {
		return nil, false, fmt.Errorf("corrupt %s snapshot: %w", resource, err)
	}

	return records, true, nil
}

// GetTTL gets the remaining TTL of a snapshot
func (r *RedisSnapshotter) GetTTL(ctx context.Context, resource pkg.Resource) (time.Duration, error) {
	ttl, err := r.client.TTL(ctx, r.key(resource)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get TTL: %w", err)
	}
	return ttl, nil
}

// Ping tests the Redis connection
func (r *RedisSnapshotter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisSnapshotter) Close() error {
	return r.client.Close()
}
