package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "steamtop:snapshot:"

// RedisStore keeps snapshots in Redis. Keys expire on their own, so Cleanup is a no-op.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to addr; snapshots expire after ttl
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// Save stores a snapshot under its key
func (r *RedisStore) Save(ctx context.Context, snapshot Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	if err := r.client.Set(ctx, redisKeyPrefix+snapshot.Key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	slog.Debug("Saved snapshot to Redis", "key", snapshot.Key, "games", len(snapshot.Games))
	return nil
}

// Latest returns the snapshot for key if it is younger than maxAge
func (r *RedisStore) Latest(ctx context.Context, key string, maxAge time.Duration) (*Snapshot, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(val, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if time.Since(snapshot.FetchedAt) > maxAge {
		return nil, nil
	}
	return &snapshot, nil
}

// Cleanup relies on key expiry
func (r *RedisStore) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	return 0, nil
}

// Close closes the client
func (r *RedisStore) Close() error {
	return r.client.Close()
}
