package repository

import (
	"context"
	"fmt"
	"time"

	"washhub/internal/config"

	"github.com/redis/go-redis/v9"
)

type RedisEventStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisEventStore(client *redis.Client, ttl time.Duration) *RedisEventStore {
	return &RedisEventStore{
		client: client,
		ttl:    ttl,
	}
}

// MarkEventProcessed records the event id with SETNX semantics. A second
// call with the same id reports seen=true until the key expires.
func (r *RedisEventStore) MarkEventProcessed(ctx context.Context, eventID string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("webhook_event:%s", eventID)
	created, err := r.client.SetNX(ctx, key, 1, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event in redis: %w", err)
	}
	return !created, nil
}

// UnmarkEvent deletes a recorded id, making the event processable again.
func (r *RedisEventStore) UnmarkEvent(ctx context.Context, eventID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	key := fmt.Sprintf("webhook_event:%s", eventID)
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to unmark event in redis: %w", err)
	}
	return nil
}

// Ping checks the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
