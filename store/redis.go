package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const defaultHashKey = "watch:last-seen"

// RedisConfig configures a Redis-backed store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// HashKey is the Redis hash all entries live under.
	// Defaults to "watch:last-seen".
	HashKey string
}

// Redis is a Store backed by a single Redis hash, for deployments where
// multiple watcher instances share last-seen state.
type Redis struct {
	client  *redis.Client
	hashKey string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Addr, err)
	}

	hashKey := cfg.HashKey
	if hashKey == "" {
		hashKey = defaultHashKey
	}
	return &Redis{client: client, hashKey: hashKey}, nil
}

func (s *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.client.HGet(ctx, s.hashKey, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s from redis: %w", key, err)
	}
	return v, true, nil
}

func (s *Redis) Set(ctx context.Context, key, version string) error {
	if err := s.client.HSet(ctx, s.hashKey, key, version).Err(); err != nil {
		return fmt.Errorf("writing %s to redis: %w", key, err)
	}
	return nil
}

func (s *Redis) Close() error {
	return s.client.Close()
}
