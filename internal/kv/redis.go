package kv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kimhsiao/tripplanner/backend/internal/logging"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisStorage stores entries as plain Redis strings.
type RedisStorage struct {
	rdb *redis.Client
}

// NewRedisStorage connects to Redis and verifies the connection.
func NewRedisStorage(cfg RedisConfig) (*RedisStorage, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	logging.Info("Connected to Redis", map[string]interface{}{"addr": addr})

	return &RedisStorage{rdb: rdb}, nil
}

// NewRedisStorageFromClient wraps an existing client.
func NewRedisStorageFromClient(rdb *redis.Client) *RedisStorage {
	return &RedisStorage{rdb: rdb}
}

// Client returns the underlying Redis client for components sharing the connection.
func (s *RedisStorage) Client() *redis.Client {
	return s.rdb
}

// Close closes the Redis connection.
func (s *RedisStorage) Close() error {
	return s.rdb.Close()
}

func (s *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (s *RedisStorage) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *RedisStorage) Has(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Keys walks the keyspace with SCAN rather than KEYS.
func (s *RedisStorage) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// Ping checks that Redis is reachable.
func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
