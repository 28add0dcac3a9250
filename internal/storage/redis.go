package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/go-redis/redis/v8"
)

// RedisStore keeps records as plain redis strings
type RedisStore struct {
	rdb *redis.Client
}

// InitRedis connects and pings the server
func InitRedis(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		logger.Error("failed to connect to redis", "addr", addr, "error", err)
		rdb.Close()
		return nil, err
	}

	logger.Info("connected to redis", "addr", addr, "db", db)
	return rdb, nil
}

// NewRedisStore wraps a connected client
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *RedisStore) Put(ctx context.Context, key string, value []byte) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
