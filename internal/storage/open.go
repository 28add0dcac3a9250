package storage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/D371L/asmodeus/internal/config"
)

const defaultTimeout = 3 * time.Second

// Open builds the configured backend
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory, "":
		logger.Info("using in-memory storage")
		return NewMemoryStore(), nil

	case config.BackendFile:
		logger.Info("using file storage", "dir", cfg.Dir)
		return NewFileStore(cfg.Dir)

	case config.BackendRedis:
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		rdb, err := InitRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return NewRedisStore(rdb), nil

	case config.BackendPostgres:
		db, err := InitPostgreSQL(cfg.PostgresDSN, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("connected to postgres")
		return NewPostgresStore(db)

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
