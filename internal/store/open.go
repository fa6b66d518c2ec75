package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmcdole/marquee/internal/config"
	"github.com/mmcdole/marquee/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Open builds the storage backend selected by cfg
func Open(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (domain.Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case config.BackendBolt, "":
		// Response bodies stay on disk only
		s, err := NewBoltStorage(cfg.Path, cfg.Profile, WithUncachedPrefixes(domain.ResponseCacheKeyPrefix))
		if err != nil {
			return nil, err
		}
		logger.Debug("opened bolt storage", "path", cfg.Path, "profile", cfg.Profile)
		return s, nil

	case config.BackendMemory:
		logger.Debug("using memory-only storage")
		return NewBoltStorage("", "")

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Debug("connected to redis storage", "addr", cfg.Redis.Addr, "db", cfg.Redis.DB)
		return NewRedisStorage(client, cfg.Redis.Prefix), nil

	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBackend, cfg.Backend)
	}
}
