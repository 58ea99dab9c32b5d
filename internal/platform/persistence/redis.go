package persistence

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/hospitality-spend-ledger/internal/config"
)

type Redis struct {
	logger *slog.Logger
	client *redis.Client
	locker *redislock.Client
}

// NewRedis connects to Redis. It returns nil, nil when no address is configured.
func NewRedis(ctx context.Context, logger *slog.Logger, cfg *config.RedisConfig) (*Redis, error) {
	if !cfg.Enabled() {
		logger.Info("Redis disabled, snapshot pages are served without cache")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	logger.Info("Connected to Redis", "address", cfg.Address, "db", cfg.DB)

	return &Redis{
		logger: logger,
		client: client,
		locker: redislock.New(client),
	}, nil
}

func (r *Redis) Client() *redis.Client {
	return r.client
}

func (r *Redis) Locker() *redislock.Client {
	return r.locker
}

func (r *Redis) Close() error {
	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}
	r.logger.Info("Closed Redis connection")
	return nil
}
