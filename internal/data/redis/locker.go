package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bsm/redislock"

	"github.com/hospitality-spend-ledger/internal/spend"
)

// RefreshLocker hands out single-flight snapshot refresh locks. The lock is
// never awaited: a held lock means somebody else is already refreshing.
type RefreshLocker struct {
	client *redislock.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRefreshLocker(logger *slog.Logger, client *redislock.Client, ttl time.Duration) *RefreshLocker {
	return &RefreshLocker{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

var _ spend.Locker = (*RefreshLocker)(nil)

func (l *RefreshLocker) Obtain(ctx context.Context, key string) (func(ctx context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, l.ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, spend.ErrRefreshInProgress
		}
		return nil, fmt.Errorf("failed to obtain refresh lock: %w", err)
	}

	return func(ctx context.Context) error {
		if err := lock.Release(ctx); err != nil {
			if errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Warn("Refresh lock expired before release", "key", key, "ttl", l.ttl)
				return nil
			}
			return fmt.Errorf("failed to release refresh lock: %w", err)
		}
		return nil
	}, nil
}
