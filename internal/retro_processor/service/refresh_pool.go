package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/spend"
)

// RefreshPool runs snapshot refreshes on a bounded ants pool. Requests for a view
// that is already being rebuilt by this process join the running job.
type RefreshPool struct {
	refresher SnapshotRefresher
	pool      *ants.Pool
	logger    *slog.Logger
	// guards inFlight
	mu       sync.Mutex
	inFlight map[string][]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewRefreshPool(
	refresher SnapshotRefresher,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*RefreshPool, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &RefreshPool{
		refresher: refresher,
		pool:      pool,
		logger:    logger,
		inFlight:  make(map[string][]chan error),
	}, nil
}

func viewKey(scope shared.Scope, accounts shared.AccountFilter) string {
	return scope.Key() + ":" + accounts.Signature()
}

// Schedule submits the refresh and waits for it. A refresh another replica holds
// the lock for counts as done.
func (p *RefreshPool) Schedule(ctx context.Context, req *snapshot.RefreshRequest) error {
	accounts, err := shared.NewAccountFilter(req.AccountCodes)
	if err != nil {
		return err
	}
	if err := req.Scope.Validate(); err != nil {
		return err
	}

	logger := p.logger.With("request_id", req.RequestID.String(), "source", string(req.Source))
	if req.CorrelationID != "" {
		logger = logger.With("correlation_id", req.CorrelationID)
	}

	key := viewKey(req.Scope, accounts)
	resultChan := make(chan error, 1)

	p.mu.Lock()
	waiters, running := p.inFlight[key]
	p.inFlight[key] = append(waiters, resultChan)
	p.mu.Unlock()

	if running {
		logger.Info("Joining in-flight snapshot refresh", "view", key)
		return p.wait(ctx, resultChan)
	}

	logger.Info("Submitting snapshot refresh to worker pool", "view", key)

	err = p.pool.Submit(func() {
		_, err := p.refresher.Refresh(ctx, req.Scope, accounts)
		if errors.Is(err, spend.ErrRefreshInProgress) {
			logger.Info("Snapshot refresh already running elsewhere", "view", key)
			err = nil
		}
		p.finish(key, err)
	})
	if err != nil {
		logger.Error("Failed to submit snapshot refresh to worker pool", "view", key, "error", err)
		p.finish(key, fmt.Errorf("failed to submit snapshot refresh: %w", err))
	}

	return p.wait(ctx, resultChan)
}

// finish hands the outcome to every waiter of the view
func (p *RefreshPool) finish(key string, err error) {
	p.mu.Lock()
	waiters := p.inFlight[key]
	delete(p.inFlight, key)
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- err
		close(ch)
	}
}

func (p *RefreshPool) wait(ctx context.Context, resultChan chan error) error {
	select {
	case err := <-resultChan:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown gracefully shuts down the worker pool.
func (p *RefreshPool) Shutdown() {
	p.logger.Info("Shutting down refresh worker pool", "running_workers", p.pool.Running())
	p.pool.Release()
}

// Running returns the number of running workers in the pool.
func (p *RefreshPool) Running() int {
	return p.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (p *RefreshPool) Capacity() int {
	return p.pool.Cap()
}
