package service

import (
	"context"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/retro"
	"github.com/hospitality-spend-ledger/internal/spend"
)

// BatchRunner is implemented by retro.Processor
type BatchRunner interface {
	Run(ctx context.Context, req retro.RunRequest) (*batch.Result, error)
}

// SnapshotRefresher is implemented by spend.SnapshotService
type SnapshotRefresher interface {
	Refresh(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter) (*snapshot.Header, error)
	RefreshScope(ctx context.Context, scope shared.Scope) error
}

// RefreshScheduler runs snapshot refreshes off the consumer goroutine
type RefreshScheduler interface {
	Schedule(ctx context.Context, req *snapshot.RefreshRequest) error
}

var (
	_ BatchRunner       = (*retro.Processor)(nil)
	_ SnapshotRefresher = (*spend.SnapshotService)(nil)
)
