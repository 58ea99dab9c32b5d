package batch

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// Repository manages batch idempotency records
type Repository interface {
	// GetByIdempotencyKey returns nil, nil when no batch uses the key in scope
	GetByIdempotencyKey(ctx context.Context, scope shared.Scope, key string) (*Batch, error)

	// Create returns ErrBatchExists when the key is already taken in scope
	Create(ctx context.Context, b *Batch) error

	// Restart takes over a failed or stale record. It is guarded by b.Version and
	// returns ErrBatchInProgress when another run got there first.
	Restart(ctx context.Context, b *Batch) error

	Complete(ctx context.Context, b *Batch) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	WithTx(tx pgx.Tx) Repository
}

// AuditRepository stores audit events
type AuditRepository interface {
	Create(ctx context.Context, event *AuditEvent) error
	ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*AuditEvent, error)
	WithTx(tx pgx.Tx) AuditRepository
}

// ErrBatchExists indicates the idempotency key is already claimed
type ErrBatchExists struct {
	IdempotencyKey string
}

func (e ErrBatchExists) Error() string {
	return "batch already exists for idempotency key: " + e.IdempotencyKey
}

func (e ErrBatchExists) Is(target error) bool {
	t, ok := target.(ErrBatchExists)
	if !ok {
		return false
	}
	return t.IdempotencyKey == "" || t.IdempotencyKey == e.IdempotencyKey
}

// ErrFingerprintMismatch indicates an idempotency key reused for a different request
type ErrFingerprintMismatch struct {
	IdempotencyKey string
}

func (e ErrFingerprintMismatch) Error() string {
	return "idempotency key reused with different parameters: " + e.IdempotencyKey
}

func (e ErrFingerprintMismatch) Is(target error) bool {
	t, ok := target.(ErrFingerprintMismatch)
	if !ok {
		return false
	}
	return t.IdempotencyKey == "" || t.IdempotencyKey == e.IdempotencyKey
}

// ErrBatchInProgress indicates another run currently owns the key
type ErrBatchInProgress struct {
	IdempotencyKey string
}

func (e ErrBatchInProgress) Error() string {
	return "batch still in progress for idempotency key: " + e.IdempotencyKey
}

func (e ErrBatchInProgress) Is(target error) bool {
	t, ok := target.(ErrBatchInProgress)
	if !ok {
		return false
	}
	return t.IdempotencyKey == "" || t.IdempotencyKey == e.IdempotencyKey
}
