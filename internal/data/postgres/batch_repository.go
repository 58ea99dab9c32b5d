package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/platform/persistence"
)

const batchColumns = `id, organisation_id, location_id, idempotency_key, fingerprint, status, max_approvals,
		scanned_count, approved_count, skipped_count, approved_invoice_ids, reason_histogram,
		actor_type, actor_id, COALESCE(failure_reason, ''), version, started_at, completed_at, created_at, updated_at`

// BatchRepository implements batch.Repository for PostgreSQL
type BatchRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewBatchRepository(logger *slog.Logger, db *persistence.PostgresDB) batch.Repository {
	return &BatchRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *BatchRepository) WithTx(tx pgx.Tx) batch.Repository {
	return &BatchRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByIdempotencyKey matches the scope exactly: an organisation-wide key and a
// location key with the same text are different records.
func (r *BatchRepository) GetByIdempotencyKey(ctx context.Context, scope shared.Scope, key string) (*batch.Batch, error) {
	query := `
		SELECT ` + batchColumns + `
		FROM verification_batches
		WHERE organisation_id = $1 AND location_id IS NOT DISTINCT FROM $2::uuid AND idempotency_key = $3
	`

	b, err := scanBatch(r.querier.QueryRow(ctx, query, scope.OrganisationID, scope.LocationID, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get batch by idempotency key", "idempotency_key", key, "error", err)
		return nil, fmt.Errorf("failed to get batch by idempotency key: %w", err)
	}

	return b, nil
}

func (r *BatchRepository) Create(ctx context.Context, b *batch.Batch) error {
	query := `
		INSERT INTO verification_batches (id, organisation_id, location_id, idempotency_key, fingerprint, status,
			max_approvals, approved_invoice_ids, reason_histogram, actor_type, actor_id, version,
			started_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.querier.Exec(ctx, query,
		b.ID,
		b.OrganisationID,
		b.LocationID,
		b.IdempotencyKey,
		b.Fingerprint,
		b.Status,
		b.MaxApprovals,
		b.ApprovedInvoiceIDs,
		b.ReasonHistogram,
		b.Actor.Type,
		b.Actor.ID,
		b.Version,
		b.StartedAt,
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return batch.ErrBatchExists{IdempotencyKey: b.IdempotencyKey}
		}
		r.logger.Error("Failed to create batch",
			"batch_id", b.ID.String(),
			"idempotency_key", b.IdempotencyKey,
			"error", err,
		)
		return fmt.Errorf("failed to create batch: %w", err)
	}

	return nil
}

// Restart resets the counters of a failed or stale record under its version guard
func (r *BatchRepository) Restart(ctx context.Context, b *batch.Batch) error {
	query := `
		UPDATE verification_batches
		SET status = 'IN_PROGRESS', actor_type = $1, actor_id = $2, failure_reason = NULL,
			scanned_count = 0, approved_count = 0, skipped_count = 0,
			approved_invoice_ids = '{}', reason_histogram = '{}', completed_at = NULL,
			started_at = $3, updated_at = $4, version = version + 1
		WHERE id = $5 AND version = $6 AND status IN ('FAILED', 'IN_PROGRESS')
	`

	result, err := r.querier.Exec(ctx, query, b.Actor.Type, b.Actor.ID, b.StartedAt, b.UpdatedAt, b.ID, b.Version)
	if err != nil {
		r.logger.Error("Failed to restart batch", "batch_id", b.ID.String(), "error", err)
		return fmt.Errorf("failed to restart batch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return batch.ErrBatchInProgress{IdempotencyKey: b.IdempotencyKey}
	}

	b.Version++
	return nil
}

// Complete fails with ErrBatchInProgress when another run reclaimed the record meanwhile
func (r *BatchRepository) Complete(ctx context.Context, b *batch.Batch) error {
	query := `
		UPDATE verification_batches
		SET status = $1, scanned_count = $2, approved_count = $3, skipped_count = $4,
			approved_invoice_ids = $5, reason_histogram = $6, completed_at = $7, updated_at = $8,
			version = version + 1
		WHERE id = $9 AND version = $10 AND status = 'IN_PROGRESS'
	`

	result, err := r.querier.Exec(ctx, query,
		b.Status,
		b.ScannedCount,
		b.ApprovedCount,
		b.SkippedCount,
		b.ApprovedInvoiceIDs,
		b.ReasonHistogram,
		b.CompletedAt,
		b.UpdatedAt,
		b.ID,
		b.Version,
	)
	if err != nil {
		r.logger.Error("Failed to complete batch", "batch_id", b.ID.String(), "error", err)
		return fmt.Errorf("failed to complete batch: %w", err)
	}

	if result.RowsAffected() == 0 {
		return batch.ErrBatchInProgress{IdempotencyKey: b.IdempotencyKey}
	}

	b.Version++
	return nil
}

func (r *BatchRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE verification_batches
		SET status = 'FAILED', failure_reason = $1, updated_at = NOW(), version = version + 1
		WHERE id = $2 AND status = 'IN_PROGRESS'
	`

	result, err := r.querier.Exec(ctx, query, reason, id)
	if err != nil {
		r.logger.Error("Failed to mark batch failed", "batch_id", id.String(), "error", err)
		return fmt.Errorf("failed to mark batch failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		r.logger.Warn("Batch no longer in progress, failure not recorded", "batch_id", id.String())
	}

	return nil
}

func scanBatch(row pgx.Row) (*batch.Batch, error) {
	var b batch.Batch
	err := row.Scan(
		&b.ID,
		&b.OrganisationID,
		&b.LocationID,
		&b.IdempotencyKey,
		&b.Fingerprint,
		&b.Status,
		&b.MaxApprovals,
		&b.ScannedCount,
		&b.ApprovedCount,
		&b.SkippedCount,
		&b.ApprovedInvoiceIDs,
		&b.ReasonHistogram,
		&b.Actor.Type,
		&b.Actor.ID,
		&b.FailureReason,
		&b.Version,
		&b.StartedAt,
		&b.CompletedAt,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}
