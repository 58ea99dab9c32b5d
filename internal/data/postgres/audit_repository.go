package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/platform/persistence"
)

// AuditRepository appends verification audit events. Rows are never updated.
type AuditRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewAuditRepository(logger *slog.Logger, db *persistence.PostgresDB) batch.AuditRepository {
	return &AuditRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *AuditRepository) WithTx(tx pgx.Tx) batch.AuditRepository {
	return &AuditRepository{
		querier: tx,
		logger:  r.logger,
	}
}

func (r *AuditRepository) Create(ctx context.Context, event *batch.AuditEvent) error {
	query := `
		INSERT INTO verification_audit_events (id, batch_id, document_id, invoice_id, organisation_id, location_id,
			action, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.querier.Exec(ctx, query,
		event.ID,
		event.BatchID,
		event.DocumentID,
		event.InvoiceID,
		event.OrganisationID,
		event.LocationID,
		event.Action,
		event.Actor.Type,
		event.Actor.ID,
		event.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create audit event",
			"batch_id", event.BatchID.String(),
			"document_id", event.DocumentID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to create audit event: %w", err)
	}

	return nil
}

func (r *AuditRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*batch.AuditEvent, error) {
	query := `
		SELECT id, batch_id, document_id, invoice_id, organisation_id, location_id, action, actor_type, actor_id, created_at
		FROM verification_audit_events
		WHERE batch_id = $1
		ORDER BY created_at, id
	`

	rows, err := r.querier.Query(ctx, query, batchID)
	if err != nil {
		r.logger.Error("Failed to list audit events", "batch_id", batchID.String(), "error", err)
		return nil, fmt.Errorf("failed to list audit events: %w", err)
	}
	defer rows.Close()

	events := []*batch.AuditEvent{}
	for rows.Next() {
		var e batch.AuditEvent
		err := rows.Scan(
			&e.ID,
			&e.BatchID,
			&e.DocumentID,
			&e.InvoiceID,
			&e.OrganisationID,
			&e.LocationID,
			&e.Action,
			&e.Actor.Type,
			&e.Actor.ID,
			&e.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan audit event", "error", err)
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		events = append(events, &e)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over audit events", "error", err)
		return nil, fmt.Errorf("error iterating over audit events: %w", err)
	}

	return events, nil
}
