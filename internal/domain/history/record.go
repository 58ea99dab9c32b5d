// Package history is the read model of completed retro batches.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// Record is a completed batch as listed to operators
type Record struct {
	BatchID            uuid.UUID        `json:"batch_id" bson:"batch_id"`
	OrganisationID     uuid.UUID        `json:"organisation_id" bson:"organisation_id"`
	LocationID         *uuid.UUID       `json:"location_id,omitempty" bson:"location_id,omitempty"`
	IdempotencyKey     string           `json:"idempotency_key" bson:"idempotency_key"`
	Actor              shared.Principal `json:"actor" bson:"actor"`
	ScannedCount       int              `json:"scanned_count" bson:"scanned_count"`
	ApprovedCount      int              `json:"approved_count" bson:"approved_count"`
	SkippedCount       int              `json:"skipped_count" bson:"skipped_count"`
	ApprovedInvoiceIDs []uuid.UUID      `json:"approved_invoice_ids" bson:"approved_invoice_ids"`
	ReasonHistogram    map[string]int   `json:"reason_histogram" bson:"reason_histogram"`
	StartedAt          time.Time        `json:"started_at" bson:"started_at"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	RecordedAt         time.Time        `json:"recorded_at" bson:"recorded_at"`
}

// FromBatch projects a completed batch
func FromBatch(b *batch.Batch, now time.Time) *Record {
	return &Record{
		BatchID:            b.ID,
		OrganisationID:     b.OrganisationID,
		LocationID:         b.LocationID,
		IdempotencyKey:     b.IdempotencyKey,
		Actor:              b.Actor,
		ScannedCount:       b.ScannedCount,
		ApprovedCount:      b.ApprovedCount,
		SkippedCount:       b.SkippedCount,
		ApprovedInvoiceIDs: b.ApprovedInvoiceIDs,
		ReasonHistogram:    b.ReasonHistogram,
		StartedAt:          b.StartedAt,
		CompletedAt:        b.CompletedAt,
		RecordedAt:         now,
	}
}

// Repository manages batch history with pagination support
type Repository interface {
	Create(ctx context.Context, record *Record) error
	GetByBatchID(ctx context.Context, batchID uuid.UUID) (*Record, error)
	ListByScope(ctx context.Context, scope shared.Scope, limit, offset int) ([]*Record, error)
	CountByScope(ctx context.Context, scope shared.Scope) (int64, error)
}

// ErrRecordNotFound indicates missing history record
type ErrRecordNotFound struct {
	BatchID uuid.UUID
}

func (e ErrRecordNotFound) Error() string {
	return "batch history record not found: " + e.BatchID.String()
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	if t.BatchID == uuid.Nil {
		return true
	}
	return e.BatchID == t.BatchID
}

// ErrDuplicateRecord indicates the batch was already projected
type ErrDuplicateRecord struct {
	BatchID uuid.UUID
}

func (e ErrDuplicateRecord) Error() string {
	return "duplicate batch history record: " + e.BatchID.String()
}

// Is implements the errors.Is interface for ErrDuplicateRecord
func (e ErrDuplicateRecord) Is(target error) bool {
	t, ok := target.(ErrDuplicateRecord)
	if !ok {
		return false
	}
	if t.BatchID == uuid.Nil {
		return true
	}
	return e.BatchID == t.BatchID
}
