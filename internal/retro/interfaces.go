// Package retro runs bounded, idempotent batches that automatically verify documents
// which have become eligible since they were ingested.
package retro

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/document"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// FeatureGate reports whether automatic verification is enabled for a location
type FeatureGate interface {
	AutoVerifyEnabled(organisationID uuid.UUID, locationID *uuid.UUID) bool
}

// TxRunner runs fn inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Approver applies every approval of a batch and completes it inside tx
type Approver interface {
	ApplyBatch(ctx context.Context, tx pgx.Tx, b *batch.Batch, approvals []*document.Candidate, res *batch.Result) error
}

// Service is what callers of the retro processor depend on
type Service interface {
	Run(ctx context.Context, req RunRequest) (*batch.Result, error)
	Preview(ctx context.Context, scope shared.Scope) (*batch.Preview, error)
}

// Config bounds each run
type Config struct {
	MaxApprovalsPerRun int
	MaxScanned         int
	PreviewSampleSize  int
	StaleBatchAfter    time.Duration
}

// DefaultConfig mirrors the configuration defaults
func DefaultConfig() Config {
	return Config{
		MaxApprovalsPerRun: 200,
		MaxScanned:         2000,
		PreviewSampleSize:  100,
		StaleBatchAfter:    15 * time.Minute,
	}
}

// RunRequest asks for one batch run
type RunRequest struct {
	Scope          shared.Scope
	IdempotencyKey string
	DryRun         bool
	Actor          shared.Principal
	CorrelationID  string
}
