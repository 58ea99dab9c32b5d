package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/document"
	"github.com/hospitality-spend-ledger/internal/domain/history"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/domain/verification"
	"github.com/hospitality-spend-ledger/internal/retro"
	"github.com/hospitality-spend-ledger/internal/spend"
)

// Evaluation is the gate decision for one document at request time
type Evaluation struct {
	DocumentID     uuid.UUID             `json:"document_id"`
	FeatureEnabled bool                  `json:"feature_enabled"`
	Decision       verification.Decision `json:"decision"`
}

// VerificationService covers single-document review operations
type VerificationService interface {
	// Evaluate runs the gate without changing anything
	Evaluate(ctx context.Context, scope shared.Scope, documentID uuid.UUID) (*Evaluation, error)

	// Verify records a human verification.
	// Returns ErrInvalidTransition unless the document is AWAITING_REVIEW,
	// ErrConcurrentModification if it changed underneath.
	Verify(ctx context.Context, scope shared.Scope, documentID uuid.UUID, actor shared.Principal) (*document.Document, error)

	// DeleteInvoice and RestoreInvoice toggle a manual invoice and its quality lines together
	DeleteInvoice(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID) error
	RestoreInvoice(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID) error
}

// RetroService is implemented by retro.Processor
type RetroService interface {
	Run(ctx context.Context, req retro.RunRequest) (*batch.Result, error)
	Preview(ctx context.Context, scope shared.Scope) (*batch.Preview, error)
}

// HistoryService lists completed retro batches
type HistoryService interface {
	// ListBatches returns records, the total count of the scope, and any error
	ListBatches(ctx context.Context, scope shared.Scope, page, perPage int) ([]*history.Record, int64, error)
}

// SpendService is implemented by spend.Service
type SpendService interface {
	Summary(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter) (*spend.Summary, error)
	Breakdown(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter) (*spend.Breakdown, error)
	RecentPriceChanges(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter, limit int) (*spend.PriceChanges, error)
	ProductDetail(ctx context.Context, scope shared.Scope, productID uuid.UUID) (*spend.ProductDetail, error)
}

// SnapshotReader is implemented by spend.SnapshotService
type SnapshotReader interface {
	Page(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter, page, perPage int) (*snapshot.Page, error)
}

// RefreshService queues snapshot refreshes for the retro processor
type RefreshService interface {
	RequestRefresh(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter, actor shared.Principal) (*snapshot.RefreshRequest, error)
}

var (
	_ RetroService   = (*retro.Processor)(nil)
	_ SpendService   = (*spend.Service)(nil)
	_ SnapshotReader = (*spend.SnapshotService)(nil)
)
