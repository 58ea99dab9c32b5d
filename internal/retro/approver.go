package retro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/document"
	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/outbox"
	"github.com/hospitality-spend-ledger/internal/domain/verification"
)

// ApproverImpl writes approvals as guarded row-level updates. A lost race on the
// document or its invoice (edited, deleted, verified elsewhere) is recorded as a
// STATE_CHANGED skip; any other failure aborts the whole batch.
type ApproverImpl struct {
	documents document.Repository
	invoices  invoice.Repository
	batches   batch.Repository
	audits    batch.AuditRepository
	outbox    outbox.Repository
	logger    *slog.Logger
	now       func() time.Time
}

func NewApprover(
	documents document.Repository,
	invoices invoice.Repository,
	batches batch.Repository,
	audits batch.AuditRepository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) *ApproverImpl {
	return &ApproverImpl{
		documents: documents,
		invoices:  invoices,
		batches:   batches,
		audits:    audits,
		outbox:    outboxRepo,
		logger:    logger,
		now:       time.Now,
	}
}

// ApplyBatch verifies each approval, writes one audit event per success, then
// completes the batch and records the outbox message
func (a *ApproverImpl) ApplyBatch(ctx context.Context, tx pgx.Tx, b *batch.Batch, approvals []*document.Candidate, res *batch.Result) error {
	logger := a.logger.With("batch_id", b.ID.String())

	documentsTx := a.documents.WithTx(tx)
	invoicesTx := a.invoices.WithTx(tx)
	auditsTx := a.audits.WithTx(tx)

	for _, c := range approvals {
		now := a.now().UTC()
		params := document.VerifyParams{
			DocumentID:      c.Document.ID,
			InvoiceID:       &c.Invoice.ID,
			ExpectedVersion: c.Document.Version,
			Source:          document.SourceAutomatic,
			VerifiedBy:      b.Actor.ID,
			VerifiedAt:      now,
		}

		if err := documentsTx.MarkVerified(ctx, params); err != nil {
			if errors.Is(err, document.ErrConcurrentModification{DocumentID: c.Document.ID}) {
				logger.Info("Document changed before approval, skipping",
					"document_id", c.Document.ID.String())
				res.Skip(string(verification.ReasonStateChanged))
				continue
			}
			return fmt.Errorf("failed to verify document %s: %w", c.Document.ID.String(), err)
		}

		if err := invoicesTx.MarkVerified(ctx, c.Invoice.ID, now); err != nil {
			return fmt.Errorf("failed to mark invoice %s verified: %w", c.Invoice.ID.String(), err)
		}

		event := batch.NewAuditEvent(b, c.Document.ID, c.Invoice.ID, c.Document.LocationID, now)
		if err := auditsTx.Create(ctx, event); err != nil {
			return fmt.Errorf("failed to record audit event for document %s: %w", c.Document.ID.String(), err)
		}

		res.Approve(c.Invoice.ID)
	}

	b.Complete(res, a.now().UTC())
	if err := a.batches.WithTx(tx).Complete(ctx, b); err != nil {
		return fmt.Errorf("failed to complete batch: %w", err)
	}

	msg, err := outbox.NewBatchCompletedMessage(b)
	if err != nil {
		logger.Error("Failed to create outbox message (marshal payload)", "error", err)
		return fmt.Errorf("failed to create outbox message payload for batch %s: %w", b.ID.String(), err)
	}
	if err := a.outbox.WithTx(tx).Create(ctx, msg); err != nil {
		return fmt.Errorf("failed to create outbox message for batch %s: %w", b.ID.String(), err)
	}

	logger.Info("Batch approvals applied",
		"approved", res.ApprovedCount,
		"skipped", res.SkippedCount,
		"outbox_id", msg.ID)
	return nil
}
