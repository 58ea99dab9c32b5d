package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/document"
	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/verification"
	"github.com/hospitality-spend-ledger/internal/retro"
)

// VerificationServiceImpl implements VerificationService
type VerificationServiceImpl struct {
	tx        retro.TxRunner
	documents document.Repository
	invoices  invoice.Repository
	features  retro.FeatureGate
	logger    *slog.Logger
	now       func() time.Time
}

func NewVerificationService(
	logger *slog.Logger,
	tx retro.TxRunner,
	documents document.Repository,
	invoices invoice.Repository,
	features retro.FeatureGate,
) VerificationService {
	return &VerificationServiceImpl{
		tx:        tx,
		documents: documents,
		invoices:  invoices,
		features:  features,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *VerificationServiceImpl) Evaluate(ctx context.Context, scope shared.Scope, documentID uuid.UUID) (*Evaluation, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	c, err := s.documents.GetCandidate(ctx, scope, documentID)
	if err != nil {
		return nil, err
	}

	enabled := s.features.AutoVerifyEnabled(c.Document.OrganisationID, c.Document.LocationID)
	decision := verification.Evaluate(verification.InputFromCandidate(c, enabled))

	s.logger.Debug("Document evaluated",
		"document_id", documentID.String(),
		"approved", decision.Approved,
		"reason", string(decision.Reason),
	)

	return &Evaluation{
		DocumentID:     documentID,
		FeatureEnabled: enabled,
		Decision:       decision,
	}, nil
}

// Verify applies the same guarded update the retro processor uses, with source HUMAN
func (s *VerificationServiceImpl) Verify(ctx context.Context, scope shared.Scope, documentID uuid.UUID, actor shared.Principal) (*document.Document, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	var verified *document.Document
	err := s.tx.ExecuteTx(ctx, func(tx pgx.Tx) error {
		documentsTx := s.documents.WithTx(tx)
		invoicesTx := s.invoices.WithTx(tx)

		doc, err := documentsTx.GetByID(ctx, scope, documentID)
		if err != nil {
			return err
		}

		expectedVersion := doc.Version
		now := s.now().UTC()
		if err := doc.Verify(document.SourceHuman, actor.ID, now); err != nil {
			return err
		}

		inv, err := invoicesTx.GetManualByDocumentID(ctx, scope, doc.ID)
		if err != nil && !errors.Is(err, invoice.ErrInvoiceNotFound{}) {
			return err
		}

		params := document.VerifyParams{
			DocumentID:      doc.ID,
			ExpectedVersion: expectedVersion,
			Source:          document.SourceHuman,
			VerifiedBy:      actor.ID,
			VerifiedAt:      now,
		}
		if inv != nil {
			params.InvoiceID = &inv.ID
		}
		if err := documentsTx.MarkVerified(ctx, params); err != nil {
			return err
		}

		if inv == nil {
			verified = doc
			return nil
		}
		if err := invoicesTx.MarkVerified(ctx, inv.ID, now); err != nil {
			return fmt.Errorf("failed to mark invoice %s verified: %w", inv.ID.String(), err)
		}

		verified = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document verified by operator",
		"document_id", documentID.String(),
		"verified_by", actor.ID,
	)
	return verified, nil
}

func (s *VerificationServiceImpl) DeleteInvoice(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	err := s.tx.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return s.invoices.WithTx(tx).SoftDelete(ctx, scope, invoiceID, s.now().UTC())
	})
	if err != nil {
		return err
	}

	s.logger.Info("Manual invoice deleted", "invoice_id", invoiceID.String())
	return nil
}

func (s *VerificationServiceImpl) RestoreInvoice(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID) error {
	if err := scope.Validate(); err != nil {
		return err
	}

	err := s.tx.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return s.invoices.WithTx(tx).Restore(ctx, scope, invoiceID)
	})
	if err != nil {
		return err
	}

	s.logger.Info("Manual invoice restored", "invoice_id", invoiceID.String())
	return nil
}
