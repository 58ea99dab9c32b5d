package postgres

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
	"github.com/hospitality-spend-ledger/internal/domain/supplier"
	"github.com/hospitality-spend-ledger/internal/platform/persistence"
)

const documentColumns = `d.id, d.organisation_id, d.location_id, d.processing_status, d.review_status, d.verification_source,
		d.confidence_score, d.validation_errors, d.extracted_at, d.last_edited_at, d.verified_at,
		COALESCE(d.verified_by, ''), d.version, d.deleted_at, d.created_at, d.updated_at`

// candidateSelect joins a document with its live manual invoice, the invoice's
// supplier and the quality counts of its canonical lines
const candidateSelect = `
		SELECT ` + documentColumns + `,
			mi.id, mi.supplier_id, mi.invoice_number, mi.invoice_date, mi.total::text, mi.supersedes_external_id, mi.verified,
			s.id, s.name, s.status,
			COUNT(cl.id), COUNT(cl.id) FILTER (WHERE cl.quality = 'WARN')
		FROM documents d
		LEFT JOIN manual_invoices mi ON mi.document_id = d.id AND mi.deleted_at IS NULL
		LEFT JOIN suppliers s ON s.id = mi.supplier_id AND s.organisation_id = d.organisation_id
		LEFT JOIN canonical_lines cl ON cl.invoice_id = mi.id AND cl.deleted_at IS NULL
		WHERE d.organisation_id = $1 AND ($2::uuid IS NULL OR d.location_id = $2)`

// DocumentRepository implements document.Repository for PostgreSQL
type DocumentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewDocumentRepository(logger *slog.Logger, db *persistence.PostgresDB) document.Repository {
	return &DocumentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *DocumentRepository) WithTx(tx pgx.Tx) document.Repository {
	return &DocumentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByID returns ErrDocumentNotFound for missing documents and documents outside scope
func (r *DocumentRepository) GetByID(ctx context.Context, scope shared.Scope, id uuid.UUID) (*document.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents d
		WHERE d.id = $1 AND d.organisation_id = $2 AND ($3::uuid IS NULL OR d.location_id = $3)
	`

	var doc document.Document
	err := r.querier.QueryRow(ctx, query, id, scope.OrganisationID, scope.LocationID).Scan(documentDest(&doc)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrDocumentNotFound{DocumentID: id}
		}
		r.logger.Error("Failed to get document", "document_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &doc, nil
}

// SelectCandidates returns documents awaiting review whose manual invoice is still
// unverified. Invoices claiming an external id another verified invoice already
// supersedes are left out.
func (r *DocumentRepository) SelectCandidates(ctx context.Context, scope shared.Scope, limit int) ([]*document.Candidate, error) {
	query := candidateSelect + `
			AND d.review_status = 'AWAITING_REVIEW'
			AND d.deleted_at IS NULL
			AND (mi.id IS NULL OR mi.verified = FALSE)
			AND NOT EXISTS (
				SELECT 1 FROM manual_invoices claimed
				WHERE claimed.organisation_id = d.organisation_id
					AND claimed.id <> mi.id
					AND claimed.verified = TRUE
					AND claimed.deleted_at IS NULL
					AND claimed.supersedes_external_id = mi.supersedes_external_id
			)
		GROUP BY d.id, mi.id, s.id
		ORDER BY mi.invoice_date DESC NULLS LAST, mi.id DESC NULLS LAST, d.id DESC
		LIMIT $3
	`

	rows, err := r.querier.Query(ctx, query, scope.OrganisationID, scope.LocationID, limit)
	if err != nil {
		r.logger.Error("Failed to select review candidates", append(scopeAttrs(scope), "error", err)...)
		return nil, fmt.Errorf("failed to select review candidates: %w", err)
	}
	defer rows.Close()

	candidates := make([]*document.Candidate, 0, limit)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			r.logger.Error("Failed to scan review candidate", "error", err)
			return nil, fmt.Errorf("failed to scan review candidate: %w", err)
		}
		candidates = append(candidates, c)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over review candidates", "error", err)
		return nil, fmt.Errorf("error iterating over review candidates: %w", err)
	}

	return candidates, nil
}

// CountCandidates never counts past limit
func (r *DocumentRepository) CountCandidates(ctx context.Context, scope shared.Scope, limit int) (int, error) {
	query := `
		SELECT COUNT(*) FROM (
			SELECT 1
			FROM documents d
			LEFT JOIN manual_invoices mi ON mi.document_id = d.id AND mi.deleted_at IS NULL
			WHERE d.organisation_id = $1 AND ($2::uuid IS NULL OR d.location_id = $2)
				AND d.review_status = 'AWAITING_REVIEW'
				AND d.deleted_at IS NULL
				AND (mi.id IS NULL OR mi.verified = FALSE)
				AND NOT EXISTS (
					SELECT 1 FROM manual_invoices claimed
					WHERE claimed.organisation_id = d.organisation_id
						AND claimed.id <> mi.id
						AND claimed.verified = TRUE
						AND claimed.deleted_at IS NULL
						AND claimed.supersedes_external_id = mi.supersedes_external_id
				)
			LIMIT $3
		) capped
	`

	var count int
	if err := r.querier.QueryRow(ctx, query, scope.OrganisationID, scope.LocationID, limit).Scan(&count); err != nil {
		r.logger.Error("Failed to count review candidates", append(scopeAttrs(scope), "error", err)...)
		return 0, fmt.Errorf("failed to count review candidates: %w", err)
	}

	return count, nil
}

func (r *DocumentRepository) GetCandidate(ctx context.Context, scope shared.Scope, id uuid.UUID) (*document.Candidate, error) {
	query := candidateSelect + `
			AND d.id = $3
		GROUP BY d.id, mi.id, s.id
	`

	rows, err := r.querier.Query(ctx, query, scope.OrganisationID, scope.LocationID, id)
	if err != nil {
		r.logger.Error("Failed to get review candidate", "document_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get review candidate: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			r.logger.Error("Failed to get review candidate", "document_id", id.String(), "error", err)
			return nil, fmt.Errorf("failed to get review candidate: %w", err)
		}
		return nil, document.ErrDocumentNotFound{DocumentID: id}
	}

	c, err := scanCandidate(rows)
	if err != nil {
		r.logger.Error("Failed to scan review candidate", "document_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to scan review candidate: %w", err)
	}

	return c, nil
}

// MarkVerified is the guarded AWAITING_REVIEW -> VERIFIED transition. The invoice
// guard takes a row lock so a concurrent soft delete waits for this transaction.
func (r *DocumentRepository) MarkVerified(ctx context.Context, params document.VerifyParams) error {
	query := `
		UPDATE documents
		SET review_status = 'VERIFIED', verification_source = $1, verified_by = $2, verified_at = $3,
			version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5 AND review_status = 'AWAITING_REVIEW' AND deleted_at IS NULL
			AND ($6::uuid IS NULL OR EXISTS (
				SELECT 1 FROM manual_invoices mi
				WHERE mi.id = $6 AND mi.document_id = documents.id
					AND mi.verified = FALSE AND mi.deleted_at IS NULL
				FOR UPDATE
			))
	`

	result, err := r.querier.Exec(ctx, query,
		params.Source,
		params.VerifiedBy,
		params.VerifiedAt,
		params.DocumentID,
		params.ExpectedVersion,
		params.InvoiceID,
	)
	if err != nil {
		r.logger.Error("Failed to mark document verified",
			"document_id", params.DocumentID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to mark document verified: %w", err)
	}

	if result.RowsAffected() == 0 {
		return document.ErrConcurrentModification{DocumentID: params.DocumentID}
	}

	return nil
}

func documentDest(d *document.Document) []any {
	return []any{
		&d.ID,
		&d.OrganisationID,
		&d.LocationID,
		&d.ProcessingStatus,
		&d.ReviewStatus,
		&d.VerificationSource,
		&d.ConfidenceScore,
		&d.ValidationErrors,
		&d.ExtractedAt,
		&d.LastEditedAt,
		&d.VerifiedAt,
		&d.VerifiedBy,
		&d.Version,
		&d.DeletedAt,
		&d.CreatedAt,
		&d.UpdatedAt,
	}
}

func scanCandidate(row pgx.Row) (*document.Candidate, error) {
	var (
		doc             document.Document
		invoiceID       *uuid.UUID
		supplierRef     *uuid.UUID
		invoiceNumber   *string
		invoiceDate     *time.Time
		total           *string
		supersedes      *string
		invoiceVerified *bool
		supplierID      *uuid.UUID
		supplierName    *string
		supplierStatus  *string
		lines           int
		warningLines    int
	)

	dest := append(documentDest(&doc),
		&invoiceID, &supplierRef, &invoiceNumber, &invoiceDate, &total, &supersedes, &invoiceVerified,
		&supplierID, &supplierName, &supplierStatus,
		&lines, &warningLines,
	)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	c := &document.Candidate{Document: &doc}
	if invoiceID == nil {
		return c, nil
	}

	amount, nonFinite, err := invoice.ParseTotal(total)
	if err != nil {
		return nil, fmt.Errorf("invalid total on invoice %s: %w", invoiceID.String(), err)
	}
	c.Invoice = &invoice.ManualInvoice{
		ID:                   *invoiceID,
		DocumentID:           doc.ID,
		OrganisationID:       doc.OrganisationID,
		LocationID:           doc.LocationID,
		SupplierID:           supplierRef,
		InvoiceNumber:        deref(invoiceNumber),
		InvoiceDate:          invoiceDate,
		Total:                amount,
		TotalNonFinite:       nonFinite,
		SupersedesExternalID: supersedes,
		Verified:             invoiceVerified != nil && *invoiceVerified,
	}
	c.Quality = &invoice.QualitySummary{Lines: lines, WarningLines: warningLines}

	if supplierID != nil {
		c.Supplier = &supplier.Supplier{
			ID:             *supplierID,
			OrganisationID: doc.OrganisationID,
			Name:           deref(supplierName),
			Status:         supplier.Status(deref(supplierStatus)),
		}
	}

	return c, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
