package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/platform/persistence"
)

// InvoiceRepository reads manual and external invoices and owns the manual invoice lifecycle flags
type InvoiceRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewInvoiceRepository(logger *slog.Logger, db *persistence.PostgresDB) invoice.Repository {
	return &InvoiceRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *InvoiceRepository) WithTx(tx pgx.Tx) invoice.Repository {
	return &InvoiceRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// ManualLines loads lines of verified, live manual invoices. Deselected lines are
// returned with IncludedInAnalytics=false so the engine can drop them.
func (r *InvoiceRepository) ManualLines(ctx context.Context, q invoice.LineQuery) ([]invoice.Line, error) {
	query := `
		SELECT li.id, mi.id, mi.supplier_id, li.description, COALESCE(li.item_code, ''), COALESCE(li.account_code, ''),
			mi.invoice_date, li.quantity, li.unit_price, li.line_total, li.included_in_analytics
		FROM manual_invoice_lines li
		JOIN manual_invoices mi ON mi.id = li.invoice_id
		JOIN documents d ON d.id = mi.document_id
		WHERE mi.organisation_id = $1 AND ($2::uuid IS NULL OR mi.location_id = $2)
			AND mi.verified = TRUE AND mi.deleted_at IS NULL
			AND d.review_status = 'VERIFIED' AND d.deleted_at IS NULL
			AND mi.invoice_date >= $3 AND mi.invoice_date < $4
			AND ($5::text[] IS NULL OR btrim(li.account_code) = ANY($5))
			AND ($6::uuid IS NULL OR mi.supplier_id = $6)
		ORDER BY mi.invoice_date, li.id
	`

	rows, err := r.querier.Query(ctx, query,
		q.Scope.OrganisationID,
		q.Scope.LocationID,
		q.From,
		q.To,
		accountCodesArg(q.Accounts),
		q.SupplierID,
	)
	if err != nil {
		r.logger.Error("Failed to load manual lines", append(scopeAttrs(q.Scope), "error", err)...)
		return nil, fmt.Errorf("failed to load manual lines: %w", err)
	}
	defer rows.Close()

	lines := []invoice.Line{}
	for rows.Next() {
		l := invoice.Line{Origin: shared.OriginManual}
		err := rows.Scan(
			&l.LineID,
			&l.InvoiceID,
			&l.SupplierID,
			&l.Description,
			&l.ItemCode,
			&l.AccountCode,
			&l.InvoiceDate,
			&l.Quantity,
			&l.UnitPrice,
			&l.LineTotal,
			&l.IncludedInAnalytics,
		)
		if err != nil {
			r.logger.Error("Failed to scan manual line", "error", err)
			return nil, fmt.Errorf("failed to scan manual line: %w", err)
		}
		if q.ProductKey != "" && l.ProductKey() != q.ProductKey {
			continue
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over manual lines", "error", err)
		return nil, fmt.Errorf("error iterating over manual lines: %w", err)
	}

	return lines, nil
}

// ExternalLines loads lines of live AUTHORISED or PAID synced invoices
func (r *InvoiceRepository) ExternalLines(ctx context.Context, q invoice.LineQuery) ([]invoice.Line, error) {
	query := `
		SELECT li.id, ei.id, ei.external_id, ei.supplier_id, li.description, COALESCE(li.item_code, ''), COALESCE(li.account_code, ''),
			ei.invoice_date, li.quantity, li.unit_price, li.line_total
		FROM external_invoice_lines li
		JOIN external_invoices ei ON ei.id = li.invoice_id
		WHERE ei.organisation_id = $1 AND ($2::uuid IS NULL OR ei.location_id = $2)
			AND ei.deleted_at IS NULL AND ei.status IN ('AUTHORISED', 'PAID')
			AND ei.invoice_date >= $3 AND ei.invoice_date < $4
			AND ($5::text[] IS NULL OR btrim(li.account_code) = ANY($5))
			AND ($6::uuid IS NULL OR ei.supplier_id = $6)
		ORDER BY ei.invoice_date, li.id
	`

	rows, err := r.querier.Query(ctx, query,
		q.Scope.OrganisationID,
		q.Scope.LocationID,
		q.From,
		q.To,
		accountCodesArg(q.Accounts),
		q.SupplierID,
	)
	if err != nil {
		r.logger.Error("Failed to load external lines", append(scopeAttrs(q.Scope), "error", err)...)
		return nil, fmt.Errorf("failed to load external lines: %w", err)
	}
	defer rows.Close()

	lines := []invoice.Line{}
	for rows.Next() {
		l := invoice.Line{Origin: shared.OriginExternal, IncludedInAnalytics: true}
		err := rows.Scan(
			&l.LineID,
			&l.InvoiceID,
			&l.ExternalID,
			&l.SupplierID,
			&l.Description,
			&l.ItemCode,
			&l.AccountCode,
			&l.InvoiceDate,
			&l.Quantity,
			&l.UnitPrice,
			&l.LineTotal,
		)
		if err != nil {
			r.logger.Error("Failed to scan external line", "error", err)
			return nil, fmt.Errorf("failed to scan external line: %w", err)
		}
		if q.ProductKey != "" && l.ProductKey() != q.ProductKey {
			continue
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over external lines", "error", err)
		return nil, fmt.Errorf("error iterating over external lines: %w", err)
	}

	return lines, nil
}

func (r *InvoiceRepository) SupersededExternalIDs(ctx context.Context, scope shared.Scope, from, to time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT mi.supersedes_external_id
		FROM manual_invoices mi
		JOIN documents d ON d.id = mi.document_id
		JOIN external_invoices ei ON ei.organisation_id = mi.organisation_id
			AND ei.external_id = mi.supersedes_external_id
		WHERE mi.organisation_id = $1 AND ($2::uuid IS NULL OR mi.location_id = $2)
			AND mi.verified = TRUE AND mi.deleted_at IS NULL
			AND d.review_status = 'VERIFIED' AND d.deleted_at IS NULL
			AND ei.invoice_date >= $3 AND ei.invoice_date < $4
	`

	return r.externalIDs(ctx, "superseded", query, scope, from, to)
}

func (r *InvoiceRepository) AttachedExternalIDs(ctx context.Context, scope shared.Scope, from, to time.Time) ([]string, error) {
	query := `
		SELECT DISTINCT ei.external_id
		FROM external_invoices ei
		JOIN external_invoice_attachments a ON a.external_invoice_id = ei.id
		WHERE ei.organisation_id = $1 AND ($2::uuid IS NULL OR ei.location_id = $2)
			AND ei.invoice_date >= $3 AND ei.invoice_date < $4
	`

	return r.externalIDs(ctx, "attached", query, scope, from, to)
}

func (r *InvoiceRepository) externalIDs(ctx context.Context, kind, query string, scope shared.Scope, from, to time.Time) ([]string, error) {
	rows, err := r.querier.Query(ctx, query, scope.OrganisationID, scope.LocationID, from, to)
	if err != nil {
		r.logger.Error("Failed to load "+kind+" external ids", append(scopeAttrs(scope), "error", err)...)
		return nil, fmt.Errorf("failed to load %s external ids: %w", kind, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan %s external id: %w", kind, err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over %s external ids: %w", kind, err)
	}

	return ids, nil
}

func (r *InvoiceRepository) GetManualByDocumentID(ctx context.Context, scope shared.Scope, documentID uuid.UUID) (*invoice.ManualInvoice, error) {
	query := `
		SELECT id, document_id, organisation_id, location_id, supplier_id, COALESCE(invoice_number, ''), invoice_date,
			total::text, supersedes_external_id, verified, deleted_at, created_at, updated_at
		FROM manual_invoices
		WHERE document_id = $1 AND organisation_id = $2 AND ($3::uuid IS NULL OR location_id = $3)
	`

	var (
		inv   invoice.ManualInvoice
		total *string
	)
	err := r.querier.QueryRow(ctx, query, documentID, scope.OrganisationID, scope.LocationID).Scan(
		&inv.ID,
		&inv.DocumentID,
		&inv.OrganisationID,
		&inv.LocationID,
		&inv.SupplierID,
		&inv.InvoiceNumber,
		&inv.InvoiceDate,
		&total,
		&inv.SupersedesExternalID,
		&inv.Verified,
		&inv.DeletedAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, invoice.ErrInvoiceNotFound{}
		}
		r.logger.Error("Failed to get manual invoice", "document_id", documentID.String(), "error", err)
		return nil, fmt.Errorf("failed to get manual invoice: %w", err)
	}

	inv.Total, inv.TotalNonFinite, err = invoice.ParseTotal(total)
	if err != nil {
		return nil, fmt.Errorf("invalid total on invoice %s: %w", inv.ID.String(), err)
	}

	return &inv, nil
}

func (r *InvoiceRepository) MarkVerified(ctx context.Context, invoiceID uuid.UUID, at time.Time) error {
	query := `
		UPDATE manual_invoices
		SET verified = TRUE, updated_at = $1
		WHERE id = $2 AND deleted_at IS NULL
	`

	result, err := r.querier.Exec(ctx, query, at, invoiceID)
	if err != nil {
		r.logger.Error("Failed to mark invoice verified", "invoice_id", invoiceID.String(), "error", err)
		return fmt.Errorf("failed to mark invoice verified: %w", err)
	}

	if result.RowsAffected() == 0 {
		return invoice.ErrInvoiceNotFound{InvoiceID: invoiceID}
	}

	return nil
}

// SoftDelete marks the invoice and its live canonical lines deleted at the same instant.
// Callers run it inside a transaction.
func (r *InvoiceRepository) SoftDelete(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID, at time.Time) error {
	query := `
		UPDATE manual_invoices
		SET deleted_at = $1, updated_at = $1
		WHERE id = $2 AND organisation_id = $3 AND ($4::uuid IS NULL OR location_id = $4) AND deleted_at IS NULL
	`

	result, err := r.querier.Exec(ctx, query, at, invoiceID, scope.OrganisationID, scope.LocationID)
	if err != nil {
		r.logger.Error("Failed to soft delete invoice", "invoice_id", invoiceID.String(), "error", err)
		return fmt.Errorf("failed to soft delete invoice: %w", err)
	}
	if result.RowsAffected() == 0 {
		return invoice.ErrInvoiceNotFound{InvoiceID: invoiceID}
	}

	linesQuery := `
		UPDATE canonical_lines
		SET deleted_at = $1
		WHERE invoice_id = $2 AND deleted_at IS NULL
	`

	if _, err := r.querier.Exec(ctx, linesQuery, at, invoiceID); err != nil {
		r.logger.Error("Failed to soft delete canonical lines", "invoice_id", invoiceID.String(), "error", err)
		return fmt.Errorf("failed to soft delete canonical lines: %w", err)
	}

	return nil
}

// Restore only revives canonical lines deleted together with the invoice.
// Callers run it inside a transaction.
func (r *InvoiceRepository) Restore(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID) error {
	lockQuery := `
		SELECT deleted_at
		FROM manual_invoices
		WHERE id = $1 AND organisation_id = $2 AND ($3::uuid IS NULL OR location_id = $3)
		FOR UPDATE
	`

	var deletedAt *time.Time
	err := r.querier.QueryRow(ctx, lockQuery, invoiceID, scope.OrganisationID, scope.LocationID).Scan(&deletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoice.ErrInvoiceNotFound{InvoiceID: invoiceID}
		}
		r.logger.Error("Failed to lock invoice for restore", "invoice_id", invoiceID.String(), "error", err)
		return fmt.Errorf("failed to lock invoice for restore: %w", err)
	}
	if deletedAt == nil {
		return nil
	}

	restoreQuery := `
		UPDATE manual_invoices
		SET deleted_at = NULL, updated_at = NOW()
		WHERE id = $1
	`

	if _, err := r.querier.Exec(ctx, restoreQuery, invoiceID); err != nil {
		r.logger.Error("Failed to restore invoice", "invoice_id", invoiceID.String(), "error", err)
		return fmt.Errorf("failed to restore invoice: %w", err)
	}

	linesQuery := `
		UPDATE canonical_lines
		SET deleted_at = NULL
		WHERE invoice_id = $1 AND deleted_at = $2
	`

	if _, err := r.querier.Exec(ctx, linesQuery, invoiceID, *deletedAt); err != nil {
		r.logger.Error("Failed to restore canonical lines", "invoice_id", invoiceID.String(), "error", err)
		return fmt.Errorf("failed to restore canonical lines: %w", err)
	}

	return nil
}
