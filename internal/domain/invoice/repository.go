package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// LineQuery selects lines of one origin. From is inclusive, To exclusive.
type LineQuery struct {
	Scope      shared.Scope
	Accounts   shared.AccountFilter
	From       time.Time
	To         time.Time
	SupplierID *uuid.UUID
	ProductKey string // applied in Go after projection when set
}

// Repository reads both invoice origins. Manual lines are limited to verified,
// non-deleted invoices and carry their included_in_analytics flag. External lines
// are limited to non-deleted AUTHORISED/PAID invoices. Both exclusion rules are
// applied by the caller.
type Repository interface {
	ManualLines(ctx context.Context, q LineQuery) ([]Line, error)
	ExternalLines(ctx context.Context, q LineQuery) ([]Line, error)

	// SupersededExternalIDs returns external ids, for synced invoices dated in [from, to), claimed by verified manual invoices
	SupersededExternalIDs(ctx context.Context, scope shared.Scope, from, to time.Time) ([]string, error)

	// AttachedExternalIDs returns external ids of synced invoices dated in [from, to) with any attached document
	AttachedExternalIDs(ctx context.Context, scope shared.Scope, from, to time.Time) ([]string, error)

	GetManualByDocumentID(ctx context.Context, scope shared.Scope, documentID uuid.UUID) (*ManualInvoice, error)
	MarkVerified(ctx context.Context, invoiceID uuid.UUID, at time.Time) error

	// SoftDelete and Restore mirror deleted_at onto the invoice's canonical lines
	SoftDelete(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID, at time.Time) error
	Restore(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID) error

	WithTx(tx pgx.Tx) Repository
}

// ErrInvoiceNotFound indicates missing manual invoice
type ErrInvoiceNotFound struct {
	InvoiceID uuid.UUID
}

func (e ErrInvoiceNotFound) Error() string {
	return "invoice not found: " + e.InvoiceID.String()
}

func (e ErrInvoiceNotFound) Is(target error) bool {
	t, ok := target.(ErrInvoiceNotFound)
	if !ok {
		return false
	}
	return t.InvoiceID == uuid.Nil || t.InvoiceID == e.InvoiceID
}
