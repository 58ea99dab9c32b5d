package document

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// VerifyParams describes a guarded transition from AWAITING_REVIEW to VERIFIED.
// When InvoiceID is set the manual invoice must still be live and unverified,
// and its row stays locked until the transaction ends.
type VerifyParams struct {
	DocumentID      uuid.UUID
	InvoiceID       *uuid.UUID
	ExpectedVersion int
	Source          VerificationSource
	VerifiedBy      string
	VerifiedAt      time.Time
}

// Repository defines document persistence operations
type Repository interface {
	GetByID(ctx context.Context, scope shared.Scope, id uuid.UUID) (*Document, error)

	// SelectCandidates returns review candidates ordered by invoice date desc, invoice id desc
	SelectCandidates(ctx context.Context, scope shared.Scope, limit int) ([]*Candidate, error)

	// CountCandidates counts candidates, stopping at limit
	CountCandidates(ctx context.Context, scope shared.Scope, limit int) (int, error)

	// GetCandidate loads one document with its invoice, supplier and quality summary
	// whatever its review status
	GetCandidate(ctx context.Context, scope shared.Scope, id uuid.UUID) (*Candidate, error)

	// MarkVerified only succeeds while the document is still AWAITING_REVIEW at the expected version
	// and its invoice, if given, is neither deleted nor verified. Returns ErrConcurrentModification otherwise.
	MarkVerified(ctx context.Context, params VerifyParams) error

	WithTx(tx pgx.Tx) Repository
}

// ErrDocumentNotFound indicates a missing or out-of-scope document
type ErrDocumentNotFound struct {
	DocumentID uuid.UUID
}

func (e ErrDocumentNotFound) Error() string {
	return "document not found: " + e.DocumentID.String()
}

// Is matches any ErrDocumentNotFound when the target id is empty
func (e ErrDocumentNotFound) Is(target error) bool {
	t, ok := target.(ErrDocumentNotFound)
	if !ok {
		return false
	}
	return t.DocumentID == uuid.Nil || t.DocumentID == e.DocumentID
}

// ErrConcurrentModification indicates a guarded update lost its race
type ErrConcurrentModification struct {
	DocumentID uuid.UUID
}

func (e ErrConcurrentModification) Error() string {
	return "concurrent modification detected for document: " + e.DocumentID.String()
}

func (e ErrConcurrentModification) Is(target error) bool {
	t, ok := target.(ErrConcurrentModification)
	if !ok {
		return false
	}
	return t.DocumentID == uuid.Nil || t.DocumentID == e.DocumentID
}

// ErrInvalidTransition indicates a review state change the state machine forbids
type ErrInvalidTransition struct {
	DocumentID uuid.UUID
	From       ReviewStatus
	To         ReviewStatus
}

func (e ErrInvalidTransition) Error() string {
	return "invalid review transition for document " + e.DocumentID.String() + ": " + string(e.From) + " -> " + string(e.To)
}

// ErrInvalidVerificationSource indicates an unusable verification source
type ErrInvalidVerificationSource struct {
	Source VerificationSource
}

func (e ErrInvalidVerificationSource) Error() string {
	return "invalid verification source: " + string(e.Source)
}
