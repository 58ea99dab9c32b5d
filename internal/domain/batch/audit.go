package batch

import (
	"time"

	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// ActionAutoVerified is the only action the retro processor records
const ActionAutoVerified = "AUTO_VERIFIED"

// AuditEvent is an immutable record of one automatic verification
type AuditEvent struct {
	ID             uuid.UUID        `json:"id"`
	BatchID        uuid.UUID        `json:"batch_id"`
	DocumentID     uuid.UUID        `json:"document_id"`
	InvoiceID      uuid.UUID        `json:"invoice_id"`
	OrganisationID uuid.UUID        `json:"organisation_id"`
	LocationID     *uuid.UUID       `json:"location_id,omitempty"`
	Action         string           `json:"action"`
	Actor          shared.Principal `json:"actor"`
	CreatedAt      time.Time        `json:"created_at"`
}

func NewAuditEvent(b *Batch, documentID, invoiceID uuid.UUID, locationID *uuid.UUID, now time.Time) *AuditEvent {
	return &AuditEvent{
		ID:             uuid.New(),
		BatchID:        b.ID,
		DocumentID:     documentID,
		InvoiceID:      invoiceID,
		OrganisationID: b.OrganisationID,
		LocationID:     locationID,
		Action:         ActionAutoVerified,
		Actor:          b.Actor,
		CreatedAt:      now,
	}
}
