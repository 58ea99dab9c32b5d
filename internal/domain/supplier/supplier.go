package supplier

import (
	"time"

	"github.com/google/uuid"
)

// Status is owned by the supplier lifecycle collaborator; this service only reads it
type Status string

const (
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusActive        Status = "ACTIVE"
	StatusArchived      Status = "ARCHIVED"
)

// Supplier represents a vendor invoices are raised by
type Supplier struct {
	ID             uuid.UUID `json:"id"`
	OrganisationID uuid.UUID `json:"organisation_id"`
	Name           string    `json:"name"`
	Status         Status    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsActive reports whether the supplier may contribute to automatic verification and listings
func (s *Supplier) IsActive() bool {
	return s != nil && s.Status == StatusActive
}

// StatusChanged is published by the supplier lifecycle collaborator on every transition
type StatusChanged struct {
	EventID        uuid.UUID `json:"event_id"`
	OrganisationID uuid.UUID `json:"organisation_id"`
	SupplierID     uuid.UUID `json:"supplier_id"`
	PreviousStatus Status    `json:"previous_status"`
	Status         Status    `json:"status"`
	CorrelationID  string    `json:"correlation_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Activated reports whether the event moved the supplier into ACTIVE
func (e *StatusChanged) Activated() bool {
	return e.Status == StatusActive && e.PreviousStatus != StatusActive
}
