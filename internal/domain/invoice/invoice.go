// Package invoice models both invoice origins and the normalised line projection the
// aggregation engine consumes.
package invoice

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExternalStatus is the accounting system's status for a synced invoice
type ExternalStatus string

const (
	ExternalStatusAuthorised ExternalStatus = "AUTHORISED"
	ExternalStatusPaid       ExternalStatus = "PAID"
	ExternalStatusVoided     ExternalStatus = "VOIDED"
)

// CountsTowardsSpend reports whether a synced invoice in this status is real spend
func (s ExternalStatus) CountsTowardsSpend() bool {
	return s == ExternalStatusAuthorised || s == ExternalStatusPaid
}

// ManualInvoice belongs to a Document from the upload/OCR pipeline
type ManualInvoice struct {
	ID                   uuid.UUID           `json:"id"`
	DocumentID           uuid.UUID           `json:"document_id"`
	OrganisationID       uuid.UUID           `json:"organisation_id"`
	LocationID           *uuid.UUID          `json:"location_id,omitempty"`
	SupplierID           *uuid.UUID          `json:"supplier_id,omitempty"`
	InvoiceNumber        string              `json:"invoice_number,omitempty"`
	InvoiceDate          *time.Time          `json:"invoice_date,omitempty"`
	Total                decimal.NullDecimal `json:"total"`
	TotalNonFinite       bool                `json:"-"` // NUMERIC NaN or Infinity
	SupersedesExternalID *string             `json:"supersedes_external_id,omitempty"`
	Verified             bool                `json:"verified"`
	DeletedAt            *time.Time          `json:"deleted_at,omitempty"`
	CreatedAt            time.Time           `json:"created_at"`
	UpdatedAt            time.Time           `json:"updated_at"`
}

// HasUsableTotal reports whether the total is present and finite
func (i *ManualInvoice) HasUsableTotal() bool {
	return i.Total.Valid && !i.TotalNonFinite
}

// ExternalInvoice is synced from the accounting feed, keyed by ExternalID
type ExternalInvoice struct {
	ID             uuid.UUID       `json:"id"`
	ExternalID     string          `json:"external_id"`
	OrganisationID uuid.UUID       `json:"organisation_id"`
	LocationID     *uuid.UUID      `json:"location_id,omitempty"`
	SupplierID     *uuid.UUID      `json:"supplier_id,omitempty"`
	InvoiceDate    time.Time       `json:"invoice_date"`
	Total          decimal.Decimal `json:"total"`
	Status         ExternalStatus  `json:"status"`
	DeletedAt      *time.Time      `json:"deleted_at,omitempty"`
	SyncedAt       time.Time       `json:"synced_at"`
}

// Quality is the flag the canonical representation attaches to each line
type Quality string

const (
	QualityOK   Quality = "OK"
	QualityWarn Quality = "WARN"
)

// QualitySummary is what the verification gate needs from the canonical lines of an invoice
type QualitySummary struct {
	Lines        int `json:"lines"`
	WarningLines int `json:"warning_lines"`
}

// ParseTotal converts the textual form of a NUMERIC column into a decimal.
// NaN and infinities are reported through nonFinite and never become a value.
func ParseTotal(raw *string) (total decimal.NullDecimal, nonFinite bool, err error) {
	if raw == nil {
		return decimal.NullDecimal{}, false, nil
	}
	text := strings.TrimSpace(*raw)
	if text == "" {
		return decimal.NullDecimal{}, false, nil
	}
	switch strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(text, "+"), "-")) {
	case "nan", "infinity", "inf":
		return decimal.NullDecimal{}, true, nil
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.NullDecimal{}, false, err
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, false, nil
}

// FromFloat is used where totals arrive as JSON numbers
func FromFloat(f *float64) (total decimal.NullDecimal, nonFinite bool) {
	if f == nil {
		return decimal.NullDecimal{}, false
	}
	if math.IsNaN(*f) || math.IsInf(*f, 0) {
		return decimal.NullDecimal{}, true
	}
	return decimal.NullDecimal{Decimal: decimal.NewFromFloat(*f), Valid: true}, false
}
