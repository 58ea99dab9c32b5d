package invoice

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/hospitality-spend-ledger/internal/domain/product"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// Line is the normalised projection shared by manual and external line items.
// IncludedInAnalytics is always true for external lines.
type Line struct {
	Origin              shared.Origin
	LineID              uuid.UUID
	InvoiceID           uuid.UUID
	ExternalID          string // external origin only
	SupplierID          *uuid.UUID
	Description         string
	ItemCode            string
	AccountCode         string
	InvoiceDate         time.Time
	Quantity            decimal.NullDecimal
	UnitPrice           decimal.NullDecimal
	LineTotal           decimal.Decimal
	IncludedInAnalytics bool
}

// ProductKey is the canonical key for this line
func (l Line) ProductKey() string {
	return product.Key(l.ItemCode, l.Description, l.SupplierID)
}

// Identity scopes the product key by supplier
func (l Line) Identity() product.Identity {
	return product.Identity{SupplierID: l.SupplierID, Key: l.ProductKey()}
}

// PriceObservation reports whether the line carries a usable unit price.
// Null or non-positive quantities never count as observations.
func (l Line) PriceObservation() bool {
	return l.Quantity.Valid && l.Quantity.Decimal.IsPositive() && l.UnitPrice.Valid
}

// ManualLineItem is a line of a Document-backed invoice
type ManualLineItem struct {
	ID                  uuid.UUID           `json:"id"`
	InvoiceID           uuid.UUID           `json:"invoice_id"`
	Description         string              `json:"description"`
	ItemCode            string              `json:"item_code,omitempty"`
	AccountCode         string              `json:"account_code,omitempty"`
	Quantity            decimal.NullDecimal `json:"quantity"`
	UnitPrice           decimal.NullDecimal `json:"unit_price"`
	LineTotal           decimal.Decimal     `json:"line_total"`
	IncludedInAnalytics bool                `json:"included_in_analytics"`
}

// Project builds the normalised line for a manual item of inv
func (li ManualLineItem) Project(inv *ManualInvoice) Line {
	l := Line{
		Origin:              shared.OriginManual,
		LineID:              li.ID,
		InvoiceID:           inv.ID,
		SupplierID:          inv.SupplierID,
		Description:         li.Description,
		ItemCode:            li.ItemCode,
		AccountCode:         li.AccountCode,
		Quantity:            li.Quantity,
		UnitPrice:           li.UnitPrice,
		LineTotal:           li.LineTotal,
		IncludedInAnalytics: li.IncludedInAnalytics,
	}
	if inv.InvoiceDate != nil {
		l.InvoiceDate = *inv.InvoiceDate
	}
	return l
}

// ExternalLineItem is a line synced from the accounting feed
type ExternalLineItem struct {
	ID          uuid.UUID           `json:"id"`
	InvoiceID   uuid.UUID           `json:"invoice_id"`
	Description string              `json:"description"`
	ItemCode    string              `json:"item_code,omitempty"`
	AccountCode string              `json:"account_code,omitempty"`
	Quantity    decimal.NullDecimal `json:"quantity"`
	UnitPrice   decimal.NullDecimal `json:"unit_price"`
	LineTotal   decimal.Decimal     `json:"line_total"`
}

// Project builds the normalised line for an external item of inv
func (li ExternalLineItem) Project(inv *ExternalInvoice) Line {
	return Line{
		Origin:              shared.OriginExternal,
		LineID:              li.ID,
		InvoiceID:           inv.ID,
		ExternalID:          inv.ExternalID,
		SupplierID:          inv.SupplierID,
		Description:         li.Description,
		ItemCode:            li.ItemCode,
		AccountCode:         li.AccountCode,
		InvoiceDate:         inv.InvoiceDate,
		Quantity:            li.Quantity,
		UnitPrice:           li.UnitPrice,
		LineTotal:           li.LineTotal,
		IncludedInAnalytics: true,
	}
}
