// Package snapshot models the materialised product spend snapshot.
package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// Source names what asked for a refresh
type Source string

const (
	SourceOperator   Source = "OPERATOR"
	SourceRetroBatch Source = "RETRO_BATCH"
	SourceBackfill   Source = "BACKFILL"
)

// Header is one materialised view: (organisation, location, account filter signature)
type Header struct {
	ID             uuid.UUID  `json:"id"`
	OrganisationID uuid.UUID  `json:"organisation_id"`
	LocationID     *uuid.UUID `json:"location_id,omitempty"`
	Signature      string     `json:"signature"`
	AccountCodes   []string   `json:"account_codes"`
	RowCount       int        `json:"row_count"`
	StatsAsOf      time.Time  `json:"stats_as_of"`
	RefreshedAt    time.Time  `json:"refreshed_at"`
}

func (h *Header) Scope() shared.Scope {
	return shared.Scope{OrganisationID: h.OrganisationID, LocationID: h.LocationID}
}

// Row is the precomputed 12-month picture of one product
type Row struct {
	HeaderID        uuid.UUID           `json:"-"`
	Rank            int                 `json:"rank"`
	ProductID       uuid.UUID           `json:"product_id"`
	SupplierID      *uuid.UUID          `json:"supplier_id,omitempty"`
	ProductKey      string              `json:"product_key"`
	DisplayName     string              `json:"display_name"`
	Spend12m        decimal.Decimal     `json:"spend_12m"`
	Quantity12m     decimal.Decimal     `json:"quantity_12m"`
	LineCount       int                 `json:"line_count"`
	LatestUnitPrice decimal.NullDecimal `json:"latest_unit_price"`
	LastPurchasedAt *time.Time          `json:"last_purchased_at,omitempty"`
}

// Page is a paginated read of one header
type Page struct {
	Signature string    `json:"signature"`
	StatsAsOf time.Time `json:"stats_as_of"`
	Rows      []*Row    `json:"rows"`
	Page      int       `json:"page"`
	PerPage   int       `json:"per_page"`
	Total     int       `json:"total"`
}

// RefreshRequest travels over Kafka from operators and the backfill collaborator
type RefreshRequest struct {
	RequestID     uuid.UUID    `json:"request_id"`
	Scope         shared.Scope `json:"scope"`
	AccountCodes  []string     `json:"account_codes,omitempty"`
	Source        Source       `json:"source"`
	RequestedBy   string       `json:"requested_by,omitempty"`
	CorrelationID string       `json:"correlation_id,omitempty"`
	RequestedAt   time.Time    `json:"requested_at"`
}

// Repository stores snapshot headers and rows
type Repository interface {
	// Replace swaps the header's rows wholesale. Callers run it inside a transaction.
	Replace(ctx context.Context, header *Header, rows []*Row) error

	// GetHeader returns nil, nil when the view was never built
	GetHeader(ctx context.Context, scope shared.Scope, signature string) (*Header, error)
	// ListHeaders includes location views when scope is organisation-wide
	ListHeaders(ctx context.Context, scope shared.Scope) ([]*Header, error)
	ListRows(ctx context.Context, headerID uuid.UUID, limit, offset int) ([]*Row, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrSnapshotNotFound indicates the requested view has not been refreshed yet
type ErrSnapshotNotFound struct {
	Signature string
}

func (e ErrSnapshotNotFound) Error() string {
	return "snapshot not found for signature: " + e.Signature
}

func (e ErrSnapshotNotFound) Is(target error) bool {
	t, ok := target.(ErrSnapshotNotFound)
	if !ok {
		return false
	}
	return t.Signature == "" || t.Signature == e.Signature
}
