package product

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// Identity is the (supplier, key) pair that makes two lines the same product within a scope
type Identity struct {
	SupplierID *uuid.UUID
	Key        string
}

// String is used as a map key; nil supplier and uuid.Nil collapse together
func (i Identity) String() string {
	if i.SupplierID == nil {
		return uuid.Nil.String() + "|" + i.Key
	}
	return i.SupplierID.String() + "|" + i.Key
}

// Product is a canonical product, created the first time its identity is seen
type Product struct {
	ID             uuid.UUID  `json:"id"`
	OrganisationID uuid.UUID  `json:"organisation_id"`
	LocationID     *uuid.UUID `json:"location_id,omitempty"`
	SupplierID     *uuid.UUID `json:"supplier_id,omitempty"`
	Key            string     `json:"key"`
	DisplayName    string     `json:"display_name"`
	CreatedAt      time.Time  `json:"created_at"`
}

func (p *Product) Identity() Identity {
	return Identity{SupplierID: p.SupplierID, Key: p.Key}
}

// Seed carries what EnsureAll needs to create a missing product
type Seed struct {
	Identity    Identity
	DisplayName string
}

// Repository manages canonical products
type Repository interface {
	// EnsureAll creates missing products and returns every requested one keyed by Identity.String()
	EnsureAll(ctx context.Context, scope shared.Scope, seeds []Seed) (map[string]*Product, error)
	GetByID(ctx context.Context, scope shared.Scope, id uuid.UUID) (*Product, error)
}

// ErrProductNotFound indicates missing canonical product
type ErrProductNotFound struct {
	ProductID uuid.UUID
}

func (e ErrProductNotFound) Error() string {
	return "product not found: " + e.ProductID.String()
}

func (e ErrProductNotFound) Is(target error) bool {
	t, ok := target.(ErrProductNotFound)
	if !ok {
		return false
	}
	return t.ProductID == uuid.Nil || t.ProductID == e.ProductID
}
