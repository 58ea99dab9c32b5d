package supplier

import (
	"context"

	"github.com/google/uuid"
)

// Repository provides read access to suppliers
type Repository interface {
	GetByID(ctx context.Context, organisationID, id uuid.UUID) (*Supplier, error)
	ListByIDs(ctx context.Context, organisationID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*Supplier, error)
}

// ErrSupplierNotFound indicates missing supplier
type ErrSupplierNotFound struct {
	SupplierID uuid.UUID
}

func (e ErrSupplierNotFound) Error() string {
	return "supplier not found: " + e.SupplierID.String()
}
