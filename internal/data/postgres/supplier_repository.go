package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/supplier"
	"github.com/hospitality-spend-ledger/internal/platform/persistence"
)

// SupplierRepository reads suppliers owned by the supplier lifecycle service
type SupplierRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewSupplierRepository(logger *slog.Logger, db *persistence.PostgresDB) supplier.Repository {
	return &SupplierRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *SupplierRepository) GetByID(ctx context.Context, organisationID, id uuid.UUID) (*supplier.Supplier, error) {
	query := `
		SELECT id, organisation_id, name, status, created_at, updated_at
		FROM suppliers
		WHERE organisation_id = $1 AND id = $2
	`

	var s supplier.Supplier
	err := r.querier.QueryRow(ctx, query, organisationID, id).Scan(
		&s.ID,
		&s.OrganisationID,
		&s.Name,
		&s.Status,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, supplier.ErrSupplierNotFound{SupplierID: id}
		}
		r.logger.Error("Failed to get supplier", "supplier_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get supplier: %w", err)
	}

	return &s, nil
}

// ListByIDs silently drops ids that do not belong to the organisation
func (r *SupplierRepository) ListByIDs(ctx context.Context, organisationID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*supplier.Supplier, error) {
	out := make(map[uuid.UUID]*supplier.Supplier, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	query := `
		SELECT id, organisation_id, name, status, created_at, updated_at
		FROM suppliers
		WHERE organisation_id = $1 AND id = ANY($2)
	`

	rows, err := r.querier.Query(ctx, query, organisationID, ids)
	if err != nil {
		r.logger.Error("Failed to list suppliers", "organisation_id", organisationID.String(), "error", err)
		return nil, fmt.Errorf("failed to list suppliers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var s supplier.Supplier
		if err := rows.Scan(&s.ID, &s.OrganisationID, &s.Name, &s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			r.logger.Error("Failed to scan supplier", "error", err)
			return nil, fmt.Errorf("failed to scan supplier: %w", err)
		}
		out[s.ID] = &s
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over suppliers", "error", err)
		return nil, fmt.Errorf("error iterating over suppliers: %w", err)
	}

	return out, nil
}
