package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/product"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/platform/persistence"
)

// ProductRepository stores canonical products keyed by (organisation, location, supplier, key)
type ProductRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewProductRepository(logger *slog.Logger, db *persistence.PostgresDB) product.Repository {
	return &ProductRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// EnsureAll inserts every missing identity then reads all of them back, so concurrent
// callers racing on the same identity converge on one row.
func (r *ProductRepository) EnsureAll(ctx context.Context, scope shared.Scope, seeds []product.Seed) (map[string]*product.Product, error) {
	out := make(map[string]*product.Product, len(seeds))
	if len(seeds) == 0 {
		return out, nil
	}

	ids, suppliers, keys, names := seedColumns(seeds)

	insertQuery := `
		INSERT INTO canonical_products (id, organisation_id, location_id, supplier_id, product_key, display_name)
		SELECT s.id, $1, $2, s.supplier_id, s.product_key, s.display_name
		FROM unnest($3::uuid[], $4::uuid[], $5::text[], $6::text[]) AS s(id, supplier_id, product_key, display_name)
		ON CONFLICT DO NOTHING
	`

	result, err := r.querier.Exec(ctx, insertQuery, scope.OrganisationID, scope.LocationID, ids, suppliers, keys, names)
	if err != nil {
		r.logger.Error("Failed to insert canonical products", append(scopeAttrs(scope), "error", err)...)
		return nil, fmt.Errorf("failed to insert canonical products: %w", err)
	}
	if created := result.RowsAffected(); created > 0 {
		r.logger.Debug("Created canonical products", append(scopeAttrs(scope), "count", created)...)
	}

	selectQuery := `
		SELECT p.id, p.organisation_id, p.location_id, p.supplier_id, p.product_key, p.display_name, p.created_at
		FROM canonical_products p
		JOIN unnest($3::uuid[], $4::text[]) AS s(supplier_id, product_key)
			ON p.product_key = s.product_key AND p.supplier_id IS NOT DISTINCT FROM s.supplier_id
		WHERE p.organisation_id = $1 AND p.location_id IS NOT DISTINCT FROM $2::uuid
	`

	rows, err := r.querier.Query(ctx, selectQuery, scope.OrganisationID, scope.LocationID, suppliers, keys)
	if err != nil {
		r.logger.Error("Failed to load canonical products", append(scopeAttrs(scope), "error", err)...)
		return nil, fmt.Errorf("failed to load canonical products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			r.logger.Error("Failed to scan canonical product", "error", err)
			return nil, fmt.Errorf("failed to scan canonical product: %w", err)
		}
		out[p.Identity().String()] = p
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over canonical products", "error", err)
		return nil, fmt.Errorf("error iterating over canonical products: %w", err)
	}

	return out, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, scope shared.Scope, id uuid.UUID) (*product.Product, error) {
	query := `
		SELECT id, organisation_id, location_id, supplier_id, product_key, display_name, created_at
		FROM canonical_products
		WHERE id = $1 AND organisation_id = $2 AND ($3::uuid IS NULL OR location_id = $3)
	`

	p, err := scanProduct(r.querier.QueryRow(ctx, query, id, scope.OrganisationID, scope.LocationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrProductNotFound{ProductID: id}
		}
		r.logger.Error("Failed to get canonical product", "product_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get canonical product: %w", err)
	}

	return p, nil
}

// seedColumns de-duplicates seeds by identity and splits them into unnest-able arrays.
// A uuid.Nil supplier is stored as NULL.
func seedColumns(seeds []product.Seed) ([]uuid.UUID, []*uuid.UUID, []string, []string) {
	seen := make(map[string]struct{}, len(seeds))
	ids := make([]uuid.UUID, 0, len(seeds))
	suppliers := make([]*uuid.UUID, 0, len(seeds))
	keys := make([]string, 0, len(seeds))
	names := make([]string, 0, len(seeds))

	for _, s := range seeds {
		identity := s.Identity.String()
		if _, dup := seen[identity]; dup {
			continue
		}
		seen[identity] = struct{}{}

		var supplierID *uuid.UUID
		if s.Identity.SupplierID != nil && *s.Identity.SupplierID != uuid.Nil {
			id := *s.Identity.SupplierID
			supplierID = &id
		}

		ids = append(ids, uuid.New())
		suppliers = append(suppliers, supplierID)
		keys = append(keys, s.Identity.Key)
		names = append(names, s.DisplayName)
	}

	return ids, suppliers, keys, names
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID,
		&p.OrganisationID,
		&p.LocationID,
		&p.SupplierID,
		&p.Key,
		&p.DisplayName,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
