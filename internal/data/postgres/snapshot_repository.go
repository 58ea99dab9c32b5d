package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/platform/persistence"
)

var snapshotRowColumns = []string{
	"header_id", "rank", "product_id", "supplier_id", "product_key", "display_name",
	"spend_12m", "quantity_12m", "line_count", "latest_unit_price", "last_purchased_at",
}

const headerColumns = `id, organisation_id, location_id, signature, account_codes, row_count, stats_as_of, refreshed_at`

// SnapshotRepository stores materialised product spend views
type SnapshotRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewSnapshotRepository(logger *slog.Logger, db *persistence.PostgresDB) snapshot.Repository {
	return &SnapshotRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

func (r *SnapshotRepository) WithTx(tx pgx.Tx) snapshot.Repository {
	return &SnapshotRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Replace upserts the header, keeping the id of an existing view, then swaps its rows.
func (r *SnapshotRepository) Replace(ctx context.Context, header *snapshot.Header, rows []*snapshot.Row) error {
	upsertQuery := `
		INSERT INTO snapshot_headers (` + headerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (organisation_id, COALESCE(location_id, '00000000-0000-0000-0000-000000000000'::uuid), signature)
		DO UPDATE SET account_codes = EXCLUDED.account_codes, row_count = EXCLUDED.row_count,
			stats_as_of = EXCLUDED.stats_as_of, refreshed_at = EXCLUDED.refreshed_at
		RETURNING id
	`

	codes := header.AccountCodes
	if codes == nil {
		codes = []string{}
	}

	err := r.querier.QueryRow(ctx, upsertQuery,
		header.ID,
		header.OrganisationID,
		header.LocationID,
		header.Signature,
		codes,
		header.RowCount,
		header.StatsAsOf,
		header.RefreshedAt,
	).Scan(&header.ID)
	if err != nil {
		r.logger.Error("Failed to upsert snapshot header", "signature", header.Signature, "error", err)
		return fmt.Errorf("failed to upsert snapshot header: %w", err)
	}

	if _, err := r.querier.Exec(ctx, `DELETE FROM snapshot_rows WHERE header_id = $1`, header.ID); err != nil {
		r.logger.Error("Failed to clear snapshot rows", "header_id", header.ID.String(), "error", err)
		return fmt.Errorf("failed to clear snapshot rows: %w", err)
	}

	if len(rows) == 0 {
		return nil
	}
	for _, row := range rows {
		row.HeaderID = header.ID
	}

	copied, err := r.querier.CopyFrom(ctx, pgx.Identifier{"snapshot_rows"}, snapshotRowColumns,
		pgx.CopyFromSlice(len(rows), func(i int) ([]any, error) {
			row := rows[i]
			return []any{
				row.HeaderID,
				row.Rank,
				row.ProductID,
				row.SupplierID,
				row.ProductKey,
				row.DisplayName,
				numeric(row.Spend12m),
				numeric(row.Quantity12m),
				row.LineCount,
				nullNumeric(row.LatestUnitPrice),
				row.LastPurchasedAt,
			}, nil
		}),
	)
	if err != nil {
		r.logger.Error("Failed to copy snapshot rows", "header_id", header.ID.String(), "error", err)
		return fmt.Errorf("failed to copy snapshot rows: %w", err)
	}

	r.logger.Debug("Snapshot rows replaced", "header_id", header.ID.String(), "rows", copied)
	return nil
}

func (r *SnapshotRepository) GetHeader(ctx context.Context, scope shared.Scope, signature string) (*snapshot.Header, error) {
	query := `
		SELECT ` + headerColumns + `
		FROM snapshot_headers
		WHERE organisation_id = $1 AND location_id IS NOT DISTINCT FROM $2::uuid AND signature = $3
	`

	h, err := scanHeader(r.querier.QueryRow(ctx, query, scope.OrganisationID, scope.LocationID, signature))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get snapshot header", "signature", signature, "error", err)
		return nil, fmt.Errorf("failed to get snapshot header: %w", err)
	}

	return h, nil
}

func (r *SnapshotRepository) ListHeaders(ctx context.Context, scope shared.Scope) ([]*snapshot.Header, error) {
	query := `
		SELECT ` + headerColumns + `
		FROM snapshot_headers
		WHERE organisation_id = $1 AND ($2::uuid IS NULL OR location_id = $2)
		ORDER BY location_id NULLS FIRST, signature
	`

	rows, err := r.querier.Query(ctx, query, scope.OrganisationID, scope.LocationID)
	if err != nil {
		r.logger.Error("Failed to list snapshot headers", append(scopeAttrs(scope), "error", err)...)
		return nil, fmt.Errorf("failed to list snapshot headers: %w", err)
	}
	defer rows.Close()

	headers := []*snapshot.Header{}
	for rows.Next() {
		h, err := scanHeader(rows)
		if err != nil {
			r.logger.Error("Failed to scan snapshot header", "error", err)
			return nil, fmt.Errorf("failed to scan snapshot header: %w", err)
		}
		headers = append(headers, h)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over snapshot headers: %w", err)
	}

	return headers, nil
}

func (r *SnapshotRepository) ListRows(ctx context.Context, headerID uuid.UUID, limit, offset int) ([]*snapshot.Row, error) {
	query := `
		SELECT header_id, rank, product_id, supplier_id, product_key, display_name, spend_12m, quantity_12m,
			line_count, latest_unit_price, last_purchased_at
		FROM snapshot_rows
		WHERE header_id = $1
		ORDER BY rank
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, headerID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list snapshot rows", "header_id", headerID.String(), "error", err)
		return nil, fmt.Errorf("failed to list snapshot rows: %w", err)
	}
	defer rows.Close()

	out := []*snapshot.Row{}
	for rows.Next() {
		var row snapshot.Row
		err := rows.Scan(
			&row.HeaderID,
			&row.Rank,
			&row.ProductID,
			&row.SupplierID,
			&row.ProductKey,
			&row.DisplayName,
			&row.Spend12m,
			&row.Quantity12m,
			&row.LineCount,
			&row.LatestUnitPrice,
			&row.LastPurchasedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan snapshot row", "error", err)
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		out = append(out, &row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over snapshot rows: %w", err)
	}

	return out, nil
}

func scanHeader(row pgx.Row) (*snapshot.Header, error) {
	var h snapshot.Header
	err := row.Scan(
		&h.ID,
		&h.OrganisationID,
		&h.LocationID,
		&h.Signature,
		&h.AccountCodes,
		&h.RowCount,
		&h.StatsAsOf,
		&h.RefreshedAt,
	)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// numeric converts to the binary NUMERIC representation CopyFrom needs
func numeric(d decimal.Decimal) pgtype.Numeric {
	return pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
}

func nullNumeric(d decimal.NullDecimal) pgtype.Numeric {
	if !d.Valid {
		return pgtype.Numeric{}
	}
	return numeric(d.Decimal)
}
