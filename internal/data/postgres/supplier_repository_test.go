package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitality-spend-ledger/internal/domain/supplier"
)

var supplierColumnNames = []string{"id", "organisation_id", "name", "status", "created_at", "updated_at"}

func TestSupplierRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SupplierRepository{querier: mock, logger: newTestLogger()}
	now := time.Now().UTC()
	expected := &supplier.Supplier{
		ID:             uuid.New(),
		OrganisationID: uuid.New(),
		Name:           "Harbour Fish Co",
		Status:         supplier.StatusPendingReview,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	query := regexp.QuoteMeta("WHERE organisation_id = $1 AND id = $2")

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(expected.OrganisationID, expected.ID).
			WillReturnRows(pgxmock.NewRows(supplierColumnNames).
				AddRow(expected.ID, expected.OrganisationID, expected.Name, expected.Status, expected.CreatedAt, expected.UpdatedAt))

		got, err := repo.GetByID(ctx, expected.OrganisationID, expected.ID)
		require.NoError(t, err)
		assert.Equal(t, expected, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).
			WithArgs(expected.OrganisationID, expected.ID).
			WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(ctx, expected.OrganisationID, expected.ID)
		var notFound supplier.ErrSupplierNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, expected.ID, notFound.SupplierID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSupplierRepository_ListByIDs(t *testing.T) {
	ctx := context.Background()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &SupplierRepository{querier: mock, logger: newTestLogger()}
	orgID := uuid.New()
	active := uuid.New()
	foreign := uuid.New()
	now := time.Now().UTC()
	query := regexp.QuoteMeta("WHERE organisation_id = $1 AND id = ANY($2)")

	t.Run("empty input skips the query", func(t *testing.T) {
		got, err := repo.ListByIDs(ctx, orgID, nil)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("keyed by id", func(t *testing.T) {
		ids := []uuid.UUID{active, foreign}
		mock.ExpectQuery(query).
			WithArgs(orgID, ids).
			WillReturnRows(pgxmock.NewRows(supplierColumnNames).
				AddRow(active, orgID, "Market Greens", supplier.StatusActive, now, now))

		got, err := repo.ListByIDs(ctx, orgID, ids)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Market Greens", got[active].Name)
		assert.NotContains(t, got, foreign)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("timeout")
		mock.ExpectQuery(query).WithArgs(orgID, []uuid.UUID{active}).WillReturnError(dbErr)

		_, err := repo.ListByIDs(ctx, orgID, []uuid.UUID{active})
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
