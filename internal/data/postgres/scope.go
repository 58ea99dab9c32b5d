package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

const uniqueViolation = "23505"

// accountCodesArg binds an account filter. The unfiltered view binds NULL so
// "$n::text[] IS NULL" short-circuits the predicate.
func accountCodesArg(f shared.AccountFilter) []string {
	if f.IsEmpty() {
		return nil
	}
	return f.Codes()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func scopeAttrs(scope shared.Scope) []any {
	attrs := []any{"organisation_id", scope.OrganisationID.String()}
	if scope.LocationID != nil {
		attrs = append(attrs, "location_id", scope.LocationID.String())
	}
	return attrs
}
