package spend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/analytics"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

var (
	// ErrRefreshInProgress means another worker holds the refresh lock for the view
	ErrRefreshInProgress = errors.New("snapshot refresh already in progress")

	ErrInvalidPage = errors.New("page must be >= 1 and per_page between 1 and 100")
)

// TxRunner runs fn inside a database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Locker provides single-flight locks. Obtain returns ErrRefreshInProgress when the lock is held.
type Locker interface {
	Obtain(ctx context.Context, key string) (release func(ctx context.Context) error, err error)
}

// PageCache caches snapshot pages per view. After Invalidate(asOf), SetPage
// must drop pages whose StatsAsOf is older than asOf.
type PageCache interface {
	GetPage(ctx context.Context, scope shared.Scope, signature string, page, perPage int) (*snapshot.Page, error)
	SetPage(ctx context.Context, scope shared.Scope, signature string, p *snapshot.Page) error
	Invalidate(ctx context.Context, scope shared.Scope, signature string, asOf time.Time) error
}

// SnapshotService rebuilds and serves the materialised product snapshot
type SnapshotService struct {
	tx        TxRunner
	spend     *Service
	snapshots snapshot.Repository
	cache     PageCache
	locker    Locker
	logger    *slog.Logger
	now       func() time.Time
}

func NewSnapshotService(
	tx TxRunner,
	spend *Service,
	snapshots snapshot.Repository,
	cache PageCache,
	locker Locker,
	logger *slog.Logger,
) *SnapshotService {
	return &SnapshotService{
		tx:        tx,
		spend:     spend,
		snapshots: snapshots,
		cache:     cache,
		locker:    locker,
		logger:    logger,
		now:       time.Now,
	}
}

func lockKey(scope shared.Scope, signature string) string {
	return "snapshot:refresh:" + scope.Key() + ":" + signature
}

// Refresh recomputes the view for (scope, accounts) and replaces its rows wholesale.
// Re-running it over unchanged data yields the same rows.
func (s *SnapshotService) Refresh(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter) (*snapshot.Header, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	signature := accounts.Signature()
	logger := s.logger.With("scope", scope.Key(), "signature", signature)

	release, err := s.locker.Obtain(ctx, lockKey(scope, signature))
	if err != nil {
		if errors.Is(err, ErrRefreshInProgress) {
			logger.Info("Snapshot refresh already running, skipping")
		}
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to release snapshot refresh lock", "error", err)
		}
	}()

	asOf := s.now().UTC()
	origins, err := s.spend.load(ctx, scope, accounts, asOf)
	if err != nil {
		return nil, err
	}
	totals := analytics.SpendByProduct(origins, asOf)
	products, err := s.spend.withProductIDs(ctx, scope, totals)
	if err != nil {
		return nil, err
	}

	header := &snapshot.Header{
		ID:             uuid.New(),
		OrganisationID: scope.OrganisationID,
		LocationID:     scope.LocationID,
		Signature:      signature,
		AccountCodes:   accounts.Codes(),
		RowCount:       len(products),
		StatsAsOf:      asOf,
		RefreshedAt:    asOf,
	}
	rows := buildRows(products)

	err = s.tx.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return s.snapshots.WithTx(tx).Replace(ctx, header, rows)
	})
	if err != nil {
		logger.Error("Failed to replace snapshot", "error", err)
		return nil, fmt.Errorf("failed to replace snapshot: %w", err)
	}

	if err := s.cache.Invalidate(ctx, scope, signature, asOf); err != nil {
		logger.Warn("Failed to invalidate snapshot page cache", "error", err)
	}

	logger.Info("Snapshot refreshed", "rows", len(rows), "stats_as_of", asOf)
	return header, nil
}

func buildRows(products []ProductSpend) []*snapshot.Row {
	rows := make([]*snapshot.Row, 0, len(products))
	for i, p := range products {
		rows = append(rows, &snapshot.Row{
			Rank:            i + 1,
			ProductID:       p.ProductID,
			SupplierID:      p.SupplierID,
			ProductKey:      p.ProductKey,
			DisplayName:     p.DisplayName,
			Spend12m:        p.Spend,
			Quantity12m:     p.Quantity,
			LineCount:       p.LineCount,
			LatestUnitPrice: p.LatestUnitPrice,
			LastPurchasedAt: p.LastPurchasedAt,
		})
	}
	return rows
}

// RefreshScope rebuilds the unfiltered view of scope plus every view already
// materialised inside it, each under the scope it was built for. Views another
// refresh currently holds are skipped.
func (s *SnapshotService) RefreshScope(ctx context.Context, scope shared.Scope) error {
	headers, err := s.snapshots.ListHeaders(ctx, scope)
	if err != nil {
		return fmt.Errorf("failed to list snapshot headers: %w", err)
	}

	type view struct {
		scope  shared.Scope
		filter shared.AccountFilter
	}
	views := []view{{scope: scope}}
	seen := map[string]struct{}{scope.Key() + ":" + shared.AllAccountsSignature: {}}
	for _, h := range headers {
		id := h.Scope().Key() + ":" + h.Signature
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		f, err := shared.NewAccountFilter(h.AccountCodes)
		if err != nil {
			s.logger.Warn("Skipping snapshot with unusable account codes", "header_id", h.ID.String(), "error", err)
			continue
		}
		views = append(views, view{scope: h.Scope(), filter: f})
	}

	for _, v := range views {
		if _, err := s.Refresh(ctx, v.scope, v.filter); err != nil && !errors.Is(err, ErrRefreshInProgress) {
			return err
		}
	}
	return nil
}

// Page serves one page of a view, through the cache when possible
func (s *SnapshotService) Page(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter, page, perPage int) (*snapshot.Page, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if perPage == 0 {
		perPage = DefaultPerPage
	}
	if page < 1 || perPage < 1 || perPage > MaxPerPage {
		return nil, ErrInvalidPage
	}
	signature := accounts.Signature()

	cached, err := s.cache.GetPage(ctx, scope, signature, page, perPage)
	if err != nil {
		s.logger.Warn("Snapshot page cache read failed", "scope", scope.Key(), "error", err)
	}
	if cached != nil {
		return cached, nil
	}

	header, err := s.snapshots.GetHeader(ctx, scope, signature)
	if err != nil {
		return nil, err
	}
	if header == nil {
		return nil, snapshot.ErrSnapshotNotFound{Signature: signature}
	}

	rows, err := s.snapshots.ListRows(ctx, header.ID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, err
	}

	p := &snapshot.Page{
		Signature: signature,
		StatsAsOf: header.StatsAsOf,
		Rows:      rows,
		Page:      page,
		PerPage:   perPage,
		Total:     header.RowCount,
	}
	if err := s.cache.SetPage(ctx, scope, signature, p); err != nil {
		s.logger.Warn("Snapshot page cache write failed", "scope", scope.Key(), "error", err)
	}
	return p, nil
}

// NoopCache is used when Redis is disabled
type NoopCache struct{}

func (NoopCache) GetPage(context.Context, shared.Scope, string, int, int) (*snapshot.Page, error) {
	return nil, nil
}

func (NoopCache) SetPage(context.Context, shared.Scope, string, *snapshot.Page) error { return nil }

func (NoopCache) Invalidate(context.Context, shared.Scope, string, time.Time) error { return nil }

// LocalLocker is used when Redis is disabled. It never blocks.
type LocalLocker struct{}

func (LocalLocker) Obtain(context.Context, string) (func(ctx context.Context) error, error) {
	return func(context.Context) error { return nil }, nil
}

var (
	_ PageCache = NoopCache{}
	_ Locker    = LocalLocker{}
)
