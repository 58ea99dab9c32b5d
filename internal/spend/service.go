// Package spend serves aggregation engine results and maintains the materialised snapshot.
package spend

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/analytics"
	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/product"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/supplier"
	"github.com/hospitality-spend-ledger/internal/supersession"
)

// LineSource loads the lines of each origin
type LineSource interface {
	ManualLines(ctx context.Context, q invoice.LineQuery) ([]invoice.Line, error)
	ExternalLines(ctx context.Context, q invoice.LineQuery) ([]invoice.Line, error)
}

// ExclusionResolver resolves superseded and attached external invoices
type ExclusionResolver interface {
	Resolve(ctx context.Context, scope shared.Scope, w analytics.Window) (*supersession.ExclusionSet, error)
}

// Service answers spend queries by loading both origins and running the engine
type Service struct {
	lines     LineSource
	resolver  ExclusionResolver
	suppliers supplier.Repository
	products  product.Repository
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	lines LineSource,
	resolver ExclusionResolver,
	suppliers supplier.Repository,
	products product.Repository,
	logger *slog.Logger,
) *Service {
	return &Service{
		lines:     lines,
		resolver:  resolver,
		suppliers: suppliers,
		products:  products,
		logger:    logger,
		now:       time.Now,
	}
}

// load applies each origin's exclusion rule independently before anything is summed
func (s *Service) load(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter, asOf time.Time) (analytics.Origins, error) {
	if err := scope.Validate(); err != nil {
		return analytics.Origins{}, err
	}

	w := analytics.LoadWindow(asOf)
	exclusions, err := s.resolver.Resolve(ctx, scope, w)
	if err != nil {
		return analytics.Origins{}, err
	}

	q := invoice.LineQuery{Scope: scope, Accounts: accounts, From: w.From, To: w.To}
	external, err := s.lines.ExternalLines(ctx, q)
	if err != nil {
		return analytics.Origins{}, fmt.Errorf("failed to load external lines: %w", err)
	}
	manual, err := s.lines.ManualLines(ctx, q)
	if err != nil {
		return analytics.Origins{}, fmt.Errorf("failed to load manual lines: %w", err)
	}

	origins := analytics.NewOrigins(external, manual, exclusions)
	s.logger.Debug("Loaded analytics lines",
		"scope", scope.Key(),
		"external", len(origins.External),
		"excluded_external", len(external)-len(origins.External),
		"manual", len(origins.Manual),
		"deselected_manual", len(manual)-len(origins.Manual))
	return origins, nil
}

// Summary is the 12-month scope total with its 6-month trend
type Summary struct {
	Scope        shared.Scope      `json:"scope"`
	AccountCodes []string          `json:"account_codes"`
	AsOf         time.Time         `json:"as_of"`
	Totals       analytics.Summary `json:"totals"`
}

func (s *Service) Summary(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter) (*Summary, error) {
	asOf := s.now().UTC()
	origins, err := s.load(ctx, scope, accounts, asOf)
	if err != nil {
		return nil, err
	}
	return &Summary{
		Scope:        scope,
		AccountCodes: accounts.Codes(),
		AsOf:         asOf,
		Totals:       analytics.Summarize(origins, asOf),
	}, nil
}

// SupplierSpend is a supplier listing row
type SupplierSpend struct {
	analytics.SupplierTotal
	Name   string          `json:"name"`
	Status supplier.Status `json:"status"`
}

// ProductSpend is a product listing row with its canonical product id
type ProductSpend struct {
	analytics.ProductTotal
	ProductID uuid.UUID `json:"product_id"`
}

// Breakdown lists the same spend by supplier and by product
type Breakdown struct {
	Scope        shared.Scope     `json:"scope"`
	AccountCodes []string         `json:"account_codes"`
	AsOf         time.Time        `json:"as_of"`
	Window       analytics.Window `json:"window"`
	BySupplier   []SupplierSpend  `json:"by_supplier"`
	ByProduct    []ProductSpend   `json:"by_product"`
}

// Breakdown only lists ACTIVE suppliers; products of any supplier are listed
func (s *Service) Breakdown(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter) (*Breakdown, error) {
	asOf := s.now().UTC()
	origins, err := s.load(ctx, scope, accounts, asOf)
	if err != nil {
		return nil, err
	}
	b := analytics.Break(origins, asOf)

	bySupplier, err := s.activeSuppliers(ctx, scope, b.BySupplier)
	if err != nil {
		return nil, err
	}
	byProduct, err := s.withProductIDs(ctx, scope, b.ByProduct)
	if err != nil {
		return nil, err
	}

	return &Breakdown{
		Scope:        scope,
		AccountCodes: accounts.Codes(),
		AsOf:         asOf,
		Window:       b.Window,
		BySupplier:   bySupplier,
		ByProduct:    byProduct,
	}, nil
}

func (s *Service) activeSuppliers(ctx context.Context, scope shared.Scope, totals []analytics.SupplierTotal) ([]SupplierSpend, error) {
	ids := make([]uuid.UUID, 0, len(totals))
	for _, t := range totals {
		if t.SupplierID != nil {
			ids = append(ids, *t.SupplierID)
		}
	}

	found := map[uuid.UUID]*supplier.Supplier{}
	if len(ids) > 0 {
		var err error
		found, err = s.suppliers.ListByIDs(ctx, scope.OrganisationID, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load suppliers: %w", err)
		}
	}

	out := make([]SupplierSpend, 0, len(totals))
	for _, t := range totals {
		if t.SupplierID == nil {
			continue
		}
		sup, ok := found[*t.SupplierID]
		if !ok || !sup.IsActive() {
			continue
		}
		out = append(out, SupplierSpend{SupplierTotal: t, Name: sup.Name, Status: sup.Status})
	}
	return out, nil
}

func (s *Service) withProductIDs(ctx context.Context, scope shared.Scope, totals []analytics.ProductTotal) ([]ProductSpend, error) {
	if len(totals) == 0 {
		return []ProductSpend{}, nil
	}

	seeds := make([]product.Seed, 0, len(totals))
	for _, t := range totals {
		seeds = append(seeds, product.Seed{Identity: t.Identity, DisplayName: t.DisplayName})
	}
	products, err := s.products.EnsureAll(ctx, scope, seeds)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve canonical products: %w", err)
	}

	out := make([]ProductSpend, 0, len(totals))
	for _, t := range totals {
		ps := ProductSpend{ProductTotal: t}
		if p, ok := products[t.Identity.String()]; ok {
			ps.ProductID = p.ID
		}
		out = append(out, ps)
	}
	return out, nil
}

// ProductDetail is the detail view of one canonical product
type ProductDetail struct {
	Product *product.Product        `json:"product"`
	AsOf    time.Time               `json:"as_of"`
	Detail  analytics.ProductDetail `json:"detail"`
}

// ProductDetail describes one product across every account
func (s *Service) ProductDetail(ctx context.Context, scope shared.Scope, productID uuid.UUID) (*ProductDetail, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	p, err := s.products.GetByID(ctx, scope, productID)
	if err != nil {
		return nil, err
	}

	asOf := s.now().UTC()
	productScope := scope
	if p.LocationID != nil {
		productScope.LocationID = p.LocationID
	}
	origins, err := s.load(ctx, productScope, shared.AccountFilter{}, asOf)
	if err != nil {
		return nil, err
	}

	return &ProductDetail{
		Product: p,
		AsOf:    asOf,
		Detail:  analytics.DescribeProduct(origins, p.Identity(), asOf),
	}, nil
}

// PriceChanges lists recent per-product price moves
type PriceChanges struct {
	Scope        shared.Scope            `json:"scope"`
	AccountCodes []string                `json:"account_codes"`
	AsOf         time.Time               `json:"as_of"`
	Changes      []analytics.PriceChange `json:"changes"`
}

func (s *Service) RecentPriceChanges(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter, limit int) (*PriceChanges, error) {
	asOf := s.now().UTC()
	origins, err := s.load(ctx, scope, accounts, asOf)
	if err != nil {
		return nil, err
	}
	return &PriceChanges{
		Scope:        scope,
		AccountCodes: accounts.Codes(),
		AsOf:         asOf,
		Changes:      analytics.RecentPriceChanges(origins, asOf, limit),
	}, nil
}
