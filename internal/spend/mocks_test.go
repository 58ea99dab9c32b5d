package spend

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/hospitality-spend-ledger/internal/analytics"
	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/product"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/domain/supplier"
	"github.com/hospitality-spend-ledger/internal/supersession"
)

type MockLineSource struct {
	mock.Mock
}

func (m *MockLineSource) ManualLines(ctx context.Context, q invoice.LineQuery) ([]invoice.Line, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoice.Line), args.Error(1)
}

func (m *MockLineSource) ExternalLines(ctx context.Context, q invoice.LineQuery) ([]invoice.Line, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoice.Line), args.Error(1)
}

type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) Resolve(ctx context.Context, scope shared.Scope, w analytics.Window) (*supersession.ExclusionSet, error) {
	args := m.Called(ctx, scope, w)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supersession.ExclusionSet), args.Error(1)
}

type MockSupplierRepository struct {
	mock.Mock
}

func (m *MockSupplierRepository) GetByID(ctx context.Context, organisationID, id uuid.UUID) (*supplier.Supplier, error) {
	args := m.Called(ctx, organisationID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supplier.Supplier), args.Error(1)
}

func (m *MockSupplierRepository) ListByIDs(ctx context.Context, organisationID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*supplier.Supplier, error) {
	args := m.Called(ctx, organisationID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]*supplier.Supplier), args.Error(1)
}

// fakeProducts assigns stable ids per identity, the way the table's unique key does
type fakeProducts struct {
	byIdentity map[string]*product.Product
	calls      int
}

func newFakeProducts() *fakeProducts {
	return &fakeProducts{byIdentity: map[string]*product.Product{}}
}

func (f *fakeProducts) EnsureAll(_ context.Context, scope shared.Scope, seeds []product.Seed) (map[string]*product.Product, error) {
	f.calls++
	out := make(map[string]*product.Product, len(seeds))
	for _, s := range seeds {
		key := s.Identity.String()
		p, ok := f.byIdentity[key]
		if !ok {
			p = &product.Product{
				ID:             uuid.New(),
				OrganisationID: scope.OrganisationID,
				LocationID:     scope.LocationID,
				SupplierID:     s.Identity.SupplierID,
				Key:            s.Identity.Key,
				DisplayName:    s.DisplayName,
			}
			f.byIdentity[key] = p
		}
		out[key] = p
	}
	return out, nil
}

func (f *fakeProducts) GetByID(_ context.Context, _ shared.Scope, id uuid.UUID) (*product.Product, error) {
	for _, p := range f.byIdentity {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, product.ErrProductNotFound{ProductID: id}
}

type MockSnapshotRepository struct {
	mock.Mock
}

func (m *MockSnapshotRepository) Replace(ctx context.Context, header *snapshot.Header, rows []*snapshot.Row) error {
	args := m.Called(ctx, header, rows)
	return args.Error(0)
}

func (m *MockSnapshotRepository) GetHeader(ctx context.Context, scope shared.Scope, signature string) (*snapshot.Header, error) {
	args := m.Called(ctx, scope, signature)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Header), args.Error(1)
}

func (m *MockSnapshotRepository) ListHeaders(ctx context.Context, scope shared.Scope) ([]*snapshot.Header, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*snapshot.Header), args.Error(1)
}

func (m *MockSnapshotRepository) ListRows(ctx context.Context, headerID uuid.UUID, limit, offset int) ([]*snapshot.Row, error) {
	args := m.Called(ctx, headerID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*snapshot.Row), args.Error(1)
}

func (m *MockSnapshotRepository) WithTx(tx pgx.Tx) snapshot.Repository {
	return m
}

type MockPageCache struct {
	mock.Mock
}

func (m *MockPageCache) GetPage(ctx context.Context, scope shared.Scope, signature string, page, perPage int) (*snapshot.Page, error) {
	args := m.Called(ctx, scope, signature, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Page), args.Error(1)
}

func (m *MockPageCache) SetPage(ctx context.Context, scope shared.Scope, signature string, p *snapshot.Page) error {
	args := m.Called(ctx, scope, signature, p)
	return args.Error(0)
}

func (m *MockPageCache) Invalidate(ctx context.Context, scope shared.Scope, signature string, asOf time.Time) error {
	args := m.Called(ctx, scope, signature, asOf)
	return args.Error(0)
}

type MockLocker struct {
	mock.Mock
	released int
}

func (m *MockLocker) Obtain(ctx context.Context, key string) (func(ctx context.Context) error, error) {
	args := m.Called(ctx, key)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.released++
		return nil
	}, nil
}

// directTx runs fn without a database
type directTx struct {
	err error
}

func (d directTx) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if d.err != nil {
		return d.err
	}
	return fn(nil)
}
