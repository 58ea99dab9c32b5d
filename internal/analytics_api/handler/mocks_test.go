package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/hospitality-spend-ledger/internal/analytics_api/middleware"
	"github.com/hospitality-spend-ledger/internal/analytics_api/service"
	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/document"
	"github.com/hospitality-spend-ledger/internal/domain/history"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/retro"
	"github.com/hospitality-spend-ledger/internal/spend"
)

type MockVerificationService struct {
	mock.Mock
}

func (m *MockVerificationService) Evaluate(ctx context.Context, scope shared.Scope, documentID uuid.UUID) (*service.Evaluation, error) {
	args := m.Called(ctx, scope, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Evaluation), args.Error(1)
}

func (m *MockVerificationService) Verify(ctx context.Context, scope shared.Scope, documentID uuid.UUID, actor shared.Principal) (*document.Document, error) {
	args := m.Called(ctx, scope, documentID, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockVerificationService) DeleteInvoice(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID) error {
	args := m.Called(ctx, scope, invoiceID)
	return args.Error(0)
}

func (m *MockVerificationService) RestoreInvoice(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID) error {
	args := m.Called(ctx, scope, invoiceID)
	return args.Error(0)
}

type MockRetroService struct {
	mock.Mock
}

func (m *MockRetroService) Run(ctx context.Context, req retro.RunRequest) (*batch.Result, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.Result), args.Error(1)
}

func (m *MockRetroService) Preview(ctx context.Context, scope shared.Scope) (*batch.Preview, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.Preview), args.Error(1)
}

type MockHistoryService struct {
	mock.Mock
}

func (m *MockHistoryService) ListBatches(ctx context.Context, scope shared.Scope, page, perPage int) ([]*history.Record, int64, error) {
	args := m.Called(ctx, scope, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*history.Record), args.Get(1).(int64), args.Error(2)
}

type MockSpendService struct {
	mock.Mock
}

func (m *MockSpendService) Summary(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter) (*spend.Summary, error) {
	args := m.Called(ctx, scope, accounts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*spend.Summary), args.Error(1)
}

func (m *MockSpendService) Breakdown(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter) (*spend.Breakdown, error) {
	args := m.Called(ctx, scope, accounts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*spend.Breakdown), args.Error(1)
}

func (m *MockSpendService) RecentPriceChanges(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter, limit int) (*spend.PriceChanges, error) {
	args := m.Called(ctx, scope, accounts, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*spend.PriceChanges), args.Error(1)
}

func (m *MockSpendService) ProductDetail(ctx context.Context, scope shared.Scope, productID uuid.UUID) (*spend.ProductDetail, error) {
	args := m.Called(ctx, scope, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*spend.ProductDetail), args.Error(1)
}

type MockSnapshotReader struct {
	mock.Mock
}

func (m *MockSnapshotReader) Page(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter, page, perPage int) (*snapshot.Page, error) {
	args := m.Called(ctx, scope, accounts, page, perPage)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.Page), args.Error(1)
}

type MockRefreshService struct {
	mock.Mock
}

func (m *MockRefreshService) RequestRefresh(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter, actor shared.Principal) (*snapshot.RefreshRequest, error) {
	args := m.Called(ctx, scope, accounts, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*snapshot.RefreshRequest), args.Error(1)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// setupTestRouter mounts handlers behind the scope middleware the way the server does
func setupTestRouter() (*gin.Engine, *gin.RouterGroup) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	return r, r.Group("", middleware.Scope())
}

func newScopedRequest(method, target, body string, orgID uuid.UUID) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(middleware.OrganisationIDHeader, orgID.String())
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}
