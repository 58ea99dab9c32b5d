package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hospitality-spend-ledger/internal/domain/product"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/spend"
)

func TestSpendHandler_Summary(t *testing.T) {
	orgID := uuid.New()
	scope := shared.Scope{OrganisationID: orgID}
	asOf := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	food, err := shared.NewAccountFilter([]string{"5000", "5010"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		query      string
		setupMocks func(svc *MockSpendService)
		wantStatus int
	}{
		{
			name:  "all accounts",
			query: "",
			setupMocks: func(svc *MockSpendService) {
				svc.On("Summary", mock.Anything, scope, shared.AccountFilter{}).
					Return(&spend.Summary{Scope: scope, AccountCodes: []string{}, AsOf: asOf}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "normalised account filter",
			query: "?account_codes=5010,5000,5010",
			setupMocks: func(svc *MockSpendService) {
				svc.On("Summary", mock.Anything, scope, food).
					Return(&spend.Summary{Scope: scope, AccountCodes: food.Codes(), AsOf: asOf}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "blank account code",
			query:      "?account_codes=5000,,5010",
			setupMocks: func(svc *MockSpendService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSpendService)
			tt.setupMocks(svc)
			h := NewSpendHandler(newTestLogger(), svc)

			r, api := setupTestRouter()
			api.GET("/spend/summary", h.Summary)

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, newScopedRequest(http.MethodGet, "/spend/summary"+tt.query, "", orgID))

			assert.Equal(t, tt.wantStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestSpendHandler_Breakdown(t *testing.T) {
	orgID := uuid.New()
	scope := shared.Scope{OrganisationID: orgID}

	svc := new(MockSpendService)
	svc.On("Breakdown", mock.Anything, scope, shared.AccountFilter{}).Return(&spend.Breakdown{
		Scope:      scope,
		BySupplier: []spend.SupplierSpend{},
		ByProduct:  []spend.ProductSpend{},
	}, nil).Once()
	h := NewSpendHandler(newTestLogger(), svc)

	r, api := setupTestRouter()
	api.GET("/spend/breakdown", h.Breakdown)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, newScopedRequest(http.MethodGet, "/spend/breakdown", "", orgID))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestSpendHandler_PriceChanges(t *testing.T) {
	orgID := uuid.New()
	scope := shared.Scope{OrganisationID: orgID}

	tests := []struct {
		name       string
		query      string
		setupMocks func(svc *MockSpendService)
		wantStatus int
	}{
		{
			name:  "default limit is left to the service",
			query: "",
			setupMocks: func(svc *MockSpendService) {
				svc.On("RecentPriceChanges", mock.Anything, scope, shared.AccountFilter{}, 0).
					Return(&spend.PriceChanges{Scope: scope}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "explicit limit",
			query: "?limit=25",
			setupMocks: func(svc *MockSpendService) {
				svc.On("RecentPriceChanges", mock.Anything, scope, shared.AccountFilter{}, 25).
					Return(&spend.PriceChanges{Scope: scope}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:       "negative limit",
			query:      "?limit=-1",
			setupMocks: func(svc *MockSpendService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "non numeric limit",
			query:      "?limit=ten",
			setupMocks: func(svc *MockSpendService) {},
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSpendService)
			tt.setupMocks(svc)
			h := NewSpendHandler(newTestLogger(), svc)

			r, api := setupTestRouter()
			api.GET("/spend/price-changes", h.PriceChanges)

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, newScopedRequest(http.MethodGet, "/spend/price-changes"+tt.query, "", orgID))

			assert.Equal(t, tt.wantStatus, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestSpendHandler_ProductDetail(t *testing.T) {
	orgID := uuid.New()
	scope := shared.Scope{OrganisationID: orgID}
	productID := uuid.New()

	t.Run("found", func(t *testing.T) {
		svc := new(MockSpendService)
		svc.On("ProductDetail", mock.Anything, scope, productID).Return(&spend.ProductDetail{
			Product: &product.Product{ID: productID, OrganisationID: orgID, DisplayName: "Cod loin"},
		}, nil).Once()
		h := NewSpendHandler(newTestLogger(), svc)

		r, api := setupTestRouter()
		api.GET("/products/:id", h.ProductDetail)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, newScopedRequest(http.MethodGet, "/products/"+productID.String(), "", orgID))

		require.Equal(t, http.StatusOK, rr.Code)
		var detail spend.ProductDetail
		decodeResponse(t, rr, &detail)
		require.NotNil(t, detail.Product)
		assert.Equal(t, "Cod loin", detail.Product.DisplayName)
		svc.AssertExpectations(t)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockSpendService)
		svc.On("ProductDetail", mock.Anything, scope, productID).
			Return(nil, product.ErrProductNotFound{ProductID: productID}).Once()
		h := NewSpendHandler(newTestLogger(), svc)

		r, api := setupTestRouter()
		api.GET("/products/:id", h.ProductDetail)

		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, newScopedRequest(http.MethodGet, "/products/"+productID.String(), "", orgID))

		assert.Equal(t, http.StatusNotFound, rr.Code)
		svc.AssertExpectations(t)
	})
}
