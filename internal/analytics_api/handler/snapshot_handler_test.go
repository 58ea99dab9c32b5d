package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hospitality-spend-ledger/internal/analytics_api/middleware"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/spend"
)

func TestSnapshotHandler_Products(t *testing.T) {
	orgID := uuid.New()
	scope := shared.Scope{OrganisationID: orgID}
	statsAsOf := time.Date(2026, 10, 14, 3, 0, 0, 0, time.UTC)
	beverages, err := shared.NewAccountFilter([]string{"5100"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		query      string
		setupMocks func(snapshots *MockSnapshotReader)
		wantStatus int
		wantCode   string
	}{
		{
			name:  "second page",
			query: "?account_codes=5100&page=2&per_page=1",
			setupMocks: func(snapshots *MockSnapshotReader) {
				snapshots.On("Page", mock.Anything, scope, beverages, 2, 1).Return(&snapshot.Page{
					Signature: "5100",
					StatsAsOf: statsAsOf,
					Rows: []*snapshot.Row{{
						Rank:        2,
						ProductID:   uuid.New(),
						ProductKey:  "still-water-750ml",
						DisplayName: "Still water 750ml",
						Spend12m:    decimal.RequireFromString("830.40"),
						Quantity12m: decimal.RequireFromString("960"),
						LineCount:   24,
					}},
					Page:    2,
					PerPage: 1,
					Total:   3,
				}, nil).Once()
			},
			wantStatus: http.StatusOK,
		},
		{
			name:  "never built",
			query: "",
			setupMocks: func(snapshots *MockSnapshotReader) {
				snapshots.On("Page", mock.Anything, scope, shared.AccountFilter{}, 1, spend.DefaultPerPage).
					Return(nil, snapshot.ErrSnapshotNotFound{Signature: shared.AllAccountsSignature}).Once()
			},
			wantStatus: http.StatusNotFound,
			wantCode:   "SNAPSHOT_NOT_BUILT",
		},
		{
			name:       "page zero",
			query:      "?page=0",
			setupMocks: func(snapshots *MockSnapshotReader) {},
			wantStatus: http.StatusBadRequest,
			wantCode:   "BAD_REQUEST",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snapshots := new(MockSnapshotReader)
			tt.setupMocks(snapshots)
			h := NewSnapshotHandler(newTestLogger(), snapshots, new(MockRefreshService))

			r, api := setupTestRouter()
			api.GET("/snapshots/products", h.Products)

			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, newScopedRequest(http.MethodGet, "/snapshots/products"+tt.query, "", orgID))

			assert.Equal(t, tt.wantStatus, rr.Code)
			var page snapshot.Page
			response := decodeResponse(t, rr, &page)
			if tt.wantCode != "" {
				require.NotNil(t, response.Error)
				assert.Equal(t, tt.wantCode, response.Error.Code)
			} else {
				require.NotNil(t, response.Meta)
				assert.Equal(t, 3, response.Meta.TotalPages)
				require.Len(t, page.Rows, 1)
				assert.Equal(t, "830.4", page.Rows[0].Spend12m.String())
			}
			snapshots.AssertExpectations(t)
		})
	}
}

func TestSnapshotHandler_Refresh(t *testing.T) {
	orgID := uuid.New()
	scope := shared.Scope{OrganisationID: orgID}
	actor := shared.Principal{Type: shared.PrincipalUser, ID: "controller@venue.example"}
	requestedAt := time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC)
	food, err := shared.NewAccountFilter([]string{"5000", "5010"})
	require.NoError(t, err)

	tests := []struct {
		name          string
		body          string
		setupMocks    func(refresh *MockRefreshService)
		wantStatus    int
		wantSignature string
	}{
		{
			name: "account view",
			body: `{"account_codes":["5010","5000"]}`,
			setupMocks: func(refresh *MockRefreshService) {
				refresh.On("RequestRefresh", mock.Anything, scope, food, actor).
					Return(&snapshot.RefreshRequest{RequestID: uuid.New(), RequestedAt: requestedAt}, nil).Once()
			},
			wantStatus:    http.StatusAccepted,
			wantSignature: food.Signature(),
		},
		{
			name: "empty body refreshes every account",
			setupMocks: func(refresh *MockRefreshService) {
				refresh.On("RequestRefresh", mock.Anything, scope, shared.AccountFilter{}, actor).
					Return(&snapshot.RefreshRequest{RequestID: uuid.New(), RequestedAt: requestedAt}, nil).Once()
			},
			wantStatus:    http.StatusAccepted,
			wantSignature: shared.AllAccountsSignature,
		},
		{
			name:       "blank account code",
			body:       `{"account_codes":[" "]}`,
			setupMocks: func(refresh *MockRefreshService) {},
			wantStatus: http.StatusBadRequest,
		},
		{
			name: "broker unavailable",
			body: `{}`,
			setupMocks: func(refresh *MockRefreshService) {
				refresh.On("RequestRefresh", mock.Anything, scope, shared.AccountFilter{}, actor).
					Return(nil, errors.New("kafka: leader not available")).Once()
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "refresh already running",
			body: `{}`,
			setupMocks: func(refresh *MockRefreshService) {
				refresh.On("RequestRefresh", mock.Anything, scope, shared.AccountFilter{}, actor).
					Return(nil, spend.ErrRefreshInProgress).Once()
			},
			wantStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refresh := new(MockRefreshService)
			tt.setupMocks(refresh)
			h := NewSnapshotHandler(newTestLogger(), new(MockSnapshotReader), refresh)

			r, api := setupTestRouter()
			api.POST("/snapshots/refresh", h.Refresh)

			req := newScopedRequest(http.MethodPost, "/snapshots/refresh", tt.body, orgID)
			req.Header.Set(middleware.ActorIDHeader, actor.ID)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			assert.Equal(t, tt.wantStatus, rr.Code)
			if tt.wantSignature != "" {
				var accepted RefreshAcceptedResponse
				decodeResponse(t, rr, &accepted)
				assert.Equal(t, tt.wantSignature, accepted.Signature)
				assert.Equal(t, requestedAt.Format(time.RFC3339), accepted.RequestedAt)
			}
			refresh.AssertExpectations(t)
		})
	}
}
