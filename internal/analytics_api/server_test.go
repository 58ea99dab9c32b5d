package analytics_api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitality-spend-ledger/internal/analytics_api/middleware"
	"github.com/hospitality-spend-ledger/internal/analytics_api/service"
	"github.com/hospitality-spend-ledger/internal/config"
	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/retro"
)

type stubRetro struct {
	service.RetroService
	previewed shared.Scope
}

func (s *stubRetro) Preview(_ context.Context, scope shared.Scope) (*batch.Preview, error) {
	s.previewed = scope
	return &batch.Preview{Scope: scope, ReasonHistogram: map[string]int{}}, nil
}

func (s *stubRetro) Run(context.Context, retro.RunRequest) (*batch.Result, error) {
	return nil, batch.ErrInvalidIdempotencyKey
}

func testServer(retroSvc service.RetroService) *Server {
	cfg := &config.Config{
		Application: config.ApplicationConfig{Env: "test"},
		Server:      config.ServerConfig{Port: 8080, ReadTimeout: time.Second, WriteTimeout: time.Second, IdleTimeout: time.Second},
	}
	return NewServer(slog.New(slog.NewJSONHandler(io.Discard, nil)), cfg, Services{Retro: retroSvc})
}

func TestServer_Health(t *testing.T) {
	srv := testServer(&stubRetro{})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
	assert.NotEmpty(t, rr.Header().Get(middleware.CorrelationIDHeader))
}

func TestServer_ScopedRoutes(t *testing.T) {
	retroSvc := &stubRetro{}
	srv := testServer(retroSvc)
	orgID := uuid.New()

	t.Run("scope headers resolve", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/retro/preview", nil)
		req.Header.Set(middleware.OrganisationIDHeader, orgID.String())
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, orgID, retroSvc.previewed.OrganisationID)
		assert.Nil(t, retroSvc.previewed.LocationID)
	})

	t.Run("missing organisation rejected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/retro/preview", nil))

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "INVALID_SCOPE")
	})

	t.Run("service error mapped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/retro/batches", nil)
		req.Header.Set(middleware.OrganisationIDHeader, orgID.String())
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}
