package handler

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hospitality-spend-ledger/internal/analytics_api/middleware"
	"github.com/hospitality-spend-ledger/internal/analytics_api/service"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// SnapshotHandler serves precomputed product rankings and queues refreshes
type SnapshotHandler struct {
	snapshots      service.SnapshotReader
	refreshService service.RefreshService
	logger         *slog.Logger
}

func NewSnapshotHandler(logger *slog.Logger, snapshots service.SnapshotReader, refreshService service.RefreshService) *SnapshotHandler {
	return &SnapshotHandler{
		snapshots:      snapshots,
		refreshService: refreshService,
		logger:         logger,
	}
}

// Products returns one page of the ranked product snapshot
func (h *SnapshotHandler) Products(c *gin.Context) {
	accounts, ok := accountFilter(c, h.logger)
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Warn("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	scope, _ := middleware.GetScope(c)
	page, err := h.snapshots.Page(c.Request.Context(), scope, accounts, pagination.Page, pagination.PerPage)
	if err != nil {
		respondWithDomainError(c, h.logger, err, "read product snapshot")
		return
	}

	RespondPage(c, page, page.Page, page.PerPage, page.Total)
}

// Refresh queues a rebuild and answers 202 straight away
func (h *SnapshotHandler) Refresh(c *gin.Context) {
	var req RefreshSnapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	accounts, err := shared.NewAccountFilter(req.AccountCodes)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	scope, _ := middleware.GetScope(c)
	queued, err := h.refreshService.RequestRefresh(c.Request.Context(), scope, accounts, middleware.GetActor(c))
	if err != nil {
		respondWithDomainError(c, h.logger, err, "queue snapshot refresh")
		return
	}

	RespondAccepted(c, RefreshAcceptedResponse{
		RequestID:   queued.RequestID.String(),
		Signature:   accounts.Signature(),
		RequestedAt: queued.RequestedAt.Format(time.RFC3339),
	})
}
