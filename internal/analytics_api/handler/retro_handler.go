package handler

import (
	"errors"
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/hospitality-spend-ledger/internal/analytics_api/middleware"
	"github.com/hospitality-spend-ledger/internal/analytics_api/service"
	"github.com/hospitality-spend-ledger/internal/retro"
)

// IdempotencyKeyHeader carries the client's batch key
const IdempotencyKeyHeader = "Idempotency-Key"

// RetroHandler handles retro auto-verify batches and their history
type RetroHandler struct {
	retroService   service.RetroService
	historyService service.HistoryService
	logger         *slog.Logger
}

func NewRetroHandler(logger *slog.Logger, retroService service.RetroService, historyService service.HistoryService) *RetroHandler {
	return &RetroHandler{
		retroService:   retroService,
		historyService: historyService,
		logger:         logger,
	}
}

// Preview estimates how many documents a batch would verify
func (h *RetroHandler) Preview(c *gin.Context) {
	scope, _ := middleware.GetScope(c)
	preview, err := h.retroService.Preview(c.Request.Context(), scope)
	if err != nil {
		respondWithDomainError(c, h.logger, err, "preview retro batch")
		return
	}

	RespondOK(c, preview)
}

// Run executes a batch. A fresh run answers 201; replays and dry runs answer 200.
func (h *RetroHandler) Run(c *gin.Context) {
	var req RunBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	key := c.GetHeader(IdempotencyKeyHeader)
	if key == "" {
		key = req.IdempotencyKey
	}

	scope, _ := middleware.GetScope(c)
	result, err := h.retroService.Run(c.Request.Context(), retro.RunRequest{
		Scope:          scope,
		IdempotencyKey: key,
		DryRun:         req.DryRun,
		Actor:          middleware.GetActor(c),
		CorrelationID:  middleware.GetCorrelationID(c),
	})
	if err != nil {
		respondWithDomainError(c, h.logger, err, "run retro batch")
		return
	}

	if result.Replayed || result.DryRun {
		RespondOK(c, result)
		return
	}
	RespondCreated(c, result)
}

// History lists completed batches newest first
func (h *RetroHandler) History(c *gin.Context) {
	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Warn("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	scope, _ := middleware.GetScope(c)
	records, total, err := h.historyService.ListBatches(c.Request.Context(), scope, pagination.Page, pagination.PerPage)
	if err != nil {
		respondWithDomainError(c, h.logger, err, "list retro batches")
		return
	}

	RespondPage(c, records, pagination.Page, pagination.PerPage, int(total))
}
