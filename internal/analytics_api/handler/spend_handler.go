package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/analytics_api/middleware"
	"github.com/hospitality-spend-ledger/internal/analytics_api/service"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// AccountCodesQuery is the comma separated account filter parameter
const AccountCodesQuery = "account_codes"

// SpendHandler serves live spend analytics
type SpendHandler struct {
	spendService service.SpendService
	logger       *slog.Logger
}

func NewSpendHandler(logger *slog.Logger, spendService service.SpendService) *SpendHandler {
	return &SpendHandler{
		spendService: spendService,
		logger:       logger,
	}
}

func (h *SpendHandler) Summary(c *gin.Context) {
	accounts, ok := accountFilter(c, h.logger)
	if !ok {
		return
	}

	scope, _ := middleware.GetScope(c)
	summary, err := h.spendService.Summary(c.Request.Context(), scope, accounts)
	if err != nil {
		respondWithDomainError(c, h.logger, err, "compute spend summary")
		return
	}

	RespondOK(c, summary)
}

func (h *SpendHandler) Breakdown(c *gin.Context) {
	accounts, ok := accountFilter(c, h.logger)
	if !ok {
		return
	}

	scope, _ := middleware.GetScope(c)
	breakdown, err := h.spendService.Breakdown(c.Request.Context(), scope, accounts)
	if err != nil {
		respondWithDomainError(c, h.logger, err, "compute spend breakdown")
		return
	}

	RespondOK(c, breakdown)
}

// PriceChanges lists the most recent unit price movements
func (h *SpendHandler) PriceChanges(c *gin.Context) {
	accounts, ok := accountFilter(c, h.logger)
	if !ok {
		return
	}

	var params PriceChangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		h.logger.Warn("Invalid limit parameter", "error", err)
		RespondBadRequest(c, "Invalid limit parameter")
		return
	}

	scope, _ := middleware.GetScope(c)
	changes, err := h.spendService.RecentPriceChanges(c.Request.Context(), scope, accounts, params.Limit)
	if err != nil {
		respondWithDomainError(c, h.logger, err, "list price changes")
		return
	}

	RespondOK(c, changes)
}

func (h *SpendHandler) ProductDetail(c *gin.Context) {
	idParam := c.Param("id")
	productID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Warn("Invalid product ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid product ID")
		return
	}

	scope, _ := middleware.GetScope(c)
	detail, err := h.spendService.ProductDetail(c.Request.Context(), scope, productID)
	if err != nil {
		respondWithDomainError(c, h.logger, err, "load product detail")
		return
	}

	RespondOK(c, detail)
}

func accountFilter(c *gin.Context, logger *slog.Logger) (shared.AccountFilter, bool) {
	accounts, err := shared.ParseAccountFilter(c.Query(AccountCodesQuery))
	if err != nil {
		logger.Warn("Invalid account filter", "error", err)
		RespondBadRequest(c, err.Error())
		return shared.AccountFilter{}, false
	}
	return accounts, true
}
