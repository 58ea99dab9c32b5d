package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/analytics_api/middleware"
	"github.com/hospitality-spend-ledger/internal/analytics_api/service"
)

// VerificationHandler handles single-document review requests
type VerificationHandler struct {
	verificationService service.VerificationService
	logger              *slog.Logger
}

func NewVerificationHandler(logger *slog.Logger, verificationService service.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		verificationService: verificationService,
		logger:              logger,
	}
}

// Evaluate returns the gate decision for a document without changing it
func (h *VerificationHandler) Evaluate(c *gin.Context) {
	var req EvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	scope, _ := middleware.GetScope(c)
	evaluation, err := h.verificationService.Evaluate(c.Request.Context(), scope, uuid.MustParse(req.DocumentID))
	if err != nil {
		respondWithDomainError(c, h.logger, err, "evaluate document")
		return
	}

	RespondOK(c, evaluation)
}

// Verify records a human verification for the actor named by X-Actor-ID
func (h *VerificationHandler) Verify(c *gin.Context) {
	id, ok := h.parseID(c, "document")
	if !ok {
		return
	}

	actor := middleware.GetActor(c)
	if actor.ID == "" {
		RespondUnauthorized(c, middleware.ActorIDHeader+" header is required")
		return
	}

	scope, _ := middleware.GetScope(c)
	doc, err := h.verificationService.Verify(c.Request.Context(), scope, id, actor)
	if err != nil {
		respondWithDomainError(c, h.logger, err, "verify document")
		return
	}

	RespondOK(c, mapDocumentToResponse(doc))
}

// DeleteInvoice soft-deletes a manual invoice and its lines
func (h *VerificationHandler) DeleteInvoice(c *gin.Context) {
	id, ok := h.parseID(c, "invoice")
	if !ok {
		return
	}

	scope, _ := middleware.GetScope(c)
	if err := h.verificationService.DeleteInvoice(c.Request.Context(), scope, id); err != nil {
		respondWithDomainError(c, h.logger, err, "delete invoice")
		return
	}

	RespondNoContent(c)
}

func (h *VerificationHandler) RestoreInvoice(c *gin.Context) {
	id, ok := h.parseID(c, "invoice")
	if !ok {
		return
	}

	scope, _ := middleware.GetScope(c)
	if err := h.verificationService.RestoreInvoice(c.Request.Context(), scope, id); err != nil {
		respondWithDomainError(c, h.logger, err, "restore invoice")
		return
	}

	RespondNoContent(c)
}

func (h *VerificationHandler) parseID(c *gin.Context, kind string) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Warn("Invalid "+kind+" ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid "+kind+" ID")
		return uuid.Nil, false
	}
	return id, true
}
