package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/document"
	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/product"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/spend"
)

// respondWithDomainError maps service errors onto the response envelope.
// Anything unrecognised is logged and answered with a bare 500.
func respondWithDomainError(c *gin.Context, logger *slog.Logger, err error, action string) {
	var (
		transition      document.ErrInvalidTransition
		snapshotMissing snapshot.ErrSnapshotNotFound
	)

	switch {
	case errors.Is(err, shared.ErrInvalidScope),
		errors.Is(err, shared.ErrInvalidAccountFilter),
		errors.Is(err, batch.ErrInvalidIdempotencyKey),
		errors.Is(err, spend.ErrInvalidPage):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, document.ErrDocumentNotFound{}):
		RespondNotFound(c, "Document not found")
	case errors.Is(err, invoice.ErrInvoiceNotFound{}):
		RespondNotFound(c, "Invoice not found")
	case errors.Is(err, product.ErrProductNotFound{}):
		RespondNotFound(c, "Product not found")
	case errors.As(err, &snapshotMissing):
		RespondWithError(c, http.StatusNotFound, "SNAPSHOT_NOT_BUILT", "No snapshot has been built for account view "+snapshotMissing.Signature)
	case errors.As(err, &transition):
		RespondWithError(c, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, document.ErrConcurrentModification{}):
		RespondWithError(c, http.StatusConflict, "CONCURRENT_MODIFICATION", "Document changed while being verified, retry")
	case errors.Is(err, batch.ErrFingerprintMismatch{}):
		RespondWithError(c, http.StatusConflict, "IDEMPOTENCY_KEY_REUSED", "Idempotency key was already used with different parameters")
	case errors.Is(err, batch.ErrBatchInProgress{}):
		RespondWithError(c, http.StatusConflict, "BATCH_IN_PROGRESS", "A batch with this idempotency key is still running")
	case errors.Is(err, spend.ErrRefreshInProgress):
		RespondUnavailable(c, "REFRESH_IN_PROGRESS", "A refresh for this account view is already running")
	default:
		logger.Error("Failed to "+action, "error", err)
		RespondInternalError(c)
	}
}
