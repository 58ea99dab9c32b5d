package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/platform/messaging/producers"
	"github.com/hospitality-spend-ledger/internal/retro_processor/service"
)

// RefreshRequestHandler rebuilds snapshot views requested by operators and the backfill job
type RefreshRequestHandler struct {
	scheduler service.RefreshScheduler
	producer  producers.DeadLetterPublisher
	logger    *slog.Logger
}

func NewRefreshRequestHandler(
	logger *slog.Logger,
	scheduler service.RefreshScheduler,
	producer producers.DeadLetterPublisher,
) *RefreshRequestHandler {
	return &RefreshRequestHandler{
		scheduler: scheduler,
		producer:  producer,
		logger:    logger,
	}
}

func (h *RefreshRequestHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var req snapshot.RefreshRequest
	if err := json.Unmarshal(value, &req); err != nil {
		return deadLetter(ctx, h.logger, h.producer, key, value, "Failed to unmarshal snapshot refresh request", err)
	}

	logger := h.logger.With("request_id", req.RequestID.String(), "scope", req.Scope.Key())
	if req.CorrelationID != "" {
		logger = logger.With("correlation_id", req.CorrelationID)
	}

	err := h.scheduler.Schedule(ctx, &req)
	switch {
	case err == nil:
		logger.Info("Snapshot refresh completed", "source", string(req.Source))
		return nil
	case errors.Is(err, shared.ErrInvalidScope), errors.Is(err, shared.ErrInvalidAccountFilter):
		return deadLetter(ctx, logger, h.producer, key, value, "Snapshot refresh request is invalid", err)
	default:
		logger.Error("Snapshot refresh failed", "error", err)
		return fmt.Errorf("snapshot refresh %s failed: %w", req.RequestID.String(), err)
	}
}
