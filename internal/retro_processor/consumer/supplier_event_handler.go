package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/supplier"
	"github.com/hospitality-spend-ledger/internal/platform/messaging/producers"
	"github.com/hospitality-spend-ledger/internal/retro"
	"github.com/hospitality-spend-ledger/internal/retro_processor/service"
)

const (
	// SupplierActivatedKeyPrefix namespaces batch keys derived from supplier events
	SupplierActivatedKeyPrefix = "supplier-activated:"

	principalComponent = "retro-processor"
)

// SupplierEventHandler runs an organisation-wide retro batch whenever a supplier becomes ACTIVE
type SupplierEventHandler struct {
	runner   service.BatchRunner
	producer producers.DeadLetterPublisher
	logger   *slog.Logger
}

func NewSupplierEventHandler(
	logger *slog.Logger,
	runner service.BatchRunner,
	producer producers.DeadLetterPublisher,
) *SupplierEventHandler {
	return &SupplierEventHandler{
		runner:   runner,
		producer: producer,
		logger:   logger,
	}
}

// HandleMessage processes Kafka messages. Returning nil commits the offset.
func (h *SupplierEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event supplier.StatusChanged
	if err := json.Unmarshal(value, &event); err != nil {
		return deadLetter(ctx, h.logger, h.producer, key, value, "Failed to unmarshal supplier status event", err)
	}

	logger := h.logger.With("event_id", event.EventID.String(), "supplier_id", event.SupplierID.String())
	if event.CorrelationID != "" {
		logger = logger.With("correlation_id", event.CorrelationID)
	}

	if !event.Activated() {
		logger.Debug("Ignoring supplier status change", "status", string(event.Status), "previous_status", string(event.PreviousStatus))
		return nil
	}

	scope, err := shared.NewScope(event.OrganisationID, nil)
	if err != nil {
		return deadLetter(ctx, logger, h.producer, key, value, "Supplier status event has no organisation", err)
	}

	logger.Info("Supplier activated, running retro batch", "organisation_id", event.OrganisationID.String())

	result, err := h.runner.Run(ctx, retro.RunRequest{
		Scope:          scope,
		IdempotencyKey: SupplierActivatedKeyPrefix + event.EventID.String(),
		Actor:          shared.SystemPrincipal(principalComponent),
		CorrelationID:  event.CorrelationID,
	})
	if err != nil {
		if errors.Is(err, batch.ErrFingerprintMismatch{}) {
			return deadLetter(ctx, logger, h.producer, key, value, "Supplier event key already used for another batch", err)
		}
		logger.Error("Retro batch for supplier activation failed", "error", err)
		return fmt.Errorf("retro batch for supplier event %s failed: %w", event.EventID.String(), err)
	}

	logger.Info("Retro batch for supplier activation finished",
		"replayed", result.Replayed,
		"scanned", result.Scanned,
		"approved", result.ApprovedCount,
		"skipped", result.SkippedCount,
	)
	return nil
}

// deadLetter parks a message that can never succeed. When the DLQ is unavailable the
// error is returned so the message is redelivered instead of lost.
func deadLetter(ctx context.Context, logger *slog.Logger, producer producers.DeadLetterPublisher, key, value []byte, reason string, cause error) error {
	logger.Error(reason, "error", cause, "message_key", string(key))

	if producer != nil {
		dlqReason := fmt.Sprintf("%s: %s", reason, cause.Error())
		if dlqErr := producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
			logger.Error("Failed to publish message to DLQ",
				"dlq_error", dlqErr,
				"original_error", cause,
				"message_key", string(key),
			)
		} else {
			logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
			return nil
		}
	}

	return fmt.Errorf("%s: %w", reason, cause)
}
