package outbox_poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hospitality-spend-ledger/internal/domain/history"
	"github.com/hospitality-spend-ledger/internal/domain/outbox"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/retro_processor/service"
)

// BatchPublisher relays one outbox message to its downstream consumers
type BatchPublisher interface {
	Publish(ctx context.Context, message *outbox.Message) error
}

// BatchPublisherImpl projects completed batches into the history read model and
// refreshes the snapshots the batch may have changed
type BatchPublisherImpl struct {
	outboxRepo  outbox.Repository
	historyRepo history.Repository
	snapshots   service.SnapshotRefresher
	logger      *slog.Logger
	now         func() time.Time
}

func NewBatchPublisher(
	outboxRepo outbox.Repository,
	historyRepo history.Repository,
	snapshots service.SnapshotRefresher,
	logger *slog.Logger,
) BatchPublisher {
	return &BatchPublisherImpl{
		outboxRepo:  outboxRepo,
		historyRepo: historyRepo,
		snapshots:   snapshots,
		logger:      logger,
		now:         time.Now,
	}
}

// Publish is safe to repeat: an existing history record counts as written
func (p *BatchPublisherImpl) Publish(ctx context.Context, message *outbox.Message) error {
	if message.EventType != outbox.EventRetroBatchCompleted {
		p.logger.Warn("Unknown outbox event type, marking as FAILED_TO_PUBLISH", "outbox_id", message.ID, "event_type", message.EventType)
		if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); err != nil {
			return fmt.Errorf("failed to park outbox %d: %w", message.ID, err)
		}
		return nil
	}

	b, err := message.GetBatch()
	if err != nil {
		p.logger.Error("Failed to unmarshal batch from outbox payload",
			"outbox_id", message.ID, "batch_id", message.AggregateID.String(), "error", err,
		)
		if updateErr := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusFailedToPublish); updateErr != nil {
			p.logger.Error("Also failed to update outbox status to FAILED_TO_PUBLISH after unmarshal error", "outbox_id", message.ID, "update_error", updateErr)
		}
		return fmt.Errorf("unmarshal payload for outbox %d failed: %w", message.ID, err)
	}

	logger := p.logger.With("outbox_id", message.ID, "batch_id", b.ID.String(), "scope", b.Scope().Key())

	record := history.FromBatch(b, p.now().UTC())
	if err := p.historyRepo.Create(ctx, record); err != nil {
		if !errors.Is(err, history.ErrDuplicateRecord{}) {
			logger.Error("Failed to write batch history", "error", err)
			return fmt.Errorf("failed to write history for batch %s: %w", b.ID.String(), err)
		}
		logger.Info("Batch history already recorded")
	}

	if b.ApprovedCount > 0 {
		if err := p.snapshots.RefreshScope(ctx, b.Scope()); err != nil {
			logger.Error("Failed to refresh snapshots after batch", "error", err)
			return fmt.Errorf("failed to refresh snapshots for batch %s: %w", b.ID.String(), err)
		}
	}

	if err := p.outboxRepo.UpdateStatus(ctx, message.ID, shared.OutboxStatusProcessed); err != nil {
		logger.Error("Failed to update outbox message status to PROCESSED", "error", err)
		return fmt.Errorf("batch %s relayed, but failed to mark outbox %d as PROCESSED: %w", b.ID.String(), message.ID, err)
	}

	logger.Info("Outbox message relayed and marked as PROCESSED", "approved", b.ApprovedCount)
	return nil
}
