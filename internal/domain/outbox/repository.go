package outbox

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// Repository stores batch completion messages. Create is called with the
// approval transaction; the poller drains GetPending outside of it.
type Repository interface {
	Create(ctx context.Context, message *Message) error

	// GetPending returns PENDING messages oldest first
	GetPending(ctx context.Context, limit int) ([]*Message, error)

	UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error
	IncrementAttempts(ctx context.Context, id int64) error

	// GetByAggregateID looks up the message recorded for one verification batch
	GetByAggregateID(ctx context.Context, aggregateID uuid.UUID) (*Message, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrMessageNotFound indicates missing outbox message
type ErrMessageNotFound struct {
	ID          int64
	AggregateID uuid.UUID
}

func (e ErrMessageNotFound) Error() string {
	if e.AggregateID != uuid.Nil {
		return "outbox message not found for batch: " + e.AggregateID.String()
	}
	return "outbox message not found: " + strconv.FormatInt(e.ID, 10)
}

// ErrDuplicateMessage indicates a batch already has its completion message
type ErrDuplicateMessage struct {
	AggregateID uuid.UUID
}

func (e ErrDuplicateMessage) Error() string {
	return "duplicate outbox message for batch: " + e.AggregateID.String()
}
