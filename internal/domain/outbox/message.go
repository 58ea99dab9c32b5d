package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// EventRetroBatchCompleted is written in the same transaction that completes a batch
const EventRetroBatchCompleted = "retro_batch.completed"

// Message stores batch outcomes for reliable downstream processing
type Message struct {
	ID             int64               `json:"id"`
	EventType      string              `json:"event_type"`
	AggregateID    uuid.UUID           `json:"aggregate_id"`
	OrganisationID uuid.UUID           `json:"organisation_id"`
	Payload        json.RawMessage     `json:"payload"`
	Status         shared.OutboxStatus `json:"status"`
	Attempts       int                 `json:"attempts"`
	CreatedAt      time.Time           `json:"created_at"`
	LastAttemptAt  *time.Time          `json:"last_attempt_at,omitempty"`
}

func NewBatchCompletedMessage(b *batch.Batch) (*Message, error) {
	payload, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}

	return &Message{
		EventType:      EventRetroBatchCompleted,
		AggregateID:    b.ID,
		OrganisationID: b.OrganisationID,
		Payload:        payload,
		Status:         shared.OutboxStatusPending,
		Attempts:       0,
		CreatedAt:      time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetBatch extracts the completed batch from the payload
func (m *Message) GetBatch() (*batch.Batch, error) {
	var b batch.Batch
	if err := json.Unmarshal(m.Payload, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
