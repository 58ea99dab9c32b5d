package outbox

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

func completedBatch() *batch.Batch {
	now := time.Now().Truncate(time.Millisecond)
	return &batch.Batch{
		ID:                 uuid.New(),
		OrganisationID:     uuid.New(),
		IdempotencyKey:     "supplier-activated:abc",
		Status:             batch.StatusCompleted,
		ApprovedCount:      1,
		ApprovedInvoiceIDs: []uuid.UUID{uuid.New()},
		ReasonHistogram:    map[string]int{"LOW_CONFIDENCE": 2},
		CompletedAt:        &now,
	}
}

func TestNewBatchCompletedMessage(t *testing.T) {
	t.Run("SuccessfulCreation", func(t *testing.T) {
		b := completedBatch()

		beforeCreation := time.Now()
		msg, err := NewBatchCompletedMessage(b)
		afterCreation := time.Now()

		require.NoError(t, err)
		require.NotNil(t, msg)

		assert.Equal(t, EventRetroBatchCompleted, msg.EventType)
		assert.Equal(t, b.ID, msg.AggregateID)
		assert.Equal(t, b.OrganisationID, msg.OrganisationID)
		assert.Equal(t, shared.OutboxStatusPending, msg.Status)
		assert.Equal(t, 0, msg.Attempts)
		assert.Nil(t, msg.LastAttemptAt)
		assert.WithinDuration(t, beforeCreation, msg.CreatedAt, afterCreation.Sub(beforeCreation)+time.Millisecond)

		var decoded batch.Batch
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, b.ApprovedInvoiceIDs, decoded.ApprovedInvoiceIDs)
	})
}

func TestMessage_StatusTransitions(t *testing.T) {
	t.Run("IncrementAttempts", func(t *testing.T) {
		initialTime := time.Now().Add(-time.Hour)
		msg := &Message{Attempts: 1, LastAttemptAt: &initialTime}

		msg.IncrementAttempts()

		assert.Equal(t, 2, msg.Attempts)
		require.NotNil(t, msg.LastAttemptAt)
		assert.True(t, msg.LastAttemptAt.After(initialTime))
	})

	t.Run("MarkAsProcessed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.MarkAsProcessed()
		assert.Equal(t, shared.OutboxStatusProcessed, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	})

	t.Run("MarkAsFailed", func(t *testing.T) {
		msg := &Message{Status: shared.OutboxStatusPending}
		msg.MarkAsFailed()
		assert.Equal(t, shared.OutboxStatusFailedToPublish, msg.Status)
		assert.NotNil(t, msg.LastAttemptAt)
	})
}

func TestMessage_GetBatch(t *testing.T) {
	original := completedBatch()
	payload, err := json.Marshal(original)
	require.NoError(t, err)

	decoded, err := (&Message{Payload: payload}).GetBatch()

	require.NoError(t, err)
	assert.Equal(t, original.ID, decoded.ID)
	assert.Equal(t, original.IdempotencyKey, decoded.IdempotencyKey)
	assert.Equal(t, original.ReasonHistogram, decoded.ReasonHistogram)
	assert.True(t, original.CompletedAt.Equal(*decoded.CompletedAt))

	_, err = (&Message{Payload: json.RawMessage(`{`)}).GetBatch()
	assert.Error(t, err)
}
