package outbox_poller

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/hospitality-spend-ledger/internal/config"
	"github.com/hospitality-spend-ledger/internal/domain/outbox"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

func TestPoller_ProcessPendingMessages(t *testing.T) {
	cfg := &config.OutboxConfig{
		PollingInterval:  time.Second,
		BatchSize:        10,
		MaxRetryAttempts: 3,
	}

	message1 := &outbox.Message{ID: 1, EventType: outbox.EventRetroBatchCompleted, AggregateID: uuid.New(), Status: shared.OutboxStatusPending}
	message2 := &outbox.Message{ID: 2, EventType: outbox.EventRetroBatchCompleted, AggregateID: uuid.New(), Status: shared.OutboxStatusPending}
	exhausted := &outbox.Message{ID: 3, EventType: outbox.EventRetroBatchCompleted, AggregateID: uuid.New(), Status: shared.OutboxStatusPending, Attempts: 2}

	tests := []struct {
		name       string
		setupMocks func(outboxRepo *MockOutboxRepo, publisher *MockBatchPublisher)
		wantErr    bool
	}{
		{
			name: "relays every pending message",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockBatchPublisher) {
				outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{message1, message2}, nil).Once()
				publisher.On("Publish", mock.Anything, message1).Return(nil).Once()
				publisher.On("Publish", mock.Anything, message2).Return(nil).Once()
			},
		},
		{
			name: "nothing pending",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockBatchPublisher) {
				outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{}, nil).Once()
			},
		},
		{
			name: "failure counts an attempt and continues",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockBatchPublisher) {
				outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{message1, message2}, nil).Once()
				publisher.On("Publish", mock.Anything, message1).Return(errors.New("mongo down")).Once()
				outboxRepo.On("IncrementAttempts", mock.Anything, int64(1)).Return(nil).Once()
				publisher.On("Publish", mock.Anything, message2).Return(nil).Once()
			},
		},
		{
			name: "last attempt parks the message",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockBatchPublisher) {
				outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{exhausted}, nil).Once()
				publisher.On("Publish", mock.Anything, exhausted).Return(errors.New("mongo down")).Once()
				outboxRepo.On("IncrementAttempts", mock.Anything, int64(3)).Return(nil).Once()
				outboxRepo.On("UpdateStatus", mock.Anything, int64(3), shared.OutboxStatusFailedToPublish).Return(nil).Once()
			},
		},
		{
			name: "attempt counter failure skips the status check",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockBatchPublisher) {
				outboxRepo.On("GetPending", mock.Anything, 10).Return([]*outbox.Message{exhausted}, nil).Once()
				publisher.On("Publish", mock.Anything, exhausted).Return(errors.New("mongo down")).Once()
				outboxRepo.On("IncrementAttempts", mock.Anything, int64(3)).Return(errors.New("conn reset")).Once()
			},
		},
		{
			name: "fetch fails",
			setupMocks: func(outboxRepo *MockOutboxRepo, publisher *MockBatchPublisher) {
				outboxRepo.On("GetPending", mock.Anything, 10).Return(nil, errors.New("database error")).Once()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outboxRepo := new(MockOutboxRepo)
			publisher := new(MockBatchPublisher)
			tt.setupMocks(outboxRepo, publisher)

			poller := NewPoller(cfg, outboxRepo, publisher, newTestLogger())
			err := poller.processPendingMessages(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			outboxRepo.AssertExpectations(t)
			publisher.AssertExpectations(t)
		})
	}
}

func TestPoller_StartStopsOnCancel(t *testing.T) {
	var polls atomic.Int32
	outboxRepo := new(MockOutboxRepo)
	outboxRepo.On("GetPending", mock.Anything, 5).Return([]*outbox.Message{}, nil).Run(func(mock.Arguments) {
		polls.Add(1)
	})

	poller := NewPoller(&config.OutboxConfig{PollingInterval: 5 * time.Millisecond, BatchSize: 5, MaxRetryAttempts: 3}, outboxRepo, new(MockBatchPublisher), newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		poller.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return polls.Load() > 0
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop")
	}
}
