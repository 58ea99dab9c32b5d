package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
)

func TestRefreshRequestHandler_HandleMessage(t *testing.T) {
	ctx := context.Background()
	req := snapshot.RefreshRequest{
		RequestID:     uuid.New(),
		Scope:         shared.Scope{OrganisationID: uuid.New()},
		AccountCodes:  []string{"5000"},
		Source:        snapshot.SourceBackfill,
		CorrelationID: "corr-backfill",
		RequestedAt:   time.Date(2026, 10, 14, 1, 0, 0, 0, time.UTC),
	}
	value, err := json.Marshal(req)
	require.NoError(t, err)

	matchesRequest := mock.MatchedBy(func(got *snapshot.RefreshRequest) bool {
		return got.RequestID == req.RequestID && got.Scope.Key() == req.Scope.Key() && got.Source == snapshot.SourceBackfill
	})

	tests := []struct {
		name       string
		value      []byte
		setupMocks func(scheduler *MockRefreshScheduler, dlq *MockDeadLetterPublisher)
		wantErr    bool
	}{
		{
			name:  "scheduled",
			value: value,
			setupMocks: func(scheduler *MockRefreshScheduler, dlq *MockDeadLetterPublisher) {
				scheduler.On("Schedule", ctx, matchesRequest).Return(nil).Once()
			},
		},
		{
			name:  "invalid request is parked",
			value: value,
			setupMocks: func(scheduler *MockRefreshScheduler, dlq *MockDeadLetterPublisher) {
				scheduler.On("Schedule", ctx, matchesRequest).
					Return(fmt.Errorf("%w: empty account code", shared.ErrInvalidAccountFilter)).Once()
				dlq.On("PublishToDLQ", ctx, "scope-key", value, mock.AnythingOfType("string")).Return(nil).Once()
			},
		},
		{
			name:  "transient failure is redelivered",
			value: value,
			setupMocks: func(scheduler *MockRefreshScheduler, dlq *MockDeadLetterPublisher) {
				scheduler.On("Schedule", ctx, matchesRequest).Return(errors.New("too many connections")).Once()
			},
			wantErr: true,
		},
		{
			name:  "malformed payload is parked",
			value: []byte("not json"),
			setupMocks: func(scheduler *MockRefreshScheduler, dlq *MockDeadLetterPublisher) {
				dlq.On("PublishToDLQ", ctx, "scope-key", []byte("not json"), mock.AnythingOfType("string")).Return(nil).Once()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheduler := new(MockRefreshScheduler)
			dlq := new(MockDeadLetterPublisher)
			tt.setupMocks(scheduler, dlq)

			h := NewRefreshRequestHandler(newTestLogger(), scheduler, dlq)
			err := h.HandleMessage(ctx, []byte("scope-key"), tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			scheduler.AssertExpectations(t)
			dlq.AssertExpectations(t)
		})
	}
}
