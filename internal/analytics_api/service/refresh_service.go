package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hospitality-spend-ledger/internal/analytics_api/middleware"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
	"github.com/hospitality-spend-ledger/internal/domain/snapshot"
	"github.com/hospitality-spend-ledger/internal/platform/messaging/producers"
)

// RefreshServiceImpl publishes refresh requests keyed by scope
type RefreshServiceImpl struct {
	producer producers.MessagePublisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewRefreshService(logger *slog.Logger, producer producers.MessagePublisher) RefreshService {
	return &RefreshServiceImpl{
		producer: producer,
		logger:   logger,
		now:      time.Now,
	}
}

func (s *RefreshServiceImpl) RequestRefresh(ctx context.Context, scope shared.Scope, accounts shared.AccountFilter, actor shared.Principal) (*snapshot.RefreshRequest, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}

	req := &snapshot.RefreshRequest{
		RequestID:     uuid.New(),
		Scope:         scope,
		AccountCodes:  accounts.Codes(),
		Source:        snapshot.SourceOperator,
		RequestedBy:   actor.ID,
		CorrelationID: middleware.CorrelationIDFromContext(ctx),
		RequestedAt:   s.now().UTC(),
	}

	if err := s.producer.Publish(ctx, scope.Key(), req); err != nil {
		s.logger.Error("Failed to publish snapshot refresh request",
			"organisation_id", scope.OrganisationID.String(),
			"signature", accounts.Signature(),
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Snapshot refresh requested",
		"request_id", req.RequestID.String(),
		"organisation_id", scope.OrganisationID.String(),
		"signature", accounts.Signature(),
	)
	return req, nil
}
