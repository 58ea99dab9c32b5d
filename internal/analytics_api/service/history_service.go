package service

import (
	"context"
	"log/slog"

	"github.com/hospitality-spend-ledger/internal/domain/history"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

// HistoryServiceImpl implements HistoryService over the read model
type HistoryServiceImpl struct {
	history history.Repository
	logger  *slog.Logger
}

func NewHistoryService(logger *slog.Logger, historyRepo history.Repository) HistoryService {
	return &HistoryServiceImpl{
		history: historyRepo,
		logger:  logger,
	}
}

// ListBatches pages through the scope newest first
func (s *HistoryServiceImpl) ListBatches(ctx context.Context, scope shared.Scope, page, perPage int) ([]*history.Record, int64, error) {
	if err := scope.Validate(); err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * perPage

	records, err := s.history.ListByScope(ctx, scope, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.history.CountByScope(ctx, scope)
	if err != nil {
		return nil, 0, err
	}

	return records, total, nil
}
