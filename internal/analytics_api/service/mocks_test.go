package service

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/hospitality-spend-ledger/internal/domain/document"
	"github.com/hospitality-spend-ledger/internal/domain/history"
	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, scope shared.Scope, id uuid.UUID) (*document.Document, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) SelectCandidates(ctx context.Context, scope shared.Scope, limit int) ([]*document.Candidate, error) {
	args := m.Called(ctx, scope, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*document.Candidate), args.Error(1)
}

func (m *MockDocumentRepository) CountCandidates(ctx context.Context, scope shared.Scope, limit int) (int, error) {
	args := m.Called(ctx, scope, limit)
	return args.Int(0), args.Error(1)
}

func (m *MockDocumentRepository) GetCandidate(ctx context.Context, scope shared.Scope, id uuid.UUID) (*document.Candidate, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Candidate), args.Error(1)
}

func (m *MockDocumentRepository) MarkVerified(ctx context.Context, params document.VerifyParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockDocumentRepository) WithTx(tx pgx.Tx) document.Repository {
	return m
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) ManualLines(ctx context.Context, q invoice.LineQuery) ([]invoice.Line, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]invoice.Line), args.Error(1)
}

func (m *MockInvoiceRepository) ExternalLines(ctx context.Context, q invoice.LineQuery) ([]invoice.Line, error) {
	args := m.Called(ctx, q)
	return args.Get(0).([]invoice.Line), args.Error(1)
}

func (m *MockInvoiceRepository) SupersededExternalIDs(ctx context.Context, scope shared.Scope, from, to time.Time) ([]string, error) {
	args := m.Called(ctx, scope, from, to)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockInvoiceRepository) AttachedExternalIDs(ctx context.Context, scope shared.Scope, from, to time.Time) ([]string, error) {
	args := m.Called(ctx, scope, from, to)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockInvoiceRepository) GetManualByDocumentID(ctx context.Context, scope shared.Scope, documentID uuid.UUID) (*invoice.ManualInvoice, error) {
	args := m.Called(ctx, scope, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoice.ManualInvoice), args.Error(1)
}

func (m *MockInvoiceRepository) MarkVerified(ctx context.Context, invoiceID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, invoiceID, at)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SoftDelete(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID, at time.Time) error {
	args := m.Called(ctx, scope, invoiceID, at)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Restore(ctx context.Context, scope shared.Scope, invoiceID uuid.UUID) error {
	args := m.Called(ctx, scope, invoiceID)
	return args.Error(0)
}

func (m *MockInvoiceRepository) WithTx(tx pgx.Tx) invoice.Repository {
	return m
}

type MockHistoryRepository struct {
	mock.Mock
}

func (m *MockHistoryRepository) Create(ctx context.Context, record *history.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockHistoryRepository) GetByBatchID(ctx context.Context, batchID uuid.UUID) (*history.Record, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*history.Record), args.Error(1)
}

func (m *MockHistoryRepository) ListByScope(ctx context.Context, scope shared.Scope, limit, offset int) ([]*history.Record, error) {
	args := m.Called(ctx, scope, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*history.Record), args.Error(1)
}

func (m *MockHistoryRepository) CountByScope(ctx context.Context, scope shared.Scope) (int64, error) {
	args := m.Called(ctx, scope)
	return args.Get(0).(int64), args.Error(1)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type staticFeatures bool

func (s staticFeatures) AutoVerifyEnabled(uuid.UUID, *uuid.UUID) bool {
	return bool(s)
}

// directTx runs fn without a transaction and reports whether it was used
type directTx struct {
	calls *int
}

func (d directTx) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if d.calls != nil {
		*d.calls++
	}
	return fn(nil)
}
