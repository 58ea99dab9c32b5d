package retro

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"

	"github.com/hospitality-spend-ledger/internal/domain/batch"
	"github.com/hospitality-spend-ledger/internal/domain/document"
	"github.com/hospitality-spend-ledger/internal/domain/invoice"
	"github.com/hospitality-spend-ledger/internal/domain/outbox"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

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

type MockBatchRepository struct {
	mock.Mock
}

func (m *MockBatchRepository) GetByIdempotencyKey(ctx context.Context, scope shared.Scope, key string) (*batch.Batch, error) {
	args := m.Called(ctx, scope, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*batch.Batch), args.Error(1)
}

func (m *MockBatchRepository) Create(ctx context.Context, b *batch.Batch) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBatchRepository) Restart(ctx context.Context, b *batch.Batch) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBatchRepository) Complete(ctx context.Context, b *batch.Batch) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockBatchRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

func (m *MockBatchRepository) WithTx(tx pgx.Tx) batch.Repository {
	return m
}

type MockAuditRepository struct {
	mock.Mock
}

func (m *MockAuditRepository) Create(ctx context.Context, event *batch.AuditEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockAuditRepository) ListByBatch(ctx context.Context, batchID uuid.UUID) ([]*batch.AuditEvent, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*batch.AuditEvent), args.Error(1)
}

func (m *MockAuditRepository) WithTx(tx pgx.Tx) batch.AuditRepository {
	return m
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) Create(ctx context.Context, message *outbox.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetPending(ctx context.Context, limit int) ([]*outbox.Message, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) UpdateStatus(ctx context.Context, id int64, status shared.OutboxStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockOutboxRepository) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepository) GetByAggregateID(ctx context.Context, aggregateID uuid.UUID) (*outbox.Message, error) {
	args := m.Called(ctx, aggregateID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*outbox.Message), args.Error(1)
}

func (m *MockOutboxRepository) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

type MockApprover struct {
	mock.Mock
}

func (m *MockApprover) ApplyBatch(ctx context.Context, tx pgx.Tx, b *batch.Batch, approvals []*document.Candidate, res *batch.Result) error {
	args := m.Called(ctx, tx, b, approvals, res)
	return args.Error(0)
}

// staticFeatures enables auto-verify everywhere unless listed as disabled
type staticFeatures struct {
	disabled map[uuid.UUID]bool
}

func (s staticFeatures) AutoVerifyEnabled(_ uuid.UUID, locationID *uuid.UUID) bool {
	if locationID == nil {
		return !s.disabled[uuid.Nil]
	}
	return !s.disabled[*locationID]
}

type directTx struct {
	err error
}

func (d directTx) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if d.err != nil {
		return d.err
	}
	return fn(nil)
}
