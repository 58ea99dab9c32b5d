package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hospitality-spend-ledger/internal/domain/history"
	"github.com/hospitality-spend-ledger/internal/domain/shared"
)

const (
	// HistoryCollectionName is the name of the batch history collection in MongoDB
	HistoryCollectionName = "batch_history"
)

var _ history.Repository = (*HistoryRepository)(nil)

// HistoryRepository implements the history.Repository interface for MongoDB
type HistoryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewHistoryRepository creates a new MongoDB batch history repository
func NewHistoryRepository(logger *slog.Logger, db *mongo.Database) *HistoryRepository {
	return &HistoryRepository{
		db:     db,
		logger: logger,
	}
}

// EnsureIndexes creates the unique batch index and the listing index
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(HistoryCollectionName)

	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "batch_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{
				{Key: "organisation_id", Value: 1},
				{Key: "location_id", Value: 1},
				{Key: "completed_at", Value: -1},
			},
		},
	})
	if err != nil {
		r.logger.Error("Failed to create batch history indexes", "error", err)
		return fmt.Errorf("failed to create batch history indexes: %w", err)
	}

	return nil
}

// Create stores a projected batch.
// Returns ErrDuplicateRecord if the batch was already projected.
func (r *HistoryRepository) Create(ctx context.Context, record *history.Record) error {
	collection := r.db.Collection(HistoryCollectionName)

	existing, err := r.GetByBatchID(ctx, record.BatchID)
	if err != nil && !errors.Is(err, history.ErrRecordNotFound{}) {
		r.logger.Error("Failed to check for existing batch history",
			"batch_id", record.BatchID.String(),
			"error", err)
		return fmt.Errorf("failed to check for existing batch history: %w", err)
	}

	if existing != nil {
		return history.ErrDuplicateRecord{BatchID: record.BatchID}
	}

	_, err = collection.InsertOne(ctx, record)
	if err != nil {
		// a concurrent relay won the insert
		if mongo.IsDuplicateKeyError(err) {
			return history.ErrDuplicateRecord{BatchID: record.BatchID}
		}
		r.logger.Error("Failed to create batch history",
			"batch_id", record.BatchID.String(),
			"error", err)
		return fmt.Errorf("failed to create batch history: %w", err)
	}

	return nil
}

// GetByBatchID returns ErrRecordNotFound if the batch was never projected
func (r *HistoryRepository) GetByBatchID(ctx context.Context, batchID uuid.UUID) (*history.Record, error) {
	collection := r.db.Collection(HistoryCollectionName)

	var record history.Record
	err := collection.FindOne(ctx, bson.M{"batch_id": batchID}).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, history.ErrRecordNotFound{BatchID: batchID}
		}
		r.logger.Error("Failed to get batch history",
			"batch_id", batchID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get batch history: %w", err)
	}

	return &record, nil
}

// ListByScope returns batches newest first. An organisation-wide scope lists
// the batches of every location too.
func (r *HistoryRepository) ListByScope(ctx context.Context, scope shared.Scope, limit, offset int) ([]*history.Record, error) {
	collection := r.db.Collection(HistoryCollectionName)

	opts := options.Find().
		SetSort(bson.D{{Key: "completed_at", Value: -1}, {Key: "batch_id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, scopeFilter(scope), opts)
	if err != nil {
		r.logger.Error("Failed to list batch history",
			"organisation_id", scope.OrganisationID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to list batch history: %w", err)
	}
	defer cursor.Close(ctx)

	records := []*history.Record{}
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode batch history",
			"organisation_id", scope.OrganisationID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode batch history: %w", err)
	}

	return records, nil
}

func (r *HistoryRepository) CountByScope(ctx context.Context, scope shared.Scope) (int64, error) {
	collection := r.db.Collection(HistoryCollectionName)

	count, err := collection.CountDocuments(ctx, scopeFilter(scope))
	if err != nil {
		r.logger.Error("Failed to count batch history",
			"organisation_id", scope.OrganisationID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count batch history: %w", err)
	}

	return count, nil
}

func scopeFilter(scope shared.Scope) bson.M {
	filter := bson.M{"organisation_id": scope.OrganisationID}
	if scope.LocationID != nil {
		filter["location_id"] = *scope.LocationID
	}
	return filter
}
