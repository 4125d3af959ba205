package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
)

// TranscriptRepository stores completed transcriptions in MongoDB
type TranscriptRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.TranscriptRepository = (*TranscriptRepository)(nil)

// NewTranscriptRepository creates a new MongoDB transcript repository
func NewTranscriptRepository(db *mongo.Database, logger *zap.Logger) *TranscriptRepository {
	collection := db.Collection("transcripts")
	ensureIndexes(collection, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "session_id", Value: 1}}},
	}, logger)

	return &TranscriptRepository{
		collection: collection,
		logger:     logger,
	}
}

// Create implements repositories.TranscriptRepository
func (r *TranscriptRepository) Create(ctx context.Context, record *entities.TranscriptRecord) error {
	if record == nil {
		return errors.New("transcript cannot be nil")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.ID == "" {
		record.ID = primitive.NewObjectID().Hex()
	}

	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		r.logger.Error("Failed to create transcript",
			zap.String("sessionID", record.SessionID),
			zap.Error(err))
		return fmt.Errorf("failed to create transcript: %w", err)
	}

	r.logger.Debug("Transcript created",
		zap.String("transcriptID", record.ID),
		zap.String("sessionID", record.SessionID))
	return nil
}

// ListByUserID implements repositories.TranscriptRepository, most recent first
func (r *TranscriptRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*entities.TranscriptRecord, error) {
	if userID == "" {
		return nil, errors.New("user ID cannot be empty")
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts for user %s: %w", userID, err)
	}
	defer cursor.Close(ctx)

	records := []*entities.TranscriptRecord{}
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("failed to decode transcripts: %w", err)
	}
	return records, nil
}
