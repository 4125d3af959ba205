package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
)

// ArtifactRepository keeps recorded audio in MongoDB. Documents expire on
// their own after ttl even if the cleanup service never runs.
type ArtifactRepository struct {
	collection *mongo.Collection
	urlPrefix  string
	logger     *zap.Logger
}

var _ repositories.ArtifactRepository = (*ArtifactRepository)(nil)

// NewArtifactRepository creates a repository serving artifacts under urlPrefix
func NewArtifactRepository(db *mongo.Database, urlPrefix string, ttl time.Duration, logger *zap.Logger) *ArtifactRepository {
	collection := db.Collection("artifacts")

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "url", Value: 1}}, Options: options.Index().SetUnique(true)},
	}
	if ttl > 0 {
		indexes = append(indexes, mongo.IndexModel{
			Keys:    bson.D{{Key: "created_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(ttl.Seconds())),
		})
	}
	ensureIndexes(collection, indexes, logger)

	return &ArtifactRepository{
		collection: collection,
		urlPrefix:  strings.TrimSuffix(urlPrefix, "/"),
		logger:     logger,
	}
}

// Put implements repositories.ArtifactRepository
func (r *ArtifactRepository) Put(ctx context.Context, artifact *entities.AudioArtifact) error {
	if artifact == nil || len(artifact.Data) == 0 {
		return errors.New("artifact has no audio")
	}

	artifact.ID = uuid.New().String()
	artifact.URL = r.urlPrefix + "/" + artifact.ID
	if artifact.CreatedAt.IsZero() {
		artifact.CreatedAt = time.Now()
	}

	if _, err := r.collection.InsertOne(ctx, artifact); err != nil {
		return fmt.Errorf("failed to store artifact: %w", err)
	}

	r.logger.Debug("Artifact stored",
		zap.String("artifactID", artifact.ID),
		zap.Int("size", artifact.Size()))
	return nil
}

// Get implements repositories.ArtifactRepository
func (r *ArtifactRepository) Get(ctx context.Context, id string) (*entities.AudioArtifact, error) {
	var artifact entities.AudioArtifact
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&artifact)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get artifact %s: %w", id, err)
	}
	return &artifact, nil
}

// Release implements repositories.ArtifactRepository
func (r *ArtifactRepository) Release(ctx context.Context, url string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"url": url})
	if err != nil {
		return fmt.Errorf("failed to release artifact: %w", err)
	}
	if result.DeletedCount > 0 {
		r.logger.Debug("Artifact released", zap.String("url", url))
	}
	return nil
}

// ReleaseOlderThan implements repositories.ArtifactRepository
func (r *ArtifactRepository) ReleaseOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"created_at": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, fmt.Errorf("failed to release expired artifacts: %w", err)
	}
	return int(result.DeletedCount), nil
}
