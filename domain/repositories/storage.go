package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/fraudshield/voicedesk/domain/entities"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// ArtifactRepository stores recorded audio and hands out playable URLs
type ArtifactRepository interface {
	// Put stores the artifact and fills in its ID and URL
	Put(ctx context.Context, artifact *entities.AudioArtifact) error
	Get(ctx context.Context, id string) (*entities.AudioArtifact, error)
	// Release drops the artifact behind url. Releasing an unknown url is not an error.
	Release(ctx context.Context, url string) error
	// ReleaseOlderThan drops artifacts created before cutoff and returns how many were dropped
	ReleaseOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// TranscriptRepository stores completed transcriptions
type TranscriptRepository interface {
	Create(ctx context.Context, record *entities.TranscriptRecord) error
	ListByUserID(ctx context.Context, userID string, limit int) ([]*entities.TranscriptRecord, error)
}
