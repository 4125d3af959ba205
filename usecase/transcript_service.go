package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/domain/repositories"
	"github.com/fraudshield/voicedesk/internal/voice"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// TranscriptService keeps completed transcriptions for the report form
type TranscriptService struct {
	repo   repositories.TranscriptRepository
	logger *zap.Logger
}

// NewTranscriptService creates a new transcript service
func NewTranscriptService(repo repositories.TranscriptRepository, logger *zap.Logger) *TranscriptService {
	return &TranscriptService{repo: repo, logger: logger}
}

// Record stores the result of a capture on behalf of userID
func (s *TranscriptService) Record(ctx context.Context, userID string, result voice.TranscriptionResult) (*entities.TranscriptRecord, error) {
	record := entities.NewTranscriptRecord(result.SessionID, userID, result.Language, result.Text, result.Confidence)
	record.ArtifactURL = result.ArtifactURL

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to store transcript: %w", err)
	}

	s.logger.Info("Transcript recorded",
		zap.String("transcriptID", record.ID),
		zap.String("sessionID", record.SessionID),
		zap.String("userID", userID),
		zap.String("language", record.Language),
		zap.Int("confidence", record.Confidence))
	return record, nil
}

// CompletionHandler returns a callback that records every completion for userID.
// Storage failures are logged; the user already has the transcript on screen.
func (s *TranscriptService) CompletionHandler(userID string) voice.CompletionFunc {
	return func(ctx context.Context, result voice.TranscriptionResult) {
		if _, err := s.Record(ctx, userID, result); err != nil {
			s.logger.Error("Failed to record transcript",
				zap.String("sessionID", result.SessionID),
				zap.String("userID", userID),
				zap.Error(err))
		}
	}
}

// List returns the user's most recent transcripts. limit is clamped to 1..100.
func (s *TranscriptService) List(ctx context.Context, userID string, limit int) ([]*entities.TranscriptRecord, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := s.repo.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	return records, nil
}
