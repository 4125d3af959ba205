package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/fraudshield/voicedesk/adapters"
	"github.com/fraudshield/voicedesk/domain/entities"
	"github.com/fraudshield/voicedesk/internal/voice"
)

type failingTranscriptRepository struct{}

func (failingTranscriptRepository) Create(ctx context.Context, record *entities.TranscriptRecord) error {
	return errors.New("database unavailable")
}

func (failingTranscriptRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*entities.TranscriptRecord, error) {
	return nil, errors.New("database unavailable")
}

func TestTranscriptServiceRecordAndList(t *testing.T) {
	repo := adapters.NewMemoryTranscriptRepository()
	svc := NewTranscriptService(repo, zaptest.NewLogger(t))
	ctx := context.Background()

	record, err := svc.Record(ctx, "citizen-1", voice.TranscriptionResult{
		SessionID:   "session-1",
		Language:    "hi",
		Text:        "mujhe ek fake call aaya",
		Confidence:  87,
		ArtifactURL: "/api/v1/artifacts/a1",
	})
	if err != nil {
		t.Fatalf("Failed to record transcript: %v", err)
	}
	if record.ID == "" {
		t.Error("Expected record ID to be assigned")
	}
	if record.ArtifactURL != "/api/v1/artifacts/a1" {
		t.Errorf("Expected artifact URL to be kept, got %s", record.ArtifactURL)
	}

	records, err := svc.List(ctx, "citizen-1", 0)
	if err != nil {
		t.Fatalf("Failed to list transcripts: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].Text != "mujhe ek fake call aaya" {
		t.Errorf("Expected stored text, got %q", records[0].Text)
	}

	others, err := svc.List(ctx, "citizen-2", 10)
	if err != nil {
		t.Fatalf("Failed to list transcripts: %v", err)
	}
	if len(others) != 0 {
		t.Errorf("Expected no records for another user, got %d", len(others))
	}
}

func TestCompletionHandlerRecords(t *testing.T) {
	repo := adapters.NewMemoryTranscriptRepository()
	svc := NewTranscriptService(repo, zaptest.NewLogger(t))

	handler := svc.CompletionHandler("citizen-7")
	handler(context.Background(), voice.TranscriptionResult{SessionID: "s", Language: "en", Text: "hello", Confidence: 50})

	records, _ := svc.List(context.Background(), "citizen-7", 5)
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	if records[0].UserID != "citizen-7" {
		t.Errorf("Expected user citizen-7, got %s", records[0].UserID)
	}
}

func TestCompletionHandlerSwallowsStorageErrors(t *testing.T) {
	svc := NewTranscriptService(failingTranscriptRepository{}, zaptest.NewLogger(t))

	handler := svc.CompletionHandler("citizen-1")
	handler(context.Background(), voice.TranscriptionResult{SessionID: "s", Text: "hello"})

	if _, err := svc.List(context.Background(), "citizen-1", 5); err == nil {
		t.Error("Expected list error from failing repository")
	}
}
